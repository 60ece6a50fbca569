package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	errMissingUser     = errors.New("token missing user_id")
	errSubjectMismatch = errors.New("token subject does not match user_id")
)

// Claims is the identity a verified token acts as. Role is informational;
// ownership decisions compare UserID against stored ids.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Validate runs after the registered-claim checks in jwt.Parser.
func (c *Claims) Validate() error {
	if c.UserID == uuid.Nil {
		return errMissingUser
	}
	if c.Subject != "" && c.Subject != c.UserID.String() {
		return errSubjectMismatch
	}
	return nil
}

// Grant describes a token to issue.
type Grant struct {
	UserID uuid.UUID
	Role   string
	// JTI defaults to a random uuid so the token can be revoked.
	JTI string
	TTL time.Duration
}
