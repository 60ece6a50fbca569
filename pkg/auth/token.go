package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/bedbroker-backend/pkg/config"
)

var signingMethod = jwt.SigningMethodHS256

// Verifier checks bearer tokens minted by the identity service. One Verifier
// is built per process and shared across requests.
type Verifier struct {
	key    []byte
	parser *jwt.Parser
}

// NewVerifier binds the shared secret and expected issuer. leeway absorbs
// clock skew between this host and the issuer.
func NewVerifier(cfg config.JWTConfig, leeway time.Duration) *Verifier {
	return &Verifier{
		key: []byte(cfg.Secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{signingMethod.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithLeeway(leeway),
		),
	}
}

// Verify returns the claims of a valid token. Errors wrap the jwt sentinels
// (jwt.ErrTokenExpired, jwt.ErrTokenInvalidIssuer, ...).
func (v *Verifier) Verify(raw string) (*Claims, error) {
	if len(v.key) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, jwt.ErrTokenMalformed
	}
	claims := &Claims{}
	if _, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return v.key, nil }); err != nil {
		return nil, err
	}
	return claims, nil
}

// Issue signs a token for g. Production tokens come from the identity
// service; tooling and tests use this to get a token Verify accepts.
func Issue(cfg config.JWTConfig, now time.Time, g Grant) (string, error) {
	switch {
	case cfg.Secret == "":
		return "", errors.New("jwt secret is required")
	case cfg.Issuer == "":
		return "", errors.New("jwt issuer is required")
	case g.TTL <= 0:
		return "", errors.New("token ttl must be positive")
	case g.UserID == uuid.Nil:
		return "", errMissingUser
	}
	jti := strings.TrimSpace(g.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	claims := Claims{
		UserID: g.UserID,
		Role:   g.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   g.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.TTL)),
			ID:        jti,
		},
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}
