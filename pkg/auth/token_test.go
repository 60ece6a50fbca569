package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bedbroker-backend/pkg/config"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "bedbroker"}

func issue(t *testing.T, cfg config.JWTConfig, now time.Time, g Grant) string {
	t.Helper()
	token, err := Issue(cfg, now, g)
	require.NoError(t, err)
	return token
}

func TestIssueAndVerify(t *testing.T) {
	now := time.Now().UTC()
	userID := uuid.New()
	token := issue(t, testJWT, now, Grant{UserID: userID, Role: "renter", TTL: 30 * time.Minute})

	claims, err := NewVerifier(testJWT, 0).Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, "renter", claims.Role)
	assert.Equal(t, testJWT.Issuer, claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestVerifyRejects(t *testing.T) {
	userID := uuid.New()
	valid := issue(t, testJWT, time.Now(), Grant{UserID: userID, TTL: 10 * time.Minute})

	cases := []struct {
		name     string
		verifier *Verifier
		token    string
		want     error
	}{
		{name: "tampered signature", verifier: NewVerifier(testJWT, 0), token: valid + "x", want: jwt.ErrTokenSignatureInvalid},
		{
			name:     "wrong issuer",
			verifier: NewVerifier(config.JWTConfig{Secret: testJWT.Secret, Issuer: "someone-else"}, 0),
			token:    valid,
			want:     jwt.ErrTokenInvalidIssuer,
		},
		{
			name:     "expired",
			verifier: NewVerifier(testJWT, 0),
			token:    issue(t, testJWT, time.Now().Add(-time.Hour), Grant{UserID: userID, TTL: 15 * time.Minute}),
			want:     jwt.ErrTokenExpired,
		},
		{name: "blank", verifier: NewVerifier(testJWT, 0), token: "  ", want: jwt.ErrTokenMalformed},
		{
			name:     "alg none",
			verifier: NewVerifier(testJWT, 0),
			token:    unsigned(t, Claims{UserID: userID}),
			want:     jwt.ErrTokenSignatureInvalid,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.verifier.Verify(tc.token)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestVerifyLeewayAbsorbsSkew(t *testing.T) {
	token := issue(t, testJWT, time.Now().Add(-time.Minute-5*time.Second), Grant{UserID: uuid.New(), TTL: time.Minute})

	_, err := NewVerifier(testJWT, 0).Verify(token)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
	_, err = NewVerifier(testJWT, 30*time.Second).Verify(token)
	require.NoError(t, err)
}

func TestClaimsValidate(t *testing.T) {
	id := uuid.New()
	assert.ErrorIs(t, (&Claims{}).Validate(), errMissingUser)
	mismatch := &Claims{UserID: id, RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()}}
	assert.ErrorIs(t, mismatch.Validate(), errSubjectMismatch)
	assert.NoError(t, (&Claims{UserID: id}).Validate())
}

func TestIssueRequiresGrant(t *testing.T) {
	_, err := Issue(testJWT, time.Now(), Grant{TTL: time.Minute})
	assert.ErrorIs(t, err, errMissingUser)
	_, err = Issue(testJWT, time.Now(), Grant{UserID: uuid.New()})
	assert.ErrorContains(t, err, "ttl")
	_, err = Issue(config.JWTConfig{Secret: "s"}, time.Now(), Grant{UserID: uuid.New(), TTL: time.Minute})
	assert.ErrorContains(t, err, "issuer")
}

func unsigned(t *testing.T, claims Claims) string {
	t.Helper()
	claims.Issuer = testJWT.Issuer
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return token
}
