package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/bedbroker-backend/api/responses"
	pkgAuth "github.com/angelmondragon/bedbroker-backend/pkg/auth"
	"github.com/angelmondragon/bedbroker-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/bedbroker-backend/pkg/errors"
	"github.com/angelmondragon/bedbroker-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the actor.
// revocations may be nil when no denylist is configured.
func Auth(cfg config.JWTConfig, revocations pkgAuth.RevocationChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	verifier := pkgAuth.NewVerifier(cfg, cfg.Leeway)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			if revocations != nil {
				revoked, err := revocations.IsRevoked(r.Context(), claims.ID)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check token revocation"))
					return
				}
				if revoked {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "token revoked"))
					return
				}
			}

			ctx := WithActor(r.Context(), Actor{ID: claims.UserID, Role: claims.Role})
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID.String())
				if claims.Role != "" {
					ctx = logg.WithField(ctx, "actor_role", claims.Role)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) >= 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = raw[7:]
	}
	return strings.TrimSpace(raw)
}
