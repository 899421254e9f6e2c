package auth

import (
	"log/slog"
	"net/http"
	"strings"

	dErrors "anchorcred/pkg/domain-errors"
	"anchorcred/pkg/platform/httputil"
	"anchorcred/pkg/requestcontext"
)

// Authenticator resolves a bearer token to an issuer identity.
type Authenticator interface {
	Authenticate(token string) (string, error)
}

// RequireIssuer rejects requests without a valid issuer bearer token and
// stores the issuer identity in the request context.
func RequireIssuer(authenticator Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			issuer, err := authenticator.Authenticate(strings.TrimSpace(token))
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"request_id", requestID,
					"error", err,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithIssuer(ctx, issuer)))
		})
	}
}
