package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"provegapi/pkg/requestcontext"
)

// RequireAPIToken guards the API operations with a static token. The host
// platform owns real permissioning; this is the transport-level stand-in
// for the original's "access ProVeg API" permission.
func RequireAPIToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Api-Token")
			// Constant-time comparison to prevent timing attacks.
			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "api token mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"is_error":1,"error_message":"API token required","error_code":"unauthorized"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
