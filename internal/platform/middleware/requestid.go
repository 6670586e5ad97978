package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"provegapi/pkg/requestcontext"
)

// RequestID assigns each request a correlation ID, honoring an inbound
// X-Request-Id header when present.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
