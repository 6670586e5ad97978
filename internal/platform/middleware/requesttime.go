package middleware

import (
	"net/http"
	"time"

	"provegapi/pkg/requestcontext"
)

// RequestTime captures the current time at the start of the request so all
// operations within one submission see the same "now".
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Actor stamps the configured acting contact onto the request context. The
// failure-audit activity uses it as its source contact.
func Actor(contactID int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithActorContactID(r.Context(), contactID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
