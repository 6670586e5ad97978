package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"provegapi/pkg/apierrors"
	"provegapi/pkg/platform/httputil"
	"provegapi/pkg/requestcontext"
)

// Recovery converts panics into internal_error envelopes so callers never
// see an unhandled fault.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					ctx := r.Context()
					logger.ErrorContext(ctx, "panic recovered",
						"request_id", requestcontext.RequestID(ctx),
						"panic", rec,
						"stack", string(debug.Stack()),
					)
					httputil.WriteError(w, apierrors.New(apierrors.CodeInternal, "internal error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
