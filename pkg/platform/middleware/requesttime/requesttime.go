// Package requesttime pins a single "now" per HTTP request so ledger
// anchors, audit events and log lines agree on the timestamp.
package requesttime

import (
	"net/http"
	"time"

	"anchorcred/pkg/requestcontext"
)

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
