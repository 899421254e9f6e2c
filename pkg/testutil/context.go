package testutil

import (
	"net/http"

	"anchorcred/pkg/requestcontext"
)

// WithIssuer adds an authenticated issuer to the request context, as the
// issuer auth middleware would.
func WithIssuer(req *http.Request, issuer string) *http.Request {
	return req.WithContext(requestcontext.WithIssuer(req.Context(), issuer))
}

// WithRequestID adds a correlation id to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
