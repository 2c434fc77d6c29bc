package httpapi

import (
	"net/http"

	"github.com/google/uuid"
)

const requestIDHeader = "X-REQUEST-ID"

// withCorrelation echoes the caller's X-CORRELATION-ID back on the
// response, and sets X-REQUEST-ID on the response: the caller's value if
// it sent one, otherwise a freshly assigned one, so server logs can be
// tied back to a single request even when several share a correlation ID.
func withCorrelation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if correlationID := r.Header.Get(correlationIDHeader); correlationID != "" {
			w.Header().Set(correlationIDHeader, correlationID)
		}
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r)
	})
}
