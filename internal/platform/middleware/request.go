package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"secretsanta/pkg/requestcontext"
)

const requestIDHeader = "X-Request-ID"

// RequestContext assigns a request id (reusing an incoming X-Request-ID) and
// pins the request time for everything downstream.
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		ctx = requestcontext.WithTime(ctx, time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
