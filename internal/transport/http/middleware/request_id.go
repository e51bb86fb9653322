package httpmw

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type ctxKey string

const (
	HeaderRequestID        = "X-Request-ID"
	ctxKeyReqID     ctxKey = "req_id"
)

// RequestID forwards an incoming X-Request-ID or mints a new one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, reqID)

		ctx := context.WithValue(r.Context(), ctxKeyReqID, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func RequestIDFromCtx(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyReqID).(string)
	return v
}
