package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"stripe-webhook-router/internal/common/errors"
	"stripe-webhook-router/internal/common/logging"
)

// Recovery turns a panic in next into a 500 JSON error
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err := errors.InternalError("panic while serving request", fmt.Errorf("%v", rec))
			logging.WithContext(r.Context()).Error("recovered from panic", err,
				logging.String("path", r.URL.Path),
				logging.String("stack", string(debug.Stack())),
			)
			WriteError(w, err)
		}()
		next.ServeHTTP(w, r)
	})
}
