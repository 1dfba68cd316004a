package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/hiroshi75/photoword/internal/pkg/httpx"
	"github.com/hiroshi75/photoword/internal/pkg/router"
	"github.com/hiroshi75/photoword/internal/pkg/serr"
)

// Recover turns a panicking handler into a JSON 500 response. Aborted
// handlers keep panicking so net/http can drop the connection.
func Recover() router.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}

				httpx.HandleErr(w, r, serr.NewServiceError(fmt.Errorf("panic: %v", v), http.StatusInternalServerError, "internal server error").
					With("request_id", RequestIDFromContext(r.Context())).
					With("stack_trace", string(debug.Stack())))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
