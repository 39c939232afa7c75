package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/forgeline/sitesmith/pkg/types"
)

// Recovery catches panics escaping downstream handlers and converts
// them into a structured 500 response instead of tearing down the
// connection.
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						zap.String("error", fmt.Sprint(err)),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.ByteString("stack", debug.Stack()))

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(types.Response{
						Error: types.NewError(types.CodeToolExecution, "internal server error"),
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
