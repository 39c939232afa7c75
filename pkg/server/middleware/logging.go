package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/forgeline/sitesmith/pkg/types"
)

// Logging logs one line per request with method, path, session id,
// status and duration.
func Logging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := newResponseWriter(w)

			next.ServeHTTP(ww, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Int("status", ww.status),
				zap.Int64("bytes_written", ww.written),
				zap.Duration("duration", time.Since(start)),
			}
			if sid := r.Header.Get(types.HeaderSessionID); sid != "" {
				fields = append(fields, zap.String("session_id", sid))
			}

			switch {
			case ww.status >= 500:
				logger.Error("request failed", fields...)
			case ww.status >= 400:
				logger.Warn("request rejected", fields...)
			default:
				logger.Info("request served", fields...)
			}
		})
	}
}
