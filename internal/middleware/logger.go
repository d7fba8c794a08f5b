package middleware

import (
	"app/internal/logger"
	"net/http"
	"time"
)

// statusRecorder captures the response status for the request log line.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggerMiddleware logs each HTTP request with status and duration.
func LoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		logger.New().Debug().
			Str("method", r.Method).
			Str("path", r.URL.RequestURI()).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
