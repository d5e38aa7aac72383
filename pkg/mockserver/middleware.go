package mockserver

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// requestLogger logs every request at debug level, and server errors at
// warn level.
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		entry := s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"route":    r.URL.Path,
			"status":   ww.Status(),
			"bytes":    ww.BytesWritten(),
			"client":   extractIP(r),
			"duration": time.Since(start),
		})

		if ww.Status() >= http.StatusInternalServerError {
			entry.Warn("Request failed")

			return
		}

		entry.Debug("Request served")
	})
}
