package mockapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nellyag1/wavescape-portal222/internal/logging"
)

// RequestID tags each response with a short request identifier.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-ID", uuid.NewString()[:8])
		next.ServeHTTP(w, r)
	})
}

// Logger writes one debug line per request.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		logging.Debug(fmt.Sprintf("%s %s -> %d (%s) [%s]",
			r.Method, r.URL.Path, sw.status, time.Since(start).Round(time.Microsecond), w.Header().Get("X-Request-ID")))
	})
}

// Recovery turns a handler panic into a 500.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logging.Error(fmt.Sprintf("panic serving %s: %v", r.URL.Path, err))
				writeText(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
