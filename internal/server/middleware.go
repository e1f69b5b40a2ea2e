// HTTP middleware for request metrics and logging
package server

import (
	"net/http"
	"strconv"
	"time"
)

// statusRecorder captures the response status for metrics and logs.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument wraps a handler with per-route request metrics and logging.
func (s *Server) instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.m.HTTPRequestsInFlight.Inc()
		defer s.m.HTTPRequestsInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)

		duration := time.Since(start)
		s.m.RecordHTTPRequest(r.Method, route, strconv.Itoa(rec.status), duration)
		s.log.LogHTTPRequest(r.Method, r.URL.Path, rec.status, duration)
	}
}
