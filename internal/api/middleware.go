package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"cropwise-go/internal/logging"
	"cropwise-go/internal/metrics"
)

// requestLogger logs every request with zerolog and records the Prometheus
// request metrics under the matched route pattern.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		metrics.RecordAPIRequest(r.Method, route, strconv.Itoa(status), elapsed)

		event := logging.Info()
		if status >= http.StatusInternalServerError {
			event = logging.Error()
		} else if route == "/metrics" || route == "/health" {
			event = logging.Debug()
		}
		event.
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", route).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", elapsed).
			Msg("http request")
	})
}

// routePattern keeps metric cardinality bounded: unmatched paths share one
// label.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
