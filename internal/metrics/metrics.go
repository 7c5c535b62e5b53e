package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Freeeeeet/slot_scheduler/internal/model"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "slot_scheduler"

// Фиксированные значения меток для входа, не совпавшего с известными операциями и маршрутами
const (
	OperationUnknown = "unknown"
	RouteUnmatched   = "unmatched"
)

const (
	OutcomeOK        = "ok"
	OutcomeInvalid   = "invalid"
	OutcomeConflict  = "conflict"
	OutcomeStale     = "stale"
	OutcomeForbidden = "forbidden"
	OutcomeNotFound  = "not_found"
	OutcomeError     = "error"
)

var (
	SlotOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_operations_total",
			Help:      "Slot operations by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Outcome классифицирует результат операции над слотом
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, model.ErrValidation):
		return OutcomeInvalid
	case errors.Is(err, model.ErrSlotConflict):
		return OutcomeConflict
	case errors.Is(err, model.ErrStaleState):
		return OutcomeStale
	case errors.Is(err, model.ErrForbiddenTransition):
		return OutcomeForbidden
	case errors.Is(err, model.ErrNotFound):
		return OutcomeNotFound
	}
	return OutcomeError
}

// ObserveSlotOperation учитывает операцию и возвращает её исход
func ObserveSlotOperation(operation string, err error) string {
	outcome := Outcome(err)
	SlotOperationsTotal.WithLabelValues(operation, outcome).Inc()
	return outcome
}

// Handler отдаёт метрики в формате Prometheus
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
		w.ResponseWriter.WriteHeader(code)
	}
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Middleware считает запросы по шаблону маршрута chi; сырые пути в метки не попадают
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := RouteUnmatched
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
	})
}
