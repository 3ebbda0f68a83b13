// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codesnip_http_requests_total",
		Help: "HTTP requests by route, method and status code",
	}, []string{"route", "method", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "codesnip_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	estimates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codesnip_complexity_estimates_total",
		Help: "Complexity estimates by resulting class",
	}, []string{"class"})

	snippetsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codesnip_snippets_created_total",
		Help: "Snippets created",
	})

	snippetsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codesnip_snippets_deleted_total",
		Help: "Snippets deleted",
	})

	snippetViews = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codesnip_snippet_views_total",
		Help: "Counted snippet views",
	})

	authFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codesnip_auth_failures_total",
		Help: "Rejected authentication attempts by reason",
	}, []string{"reason"})

	analyticsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "codesnip_analytics_events_dropped_total",
		Help: "View events dropped because the analytics sink failed or was full",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveEstimate counts one complexity estimate.
func ObserveEstimate(class string) { estimates.WithLabelValues(class).Inc() }

// SnippetCreated counts a created snippet.
func SnippetCreated() { snippetsCreated.Inc() }

// SnippetDeleted counts a deleted snippet.
func SnippetDeleted() { snippetsDeleted.Inc() }

// SnippetViewed counts a view that incremented a snippet's counter.
func SnippetViewed() { snippetViews.Inc() }

// AuthFailure counts a rejected login, registration or token.
func AuthFailure(reason string) { authFailures.WithLabelValues(reason).Inc() }

// AnalyticsDropped counts view events that never reached the sink.
func AnalyticsDropped(n int) { analyticsDropped.Add(float64(n)) }

// Middleware records request counts and latency labelled by the matched
// chi route pattern, so path parameters do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
