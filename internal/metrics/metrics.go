/*-------------------------------------------------------------------------
 *
 * sqlpilot - Prometheus Metrics
 *
 * Counters and histograms for the reasoning loop, tool execution, and the
 * HTTP surface, registered on the default registry at package load.
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlpilot_turns_total",
			Help: "Total number of question turns by outcome.",
		},
		[]string{"outcome"},
	)
	turnDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlpilot_turn_duration_seconds",
			Help:    "Wall-clock duration of a full question turn.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
	)
	turnRounds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlpilot_turn_reasoning_rounds",
			Help:    "Reasoning rounds needed to answer one turn.",
			Buckets: []float64{1, 2, 3, 4, 6, 8, 12, 16},
		},
	)

	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlpilot_tool_calls_total",
			Help: "Total number of tool executions by tool name and status.",
		},
		[]string{"tool", "status"},
	)
	toolCallDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlpilot_tool_call_duration_seconds",
			Help:    "Tool execution latency by tool name.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"tool"},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlpilot_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlpilot_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		turnsTotal,
		turnDurationSeconds,
		turnRounds,
		toolCallsTotal,
		toolCallDurationSeconds,
		httpRequestsTotal,
		httpRequestDurationSeconds,
	)
}

// Turn outcomes.
const (
	OutcomeAnswered  = "answered"
	OutcomeLoopLimit = "loop_limit"
	OutcomeError     = "error"
)

// ObserveTurn records one completed question turn.
func ObserveTurn(outcome string, rounds int, elapsed time.Duration) {
	turnsTotal.WithLabelValues(outcome).Inc()
	turnDurationSeconds.Observe(elapsed.Seconds())
	if rounds > 0 {
		turnRounds.Observe(float64(rounds))
	}
}

// ObserveToolCall records one tool execution.
func ObserveToolCall(tool string, isError bool, elapsed time.Duration) {
	status := "ok"
	if isError {
		status = "error"
	}
	toolCallsTotal.WithLabelValues(tool, status).Inc()
	toolCallDurationSeconds.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// Handler serves the default registry in Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency for every route it wraps.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		status := strconv.Itoa(recorder.status)
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpRequestDurationSeconds.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
