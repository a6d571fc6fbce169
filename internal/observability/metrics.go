package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Step outcomes used as the status label of tool step metrics.
const (
	StatusOK            = "ok"
	StatusUnknownTool   = "unknown_tool"
	StatusInvalidInput  = "invalid_input"
	StatusDenied        = "denied"
	StatusRejected      = "rejected"
	StatusFailed        = "failed"
	StatusInvalidOutput = "invalid_output"
)

type moduleMetrics struct {
	toolStepTotal    *prometheus.CounterVec
	toolStepDuration *prometheus.HistogramVec

	planTotal     *prometheus.CounterVec
	planDuration  prometheus.Histogram
	macroRunTotal *prometheus.CounterVec

	llmRequestTotal    *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec

	indexedDocuments prometheus.Counter
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			toolStepTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "followgpt_tool_step_total",
					Help: "Total tool steps by tool and outcome.",
				},
				[]string{"tool", "status"},
			),
			toolStepDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "followgpt_tool_step_duration_seconds",
					Help:    "Tool step duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			planTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "followgpt_plan_total",
					Help: "Total plans by status (planned, parse_error, llm_error, completed).",
				},
				[]string{"status"},
			),
			planDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "followgpt_plan_execution_duration_seconds",
					Help:    "Plan execution duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			macroRunTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "followgpt_macro_run_total",
					Help: "Total macro runs by status.",
				},
				[]string{"status"},
			),
			llmRequestTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "followgpt_llm_request_total",
					Help: "Total completion requests by provider and status.",
				},
				[]string{"provider", "status"},
			),
			llmRequestDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "followgpt_llm_request_duration_seconds",
					Help:    "Completion request duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			indexedDocuments: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "followgpt_indexed_documents_total",
					Help: "Total documents written to the search index.",
				},
			),
		}

		prometheus.MustRegister(
			m.toolStepTotal,
			m.toolStepDuration,
			m.planTotal,
			m.planDuration,
			m.macroRunTotal,
			m.llmRequestTotal,
			m.llmRequestDuration,
			m.indexedDocuments,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordToolStep(tool, status string, duration time.Duration) {
	m := getMetrics()
	m.toolStepTotal.WithLabelValues(tool, status).Inc()
	m.toolStepDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func RecordPlan(status string) {
	getMetrics().planTotal.WithLabelValues(status).Inc()
}

func RecordPlanExecution(duration time.Duration) {
	getMetrics().planDuration.Observe(duration.Seconds())
}

func RecordMacroRun(success bool) {
	status := "error"
	if success {
		status = "success"
	}
	getMetrics().macroRunTotal.WithLabelValues(status).Inc()
}

func RecordLLMRequest(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.llmRequestTotal.WithLabelValues(provider, status).Inc()
	m.llmRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordIndexedDocuments(count int) {
	getMetrics().indexedDocuments.Add(float64(count))
}
