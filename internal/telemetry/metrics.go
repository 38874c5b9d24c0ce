package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "rpabot"

// Metrics — Prometheus-метрики одного процесса бота.
//
// Используется собственный реестр: бот живёт один run, и метрики
// либо отдаются на /metrics сервера статуса, либо отправляются в
// Pushgateway при завершении.
type Metrics struct {
	registry *prometheus.Registry

	runs         *prometheus.CounterVec
	attempts     *prometheus.CounterVec
	failures     *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	currentStep  prometheus.Gauge
}

// NewMetrics создаёт и регистрирует метрики.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished runs by terminal status.",
		}, []string{"status"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_attempts_total",
			Help:      "Step attempts by step and outcome.",
		}, []string{"step", "outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_failures_total",
			Help:      "Step failures by kind.",
		}, []string{"kind"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of a single step attempt.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 1800},
		}, []string{"step"}),
		currentStep: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_step",
			Help:      "Index of the step being executed.",
		}),
	}

	m.registry.MustRegister(
		m.runs, m.attempts, m.failures, m.stepDuration, m.currentStep,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RunFinished учитывает завершённый run.
func (m *Metrics) RunFinished(status string) {
	m.runs.WithLabelValues(status).Inc()
}

// StepAttempt учитывает попытку шага.
func (m *Metrics) StepAttempt(step, outcome, kind string, d time.Duration) {
	m.attempts.WithLabelValues(step, outcome).Inc()
	m.stepDuration.WithLabelValues(step).Observe(d.Seconds())
	if kind != "" {
		m.failures.WithLabelValues(kind).Inc()
	}
}

// SetCurrentStep выставляет индекс текущего шага.
func (m *Metrics) SetCurrentStep(index int) {
	m.currentStep.Set(float64(index))
}

// Registry возвращает реестр метрик.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler возвращает HTTP-обработчик /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Push отправляет метрики в Pushgateway.
// job — имя задания, processCode попадает в группировку.
func (m *Metrics) Push(ctx context.Context, url, job, processCode string) error {
	err := push.New(url, job).
		Gatherer(m.registry).
		Grouping("process_code", processCode).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
