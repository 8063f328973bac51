// Package metrics holds the Prometheus collectors for try-on sessions.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/menta2k/virtual-tryon/pkg/types"
)

// Metrics groups the session collectors. A nil *Metrics records nothing.
type Metrics struct {
	Uploads          *prometheus.CounterVec
	TryOns           *prometheus.CounterVec
	PipelineDuration prometheus.Histogram
	Processing       prometheus.Gauge
}

// New registers the collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Uploads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tryon_uploads_total",
				Help: "Total number of photo uploads by result",
			},
			[]string{"result"},
		),
		TryOns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tryon_runs_total",
				Help: "Total number of try-on actions by outcome",
			},
			[]string{"outcome"},
		),
		PipelineDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tryon_pipeline_duration_seconds",
				Help:    "Duration of the detect, fit and render pipeline in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
		Processing: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tryon_processing",
				Help: "Number of try-on pipelines currently running",
			},
		),
	}
}

// OutcomeDiscarded labels runs whose result was dropped because the session
// was reset while they ran
const OutcomeDiscarded = "discarded"

// Outcome is the label value for err: "ok" or the lower-case error kind
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := types.KindOf(err); kind != "" {
		return strings.ToLower(string(kind))
	}
	return "error"
}

// RecordUpload counts an upload attempt
func (m *Metrics) RecordUpload(err error) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(Outcome(err)).Inc()
}

// RecordBlocked counts a try-on rejected before the pipeline started
func (m *Metrics) RecordBlocked() {
	if m == nil {
		return
	}
	m.TryOns.WithLabelValues(Outcome(types.ErrActionBlocked)).Inc()
}

// PipelineStarted marks a pipeline run as in flight
func (m *Metrics) PipelineStarted() {
	if m == nil {
		return
	}
	m.Processing.Inc()
}

// PipelineFinished records a completed pipeline run
func (m *Metrics) PipelineFinished(err error, d time.Duration) {
	if m == nil {
		return
	}
	m.Processing.Dec()
	m.PipelineDuration.Observe(d.Seconds())
	m.TryOns.WithLabelValues(Outcome(err)).Inc()
}

// PipelineDiscarded records a run that finished after a reset and was not committed
func (m *Metrics) PipelineDiscarded(d time.Duration) {
	if m == nil {
		return
	}
	m.Processing.Dec()
	m.PipelineDuration.Observe(d.Seconds())
	m.TryOns.WithLabelValues(OutcomeDiscarded).Inc()
}
