package helper

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the rendering pipeline.
type Metrics struct {
	Renders         *prometheus.CounterVec   // labels: kind={frame,animation,share}, outcome={success,not_found,out_of_range,error}
	RenderDuration  *prometheus.HistogramVec // labels: kind
	FramesRendered  prometheus.Counter
	ArtifactsStored prometheus.Counter
	ArtifactsSwept  prometheus.Counter
	DatasetSteps    prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "isobar",
			Name:      "renders_total",
			Help:      "Render requests by kind and outcome.",
		}, []string{"kind", "outcome"}),
		RenderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "isobar",
			Name:      "render_duration_seconds",
			Help:      "Wall time of a complete render request.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"kind"}),
		FramesRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "isobar",
			Name:      "frames_rendered_total",
			Help:      "Individual frames composed, including animation frames.",
		}),
		ArtifactsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "isobar",
			Name:      "artifacts_stored_total",
			Help:      "Shareable artifacts written to the artifact directory.",
		}),
		ArtifactsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "isobar",
			Name:      "artifacts_swept_total",
			Help:      "Artifacts removed by the retention policy.",
		}),
		DatasetSteps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "isobar",
			Name:      "dataset_time_steps",
			Help:      "Number of time steps in the loaded dataset.",
		}),
	}

	reg.MustRegister(
		m.Renders,
		m.RenderDuration,
		m.FramesRendered,
		m.ArtifactsStored,
		m.ArtifactsSwept,
		m.DatasetSteps,
	)

	return m
}

// NewMetricsForTesting registers on a throwaway registry so tests can build
// as many instances as they like.
func NewMetricsForTesting() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
