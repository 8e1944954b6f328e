package monitoring

import (
	"errors"
	"time"

	"github.com/camview/camview/pkg/frame"
	"github.com/camview/camview/pkg/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "camview"

// Metrics counts render and capture events.
// It is both a render.Observer and a capture.Observer.
type Metrics struct {
	reg *prometheus.Registry

	drawn         prometheus.Counter
	failed        *prometheus.CounterVec
	reallocations prometheus.Counter
	drawTime      prometheus.Histogram
	captured      prometheus.Counter
	dropped       prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		drawn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "render", Name: "frames_drawn_total",
			Help: "Frames drawn into the viewport.",
		}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "render", Name: "frames_failed_total",
			Help: "Frames that were not drawn.",
		}, []string{"reason"}),
		reallocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "render", Name: "texture_reallocations_total",
			Help: "Texture sets created for a new frame geometry.",
		}),
		drawTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "render", Name: "draw_seconds",
			Help:    "Time spent in one draw call.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		}),
		captured: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "capture", Name: "frames_total",
			Help: "Frames queued for the renderer.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "capture", Name: "frames_dropped_total",
			Help: "Frames lost to a slow consumer or out of order.",
		}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.drawn, m.failed, m.reallocations, m.drawTime, m.captured, m.dropped,
	)
	return m
}

// Registry is where the metrics are registered.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Drawn(took time.Duration) {
	m.drawn.Inc()
	m.drawTime.Observe(took.Seconds())
}

func (m *Metrics) Failed(err error) { m.failed.WithLabelValues(reason(err)).Inc() }

func (m *Metrics) Reallocated() { m.reallocations.Inc() }
func (m *Metrics) Captured()    { m.captured.Inc() }
func (m *Metrics) Dropped()     { m.dropped.Inc() }

func reason(err error) string {
	switch {
	case errors.Is(err, render.ErrNotSetUp):
		return "not_set_up"
	case errors.Is(err, frame.ErrMalformed):
		return "malformed"
	case errors.Is(err, render.ErrViewport):
		return "viewport"
	case errors.Is(err, render.ErrDriver):
		return "driver"
	}
	return "other"
}
