// Package metrics instruments a Subscriber with Prometheus counters and
// gauges. The subscriber package only depends on the Recorder interface
// below, so the core stays free of any metrics library import; this package
// is the sole place prometheus/client_golang is wired in.
package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the Prometheus-backed implementation of subscriber.Recorder.
// It satisfies that interface structurally; this package does not import
// subscriber, keeping the dependency edge one-directional. Register it once per process
// and pass it to every Subscriber that should be observed.
type Metrics struct {
	framesReceived *prometheus.CounterVec
	framesSent     *prometheus.CounterVec
	deliveryDepth  *prometheus.GaugeVec
	freePoolDepth  *prometheus.GaugeVec
	disconnects    *prometheus.CounterVec
	fetchTimeouts  *prometheus.CounterVec

	// totalReceived mirrors framesReceived's grand total outside of label
	// space, so a caller like internal/monitor can sample a plain rate
	// without walking the CounterVec's collected metric families.
	totalReceived atomic.Uint64
}

// New registers the subscriber metrics against reg. Passing
// prometheus.DefaultRegisterer matches the reference stack's own plugin
// client, which talks to the ambient default registry rather than
// constructing a private one.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gonats",
			Subsystem: "subscriber",
			Name:      "frames_received_total",
			Help:      "Frames decoded off the wire, labeled by subscriber name and frame kind.",
		}, []string{"subscriber", "kind"}),
		framesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gonats",
			Subsystem: "subscriber",
			Name:      "frames_sent_total",
			Help:      "Frames written to the wire, labeled by subscriber name and frame kind.",
		}, []string{"subscriber", "kind"}),
		deliveryDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gonats",
			Subsystem: "subscriber",
			Name:      "delivery_mailbox_depth",
			Help:      "Number of decoded messages currently queued for a Fetch call.",
		}, []string{"subscriber"}),
		freePoolDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gonats",
			Subsystem: "subscriber",
			Name:      "free_pool_depth",
			Help:      "Number of recycled Message objects currently available in the free pool.",
		}, []string{"subscriber"}),
		disconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gonats",
			Subsystem: "subscriber",
			Name:      "disconnects_total",
			Help:      "Number of times the reader thread exited, whether from Disconnect or a fatal error.",
		}, []string{"subscriber"}),
		fetchTimeouts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gonats",
			Subsystem: "subscriber",
			Name:      "fetch_timeouts_total",
			Help:      "Number of Fetch calls that returned Timeout.",
		}, []string{"subscriber"}),
	}
}

func (m *Metrics) FrameReceived(name, kind string) {
	m.framesReceived.WithLabelValues(name, kind).Inc()
	m.totalReceived.Add(1)
}
func (m *Metrics) FrameSent(name, kind string) { m.framesSent.WithLabelValues(name, kind).Inc() }

// FramesReceivedTotal returns the running count of frames received across
// every subscriber and kind, for callers that just need a plain rate (e.g.
// internal/monitor's sparkline) rather than a labeled breakdown.
func (m *Metrics) FramesReceivedTotal() uint64 { return m.totalReceived.Load() }
func (m *Metrics) DeliveryDepth(name string, depth int) {
	m.deliveryDepth.WithLabelValues(name).Set(float64(depth))
}
func (m *Metrics) FreePoolDepth(name string, depth int) {
	m.freePoolDepth.WithLabelValues(name).Set(float64(depth))
}
func (m *Metrics) Disconnected(name string) { m.disconnects.WithLabelValues(name).Inc() }
func (m *Metrics) FetchTimeout(name string) { m.fetchTimeouts.WithLabelValues(name).Inc() }

// Serve starts an HTTP server exposing the registered metrics on addr under
// /metrics. It blocks until the server stops; callers typically run it in
// its own goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
