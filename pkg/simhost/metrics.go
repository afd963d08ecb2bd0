package simhost

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metric descriptors for the host.
type Metrics struct {
	startTime time.Time

	sessions         *prometheus.GaugeVec
	playersOnline    prometheus.Gauge
	connectionsTotal *prometheus.CounterVec
	commandsTotal    *prometheus.CounterVec
	chatLines        *prometheus.CounterVec
	deliveries       prometheus.Counter
	uptimeSeconds    prometheus.Gauge
	memoryHeapBytes  prometheus.Gauge
	goroutines       prometheus.Gauge
}

// NewMetrics creates the host metrics and registers them with reg. A nil
// reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		startTime: time.Now(),
		sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "simhost_sessions",
			Help: "Logged-in sessions by transport.",
		}, []string{"transport"}),
		playersOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simhost_players_online",
			Help: "Number of online players.",
		}),
		connectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simhost_connections_total",
			Help: "Total connections since start by transport.",
		}, []string{"transport"}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simhost_commands_total",
			Help: "Commands dispatched, by kind.",
		}, []string{"kind"}),
		chatLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simhost_chat_lines_total",
			Help: "Chat lines submitted, by outcome.",
		}, []string{"outcome"}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simhost_chat_deliveries_total",
			Help: "Chat lines delivered to a recipient.",
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simhost_uptime_seconds",
			Help: "Host uptime in seconds.",
		}),
		memoryHeapBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simhost_memory_heap_bytes",
			Help: "Go heap memory allocated in bytes.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simhost_goroutines",
			Help: "Number of active goroutines.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.sessions,
			m.playersOnline,
			m.connectionsTotal,
			m.commandsTotal,
			m.chatLines,
			m.deliveries,
			m.uptimeSeconds,
			m.memoryHeapBytes,
			m.goroutines,
		)
	}
	return m
}

func (m *Metrics) connected(t TransportType) {
	if m == nil {
		return
	}
	m.connectionsTotal.WithLabelValues(t.String()).Inc()
}

func (m *Metrics) loggedIn(t TransportType, delta float64) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(t.String()).Add(delta)
}

func (m *Metrics) command(kind string) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) chat(outcome string, delivered int) {
	if m == nil {
		return
	}
	m.chatLines.WithLabelValues(outcome).Inc()
	m.deliveries.Add(float64(delivered))
}

// Update refreshes the gauges that are sampled rather than counted.
func (m *Metrics) Update(online int) {
	m.playersOnline.Set(float64(online))
	m.uptimeSeconds.Set(time.Since(m.startTime).Seconds())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	m.memoryHeapBytes.Set(float64(mem.HeapAlloc))
	m.goroutines.Set(float64(runtime.NumGoroutine()))
}

// Handler returns an http.Handler that updates the gauges before serving
// everything g gathers.
func (m *Metrics) Handler(g prometheus.Gatherer, online func() int) http.Handler {
	inner := promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Update(online())
		inner.ServeHTTP(w, r)
	})
}
