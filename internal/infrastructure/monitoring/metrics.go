package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Catalog metrics
	CatalogEntries *prometheus.GaugeVec
	ScansTotal     *prometheus.CounterVec
	ScanDuration   *prometheus.HistogramVec
	WatcherEvents  *prometheus.CounterVec

	// Installer metrics
	InstallsTotal   *prometheus.CounterVec
	InstallDuration *prometheus.HistogramVec

	// Loader metrics
	ModuleLoads *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests     int64   `json:"totalRequests"`
	TotalErrors       int64   `json:"totalErrors"`
	Installs          int64   `json:"installs"`
	FailedInstalls    int64   `json:"failedInstalls"`
	Scans             int64   `json:"scans"`
	ActiveConnections int64   `json:"activeConnections"`
	UptimeSeconds     float64 `json:"uptimeSeconds"`
}

// NewMetrics creates a metrics collector backed by its own registry, so
// several servers (and tests) can coexist in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nodegraph_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nodegraph_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nodegraph_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000, 50000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nodegraph_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		CatalogEntries: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "nodegraph_catalog_entries",
				Help: "Number of catalog entries by kind and status",
			},
			[]string{"kind", "status"},
		),
		ScansTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nodegraph_catalog_scans_total",
				Help: "Total number of directory scans",
			},
			[]string{"kind", "result"},
		),
		ScanDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nodegraph_catalog_scan_duration_seconds",
				Help:    "Directory scan duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"kind"},
		),
		WatcherEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nodegraph_watcher_events_total",
				Help: "Filesystem events that scheduled a rescan",
			},
			[]string{"kind", "op"},
		),

		InstallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nodegraph_installs_total",
				Help: "Archive installs by outcome",
			},
			[]string{"kind", "outcome"},
		),
		InstallDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nodegraph_install_duration_seconds",
				Help:    "Archive install duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"kind"},
		),

		ModuleLoads: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nodegraph_module_loads_total",
				Help: "Remote module loads by result",
			},
			[]string{"result"},
		),

		WSConnections: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "nodegraph_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nodegraph_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	f.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "nodegraph_uptime_seconds",
			Help: "Server uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry backing these metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordScan records a completed directory scan and the resulting catalog shape
func (m *Metrics) RecordScan(kind string, duration time.Duration, byStatus map[string]int, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.ScansTotal.WithLabelValues(kind, result).Inc()
	m.ScanDuration.WithLabelValues(kind).Observe(duration.Seconds())

	if err == nil {
		for _, status := range []string{"installed", "enabled", "disabled", "error"} {
			m.CatalogEntries.WithLabelValues(kind, status).Set(float64(byStatus[status]))
		}
	}

	m.mu.Lock()
	m.snapshot.Scans++
	m.mu.Unlock()
}

// RecordInstall records the outcome of an archive install
func (m *Metrics) RecordInstall(kind, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.InstallsTotal.WithLabelValues(kind, outcome).Inc()
	m.InstallDuration.WithLabelValues(kind).Observe(duration.Seconds())

	m.mu.Lock()
	if outcome == "success" {
		m.snapshot.Installs++
	} else {
		m.snapshot.FailedInstalls++
	}
	m.mu.Unlock()
}

// RecordWatcherEvent records a filesystem event that scheduled a rescan
func (m *Metrics) RecordWatcherEvent(kind, op string) {
	if m == nil {
		return
	}
	m.WatcherEvents.WithLabelValues(kind, op).Inc()
}

// RecordModuleLoad records a remote module load result
func (m *Metrics) RecordModuleLoad(result string) {
	if m == nil {
		return
	}
	m.ModuleLoads.WithLabelValues(result).Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// Snapshot returns the current values for the JSON API
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
