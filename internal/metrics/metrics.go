package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kstaniek/groundstation/internal/logging"
)

// Prometheus counters
var (
	RawBytesRead = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "raw_bytes_read_total",
		Help: "Total raw bytes read from a device adapter.",
	}, []string{"kind"})
	PacketsDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "packets_decoded_total",
		Help: "Total packets decoded per format.",
	}, []string{"format"})
	AdapterReadErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adapter_read_errors_total",
		Help: "Total hard read_raw errors per device kind.",
	}, []string{"kind"})
	AdapterTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adapter_read_timeouts_total",
		Help: "Total read_raw timeouts per device kind (not an error).",
	}, []string{"kind"})
	LogWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "logstore_write_errors_total",
		Help: "Total LogStore write failures (raw or decoded), logged and swallowed.",
	})
	PipelineTickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pipeline_tick_duration_seconds",
		Help:    "Wall time of one Pipeline tick across every registered device.",
		Buckets: prometheus.DefBuckets,
	})
	EventBusDroppedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventbus_dropped_events_total",
		Help: "Total events dropped by the event bus due to slow subscribers.",
	})
	EventBusKickedClients = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventbus_kicked_clients_total",
		Help: "Total subscribers disconnected due to the kick backpressure policy.",
	})
	EventBusActiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eventbus_active_clients",
		Help: "Current number of active event bus subscribers.",
	})
	EventBusBroadcastFanout = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eventbus_broadcast_fanout",
		Help: "Number of subscribers targeted in the most recent publish.",
	})
	CatalogueFormatsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalogue_formats",
		Help: "Current number of registered packet formats.",
	})
	RegisteredDevicesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "registered_devices",
		Help: "Current number of registered devices.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality).
const (
	ErrCatalogueLoad = "catalogue_load"
	ErrCatalogueSave = "catalogue_save"
	ErrAdapterRead   = "adapter_read"
	ErrAdapterWrite  = "adapter_write"
	ErrLogStoreRaw   = "logstore_raw"
	ErrLogStoreCSV   = "logstore_csv"
	ErrEndpointScan  = "endpoint_scan"
)

// StartHTTP serves Prometheus metrics at /metrics and a readiness probe at
// /ready on addr.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for easy logging (avoid Prometheus scraping in-process).
var (
	localErrors     uint64
	localHubClients uint64
	localFanout     uint64
	localHubDrop    uint64
	localHubKick    uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	Errors     uint64
	Clients    uint64
	Fanout     uint64
	DroppedMsg uint64
	Kicks      uint64
}

func Snap() Snapshot {
	return Snapshot{
		Errors:     atomic.LoadUint64(&localErrors),
		Clients:    atomic.LoadUint64(&localHubClients),
		Fanout:     atomic.LoadUint64(&localFanout),
		DroppedMsg: atomic.LoadUint64(&localHubDrop),
		Kicks:      atomic.LoadUint64(&localHubKick),
	}
}

func IncRawBytesRead(kind string, n int) { RawBytesRead.WithLabelValues(kind).Add(float64(n)) }
func IncPacketsDecoded(format string) { PacketsDecoded.WithLabelValues(format).Inc() }
func IncAdapterReadError(kind string) { AdapterReadErrors.WithLabelValues(kind).Inc() }
func IncAdapterTimeout(kind string) { AdapterTimeouts.WithLabelValues(kind).Inc() }
func IncLogWriteError() { LogWriteErrors.Inc() }
func ObserveTickDuration(seconds float64) { PipelineTickDuration.Observe(seconds) }
func SetCatalogueFormats(n int) { CatalogueFormatsGauge.Set(float64(n)) }
func SetRegisteredDevices(n int) { RegisteredDevicesGauge.Set(float64(n)) }

func IncHubDrop() {
	EventBusDroppedEvents.Inc()
	atomic.AddUint64(&localHubDrop, 1)
}

func IncHubKick() {
	EventBusKickedClients.Inc()
	atomic.AddUint64(&localHubKick, 1)
}

func SetHubClients(n int) {
	EventBusActiveClients.Set(float64(n))
	atomic.StoreUint64(&localHubClients, uint64(n))
}

func SetBroadcastFanout(n int) {
	EventBusBroadcastFanout.Set(float64(n))
	atomic.StoreUint64(&localFanout, uint64(n))
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{
		ErrCatalogueLoad, ErrCatalogueSave, ErrAdapterRead, ErrAdapterWrite,
		ErrLogStoreRaw, ErrLogStoreCSV, ErrEndpointScan,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil { // if not set yet, treat as ready so metrics endpoint doesn't flap
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
