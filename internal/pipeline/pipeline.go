// Package pipeline runs the single periodic tick that drives the whole
// ground station: poll every registered device, tee its raw bytes to the
// log store, decode against the current catalogue snapshot, and publish
// the results to the event bus.
package pipeline

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/kstaniek/groundstation/internal/adapters"
	"github.com/kstaniek/groundstation/internal/catalogue"
	"github.com/kstaniek/groundstation/internal/eventbus"
	"github.com/kstaniek/groundstation/internal/logging"
	"github.com/kstaniek/groundstation/internal/logstore"
	"github.com/kstaniek/groundstation/internal/metrics"
	"github.com/kstaniek/groundstation/internal/registry"
	"github.com/kstaniek/groundstation/internal/telemetry"
)

// DefaultPeriod is the tick interval absent a configuration override.
const DefaultPeriod = 50 * time.Millisecond

// Pipeline owns the single polling goroutine. Locks are never held across
// ticks: each tick takes a Catalogue snapshot, releases it, then polls
// every device and publishes without reacquiring the Catalogue lock.
type Pipeline struct {
	cat      *catalogue.Catalogue
	reg      *registry.Registry
	logs     *logstore.Store
	bus      *eventbus.Bus
	period   time.Duration
	stop     chan struct{}
	done     chan struct{}
	tickedAt atomic.Int64
}

// New constructs a Pipeline. period <= 0 uses DefaultPeriod.
func New(cat *catalogue.Catalogue, reg *registry.Registry, logs *logstore.Store, bus *eventbus.Bus, period time.Duration) *Pipeline {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Pipeline{cat: cat, reg: reg, logs: logs, bus: bus, period: period, stop: make(chan struct{}), done: make(chan struct{})}
}

// Run blocks ticking until Stop is called. Intended to be run in its own
// goroutine.
func (p *Pipeline) Run() {
	defer close(p.done)
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

// Stop signals Run to exit at its next iteration and blocks until it has.
// LogStore files are closed here: shutdown drops the Pipeline handle, and
// a partially-read raw buffer is lost by design since its bytes are
// already flushed to the raw log.
func (p *Pipeline) Stop() {
	close(p.stop)
	<-p.done
	p.logs.Close()
}

// Ready reports whether the Pipeline has completed at least one tick,
// wired into metrics.SetReadinessFunc by the caller.
func (p *Pipeline) Ready() bool { return p.tickedAt.Load() > 0 }

func (p *Pipeline) tick() {
	start := time.Now()
	defer func() { metrics.ObserveTickDuration(time.Since(start).Seconds()) }()

	var endpoints []registry.Endpoint
	if changed, err := p.reg.EnumerateEndpoints(); err != nil {
		logging.L().Error("pipeline: enumerate endpoints", "error", err)
		metrics.IncError(metrics.ErrEndpointScan)
		p.bus.Publish(eventbus.Event{Topic: eventbus.TopicError, Payload: err.Error()})
	} else if changed != nil {
		endpoints = changed
		p.bus.Publish(eventbus.Event{Topic: eventbus.TopicEndpointUpdate, Payload: changed})
	}

	snap := p.cat.Snapshot()
	devices := p.reg.Snapshot()
	metrics.SetRegisteredDevices(len(devices))
	metrics.SetCatalogueFormats(len(snap.Formats))

	var batch []telemetry.DecodedPacket
	for _, dev := range devices {
		if !dev.IsInitialised() {
			continue
		}
		packets := p.pollDevice(dev, snap)
		batch = append(batch, packets...)
	}

	p.tickedAt.Store(time.Now().UnixMilli())

	if len(batch) > 0 || endpoints != nil {
		p.bus.Publish(eventbus.Event{
			Topic:   eventbus.TopicTelemetryUpdate,
			Payload: eventbus.TelemetryBatch{Packets: batch, Endpoints: endpoints},
		})
	}
}

func (p *Pipeline) pollDevice(dev adapters.DeviceAdapter, snap catalogue.Snapshot) []telemetry.DecodedPacket {
	raw, err := dev.ReadRaw()
	if err != nil {
		if err == adapters.ErrTimedOut {
			metrics.IncAdapterTimeout(string(dev.Kind()))
			return nil
		}
		logging.L().Error("pipeline: read_raw", "kind", dev.Kind(), "id", dev.ID(), "error", err)
		metrics.IncAdapterReadError(string(dev.Kind()))
		p.bus.Publish(eventbus.Event{Topic: eventbus.TopicError, Payload: err.Error()})
		return nil
	}
	if len(raw) > 0 {
		metrics.IncRawBytesRead(string(dev.Kind()), len(raw))
		p.logs.AppendRaw(dev.Kind(), dev.ID(), raw)
	}

	packets, err := dev.Parse()
	if err != nil {
		logging.L().Error("pipeline: parse", "kind", dev.Kind(), "id", dev.ID(), "error", err)
		p.bus.Publish(eventbus.Event{Topic: eventbus.TopicError, Payload: err.Error()})
		return nil
	}
	for _, pkt := range packets {
		metrics.IncPacketsDecoded(pkt.FormatName)
		p.logDecoded(pkt, snap)
	}
	return packets
}

// logDecoded writes pkt to its per-format CSV log, deriving the header
// from the Catalogue's field names when the format is a registered one;
// device-family adapters that emit against well-known names with no
// Catalogue entry (AIM, Featherweight) fall back to generic column names
// sized to the packet's own value count.
func (p *Pipeline) logDecoded(pkt telemetry.DecodedPacket, snap catalogue.Snapshot) {
	fieldNames := fieldNamesFor(pkt, snap)
	p.logs.AppendDecoded(pkt.FormatName, fieldNames, pkt)
}

func fieldNamesFor(pkt telemetry.DecodedPacket, snap catalogue.Snapshot) []string {
	for i := range snap.Formats {
		if snap.Formats[i].Name == pkt.FormatName {
			names := make([]string, len(snap.Formats[i].Fields))
			for j, f := range snap.Formats[i].Fields {
				names[j] = f.Name
			}
			return names
		}
	}
	names := make([]string, len(pkt.Values))
	for i := range names {
		names[i] = genericFieldName(i)
	}
	return names
}

func genericFieldName(i int) string {
	return "field_" + strconv.Itoa(i)
}
