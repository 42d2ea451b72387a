package pipeline

import (
	"os"
	"testing"
	"time"

	"github.com/kstaniek/groundstation/internal/adapters"
	"github.com/kstaniek/groundstation/internal/catalogue"
	"github.com/kstaniek/groundstation/internal/eventbus"
	"github.com/kstaniek/groundstation/internal/logstore"
	"github.com/kstaniek/groundstation/internal/registry"
)

func fixedRun() (string, string) { return "2026-08-01", "12-00-00" }

func testFormat() catalogue.PacketFormat {
	id0, _ := catalogue.ParseHexIdentifier("aa")
	return catalogue.PacketFormat{
		Name:   "solo",
		Fields: []catalogue.Field{{Index: 0, Name: "v", Type: catalogue.U8, Offset: 1}},
		Delimiters: []catalogue.Delimiter{
			{Index: 0, Name: "sync", Identifier: id0, Offset: 0},
		},
	}
}

func TestPipeline_OneTick_DecodesAndLogsAndPublishes(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "replay")
	if err != nil {
		t.Fatalf("tempfile: %v", err)
	}
	if _, err := f.Write([]byte{0xAA, 0x09}); err != nil {
		t.Fatalf("write: %v", err)
	}
	f.Close()

	cat := catalogue.New()
	if _, err := cat.Register(testFormat()); err != nil {
		t.Fatalf("register: %v", err)
	}

	reg := registry.New()
	reg.StubEndpointScanners(
		func() ([]registry.Endpoint, error) { return nil, nil },
		func() ([]registry.Endpoint, error) { return nil, nil },
	)
	id, err := reg.Add(adapters.KindFileReplay, cat, func() int64 { return 42 })
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := reg.Init(id, f.Name(), 0); err != nil {
		t.Fatalf("init: %v", err)
	}

	dir := t.TempDir()
	logs, err := logstore.Open(dir, "groundstation", fixedRun)
	if err != nil {
		t.Fatalf("open logstore: %v", err)
	}
	defer logs.Close()

	bus := eventbus.New()
	cl := &eventbus.Client{Out: make(chan eventbus.Event, 4), Closed: make(chan struct{})}
	bus.Subscribe(cl)
	defer bus.Unsubscribe(cl)

	p := New(cat, reg, logs, bus, time.Hour)
	p.tick()

	select {
	case ev := <-cl.Out:
		if ev.Topic != eventbus.TopicTelemetryUpdate {
			t.Fatalf("expected telemetry-update, got %s", ev.Topic)
		}
		batch, ok := ev.Payload.(eventbus.TelemetryBatch)
		if !ok || len(batch.Packets) != 1 {
			t.Fatalf("expected 1 packet in batch, got %+v", ev.Payload)
		}
		if batch.Packets[0].Values[0].U64 != 9 {
			t.Fatalf("expected decoded value 9, got %d", batch.Packets[0].Values[0].U64)
		}
	default:
		t.Fatalf("expected a published event after tick")
	}

	if !p.Ready() {
		t.Fatalf("expected Ready() true after at least one tick")
	}
}
