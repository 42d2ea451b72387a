package testinjector

import (
	"sync"
	"testing"
	"time"

	"github.com/kstaniek/groundstation/internal/adapters"
	"github.com/kstaniek/groundstation/internal/catalogue"
	"github.com/kstaniek/groundstation/internal/telemetry"
)

func testFormat() catalogue.PacketFormat {
	id0, _ := catalogue.ParseHexIdentifier("aa")
	return catalogue.PacketFormat{
		Name: "test_tx",
		Fields: []catalogue.Field{
			{Index: 0, Name: "ts", Type: catalogue.I64, Offset: 1},
			{Index: 1, Name: "seq", Type: catalogue.U32, Offset: 9},
		},
		Delimiters: []catalogue.Delimiter{
			{Index: 0, Name: "sync", Identifier: id0, Offset: 0},
		},
	}
}

func TestEncodeTestPacket_StampsDelimiterAndCounters(t *testing.T) {
	format := testFormat()
	buf := encodeTestPacket(format, 1000, 7)
	if len(buf) != format.Size() {
		t.Fatalf("expected %d bytes, got %d", format.Size(), len(buf))
	}
	if buf[0] != 0xAA {
		t.Fatalf("expected delimiter byte at offset 0, got %x", buf[0])
	}
	ts := int64(0)
	for i := 7; i >= 0; i-- {
		ts = ts<<8 | int64(buf[1+i])
	}
	if ts != 1000 {
		t.Fatalf("expected timestamp 1000, got %d", ts)
	}
}

func TestInjector_StopIsIdempotentAndSynchronous(t *testing.T) {
	format := testFormat()
	dev := &fakeWriter{}
	inj := Start(dev, format, time.Millisecond, func() int64 { return 42 })
	time.Sleep(10 * time.Millisecond)
	inj.Stop()
	inj.Stop()

	dev.mu.Lock()
	n := len(dev.writes)
	dev.mu.Unlock()
	if n == 0 {
		t.Fatalf("expected at least one packet written before stop")
	}
}

type fakeWriter struct {
	mu     sync.Mutex
	writes [][]byte
}

func (f *fakeWriter) Init(string, int) error { return nil }
func (f *fakeWriter) IsInitialised() bool { return true }
func (f *fakeWriter) ReadRaw() ([]byte, error) { return nil, nil }
func (f *fakeWriter) Parse() ([]telemetry.DecodedPacket, error) { return nil, nil }
func (f *fakeWriter) ID() uint64 { return 1 }
func (f *fakeWriter) SetID(uint64) {}
func (f *fakeWriter) Kind() adapters.Kind { return adapters.KindFileReplay }
func (f *fakeWriter) Write(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, append([]byte(nil), p...))
	return nil
}
