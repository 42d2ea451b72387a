package logstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kstaniek/groundstation/internal/adapters"
	"github.com/kstaniek/groundstation/internal/telemetry"
)

func fixedRun() (string, string) { return "2026-08-01", "12-00-00" }

func TestStore_AppendRaw_LazyCreatesAndAppends(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "groundstation", fixedRun)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	s.AppendRaw(adapters.KindSerialPort, 1, []byte{0xDE, 0xAD})
	s.AppendRaw(adapters.KindSerialPort, 1, []byte{0xBE, 0xEF})

	path := filepath.Join(dir, "groundstation", "2026-08-01", "12-00-00", "raw", "raw_log_12-00-00_serial_port_1_log.wings")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read raw log: %v", err)
	}
	want := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if string(data) != string(want) {
		t.Fatalf("got % x, want % x", data, want)
	}
}

func TestStore_AppendRaw_EmptyWritesAreNoOps(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "groundstation", fixedRun)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	s.AppendRaw(adapters.KindSerialPort, 1, nil)
	path := filepath.Join(dir, "groundstation", "2026-08-01", "12-00-00", "raw", "raw_log_12-00-00_serial_port_1_log.wings")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no file for an empty write, stat err=%v", err)
	}
}

func TestStore_AppendDecoded_WritesHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir, "groundstation", fixedRun)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	fields := []string{"altitude", "velocity"}
	s.AppendDecoded("FW GPS", fields, telemetry.DecodedPacket{
		ReceivedAt: 100,
		Values:     []telemetry.DecodedValue{telemetry.F64(4403468), telemetry.F64(16384)},
	})
	s.AppendDecoded("FW GPS", fields, telemetry.DecodedPacket{
		ReceivedAt: 150,
		Values:     []telemetry.DecodedValue{telemetry.F64(4403500), telemetry.F64(16400)},
	})

	path := filepath.Join(dir, "groundstation", "2026-08-01", "12-00-00", "FW GPS.csv")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines: %q", len(lines), data)
	}
	if lines[0] != "received_at,altitude,velocity" {
		t.Fatalf("unexpected header: %q", lines[0])
	}
}

func TestSanitizeFileName_StripsSeparators(t *testing.T) {
	if got := sanitizeFileName("a/b\\c"); got != "a_b_c" {
		t.Fatalf("got %q", got)
	}
}
