// Package logstore persists raw device bytes and decoded packets to disk
// for one process run: raw ".wings" logs per device, and per-format CSV
// logs of decoded values. Every write flushes immediately, trading
// throughput for durability, and every failure is logged rather than
// propagated — a slow or full disk must never stall the Pipeline.
package logstore

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/kstaniek/groundstation/internal/adapters"
	"github.com/kstaniek/groundstation/internal/logging"
	"github.com/kstaniek/groundstation/internal/telemetry"
)

// deviceKey identifies one device's raw log, keyed by its kind and id as
// the spec requires — two devices of different kinds never share a file
// even if ids collide across kind namespaces.
type deviceKey struct {
	kind adapters.Kind
	id   uint64
}

type rawLog struct {
	f *os.File
}

func (r *rawLog) append(p []byte) error {
	if _, err := r.f.Write(p); err != nil {
		return err
	}
	return r.f.Sync()
}

type csvLog struct {
	f *os.File
	w *csv.Writer
}

func (c *csvLog) append(row []string) error {
	if err := c.w.Write(row); err != nil {
		return err
	}
	c.w.Flush()
	return c.w.Error()
}

// Store owns the raw and decoded logs for one process run, rooted at
// <dataDir>/<base>/<YYYY-MM-DD>/<HH-MM-SS>/.
type Store struct {
	mu      sync.Mutex
	rawDir  string
	decDir  string
	runTime string
	raw     map[deviceKey]*rawLog
	csvs    map[string]*csvLog
	log     *slog.Logger
}

// Open creates the run directory tree under dataDir/base, timestamped by
// now, and returns a Store ready to lazily open log files on first write.
func Open(dataDir, base string, now func() (date, clock string)) (*Store, error) {
	date, clock := now()
	root := filepath.Join(dataDir, base, date, clock)
	rawDir := filepath.Join(root, "raw")
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		return nil, fmt.Errorf("logstore: create raw dir: %w", err)
	}
	return &Store{
		rawDir:  rawDir,
		decDir:  root,
		runTime: clock,
		raw:     make(map[deviceKey]*rawLog),
		csvs:    make(map[string]*csvLog),
		log:     logging.L(),
	}, nil
}

// AppendRaw appends p to the raw log for (kind, id), lazily creating the
// file on first write. Failures are logged and swallowed: the caller (the
// Pipeline) must keep running even if the disk is unwritable.
func (s *Store) AppendRaw(kind adapters.Kind, id uint64, p []byte) {
	if len(p) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := deviceKey{kind: kind, id: id}
	rl, ok := s.raw[key]
	if !ok {
		name := fmt.Sprintf("raw_log_%s_%s_%d_log.wings", s.runTime, kind, id)
		f, err := os.OpenFile(filepath.Join(s.rawDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			s.log.Error("logstore: open raw log", "kind", kind, "id", id, "error", err)
			return
		}
		rl = &rawLog{f: f}
		s.raw[key] = rl
	}
	if err := rl.append(p); err != nil {
		s.log.Error("logstore: append raw log", "kind", kind, "id", id, "error", err)
	}
}

// AppendDecoded appends one decoded packet's values as a CSV row to the
// per-format log named formatName, writing a header row derived from
// fieldNames the first time the file is created.
func (s *Store) AppendDecoded(formatName string, fieldNames []string, pkt telemetry.DecodedPacket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cl, ok := s.csvs[formatName]
	if !ok {
		f, err := os.OpenFile(filepath.Join(s.decDir, sanitizeFileName(formatName)+".csv"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			s.log.Error("logstore: open decoded log", "format", formatName, "error", err)
			return
		}
		info, statErr := f.Stat()
		w := csv.NewWriter(f)
		cl = &csvLog{f: f, w: w}
		if statErr == nil && info.Size() == 0 {
			header := append([]string{"received_at"}, fieldNames...)
			if err := cl.append(header); err != nil {
				s.log.Error("logstore: write csv header", "format", formatName, "error", err)
			}
		}
		s.csvs[formatName] = cl
	}

	row := make([]string, 0, len(pkt.Values)+1)
	row = append(row, strconv.FormatInt(pkt.ReceivedAt, 10))
	for _, v := range pkt.Values {
		row = append(row, v.Display())
	}
	if err := cl.append(row); err != nil {
		s.log.Error("logstore: append decoded log", "format", formatName, "error", err)
	}
}

// Close closes every open raw and decoded log file.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rl := range s.raw {
		_ = rl.f.Close()
	}
	for _, cl := range s.csvs {
		cl.w.Flush()
		_ = cl.f.Close()
	}
}

// sanitizeFileName strips path separators from a format name so arbitrary
// user-entered names can't escape the decoded-log directory.
func sanitizeFileName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch r {
		case '/', '\\', '\x00':
			out = append(out, '_')
		default:
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return "_"
	}
	return string(out)
}
