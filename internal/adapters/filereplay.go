package adapters

import (
	"errors"
	"io"
	"os"

	"github.com/kstaniek/groundstation/internal/catalogue"
	"github.com/kstaniek/groundstation/internal/telemetry"
)

const fileReplayChunkSize = 4096

// FileReplay feeds a previously captured raw log back through the Framer,
// one fixed-size chunk per read_raw call. Reaching end of file yields zero
// bytes successfully; it is not a fault the Pipeline needs to surface.
type FileReplay struct {
	base
	f    *os.File
	path string
}

// NewFileReplay constructs a FileReplay bound to cat for decoding.
func NewFileReplay(cat *catalogue.Catalogue, clock telemetry.Clock) *FileReplay {
	return &FileReplay{base: newBase(cat, clock)}
}

func (r *FileReplay) Kind() Kind { return KindFileReplay }

// Init opens path for reading. baud is ignored; file replay has no notion of
// line rate.
func (r *FileReplay) Init(path string, _ int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	r.f = f
	r.path = path
	r.initDone = true
	return nil
}

func (r *FileReplay) ReadRaw() ([]byte, error) {
	if r.f == nil {
		return nil, errors.New("adapter: not initialised")
	}
	var buf [fileReplayChunkSize]byte
	n, err := r.f.Read(buf[:])
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	r.fr.Push(buf[:n])
	return buf[:n], nil
}

// Write is a no-op: a replayed file is not a live device to command.
func (r *FileReplay) Write([]byte) error { return nil }

func (r *FileReplay) Close() error {
	if r.f == nil {
		return nil
	}
	return r.f.Close()
}
