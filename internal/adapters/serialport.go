package adapters

import (
	"errors"
	"time"

	"github.com/kstaniek/groundstation/internal/catalogue"
	"github.com/kstaniek/groundstation/internal/serial"
	"github.com/kstaniek/groundstation/internal/telemetry"
)

// serialConn is the subset of serial.Port SerialPort depends on, so tests
// can substitute a fake without opening a real device.
type serialConn interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// openSerialPort is overridden in tests.
var openSerialPort = func(name string, baud int, timeout time.Duration) (serialConn, error) {
	return serial.Open(name, baud, timeout)
}

// SerialPort reads a generic little-endian byte stream over an OS serial
// port with a 1 ms read timeout; an empty read within that timeout is a
// successful no-op, not an error.
type SerialPort struct {
	base
	conn    serialConn
	readBuf [4096]byte
}

// NewSerialPort constructs a SerialPort bound to cat for decoding.
func NewSerialPort(cat *catalogue.Catalogue, clock telemetry.Clock) *SerialPort {
	return &SerialPort{base: newBase(cat, clock)}
}

func (s *SerialPort) Kind() Kind { return KindSerialPort }

func (s *SerialPort) Init(endpoint string, baud int) error {
	conn, err := openSerialPort(endpoint, baud, readTimeout(KindSerialPort))
	if err != nil {
		return err
	}
	s.conn = conn
	s.initDone = true
	return nil
}

func (s *SerialPort) ReadRaw() ([]byte, error) {
	raw, err := s.readSocket()
	if err != nil || len(raw) == 0 {
		return raw, err
	}
	s.fr.Push(raw)
	return raw, nil
}

// readSocket performs the raw OS read without feeding the Framer, so
// device-family adapters that transcode the wire (AltusMetrum's ASCII-hex
// uplink) can push their decoded bytes instead.
func (s *SerialPort) readSocket() ([]byte, error) {
	if s.conn == nil {
		return nil, errors.New("adapter: not initialised")
	}
	n, err := s.conn.Read(s.readBuf[:])
	if err != nil {
		if isTimeout(err) {
			return nil, nil
		}
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return s.readBuf[:n], nil
}

func (s *SerialPort) Write(p []byte) error {
	if s.conn == nil {
		return errors.New("adapter: not initialised")
	}
	_, err := s.conn.Write(p)
	return err
}

func (s *SerialPort) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// isTimeout reports whether err represents the serial library's "no data
// within ReadTimeout" condition, which the adapter contract requires be
// distinguished from a transport failure.
func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	var t timeouter
	if errors.As(err, &t) {
		return t.Timeout()
	}
	return err.Error() == "Operation timed out" || errors.Is(err, ErrTimedOut)
}
