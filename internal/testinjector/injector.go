// Package testinjector runs a cancellable background loop that writes
// synthesized test packets to a device adapter at a fixed interval, the
// way original_source's BackgroundTask/SendingLoop exercises a serial link
// without real hardware attached. The Go idiom for "drop to cancel" is a
// context.CancelFunc: closing the Injector's context is the channel
// disconnect the Rust struct's Drop achieves implicitly. Writes themselves
// go through a transport.AsyncTx so a wedged adapter can never stall the
// ticker goroutine, the same fan-in-writer shape the teacher used for its
// serial and SocketCAN transmit paths.
package testinjector

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/kstaniek/groundstation/internal/adapters"
	"github.com/kstaniek/groundstation/internal/catalogue"
	"github.com/kstaniek/groundstation/internal/logging"
	"github.com/kstaniek/groundstation/internal/telemetry"
	"github.com/kstaniek/groundstation/internal/transport"
)

// txBuffer bounds the number of generated packets queued for write before
// SendBytes starts dropping; at typical injector intervals this is many
// seconds of backlog, so a drop only happens against a truly wedged adapter.
const txBuffer = 64

// Injector writes one generated packet per tick against a fixed
// PacketFormat to a DeviceAdapter's Write, stamping the first two fields
// with a monotonic timestamp and a wrapping sequence counter, mirroring
// generate_packet's (SignedLong(now), UnsignedInteger(packets_sent)) call.
type Injector struct {
	cancel context.CancelFunc
	done   chan struct{}
	tx     *transport.AsyncTx
}

// Start launches the background loop and returns immediately; call Stop to
// cancel it. format must declare at least two fields: the first is treated
// as a timestamp (any signed or unsigned integer type), the second as the
// sequence counter.
func Start(dev adapters.DeviceAdapter, format catalogue.PacketFormat, interval time.Duration, clock telemetry.Clock) *Injector {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	tx := transport.NewAsyncTx(ctx, txBuffer, dev.Write, transport.Hooks{
		OnError: func(err error) {
			logging.L().Error("testinjector: write", "error", err)
		},
		OnDrop: func() error {
			logging.L().Warn("testinjector: dropping packet, adapter write queue full")
			return nil
		},
	})
	inj := &Injector{cancel: cancel, done: done, tx: tx}

	go func() {
		defer close(done)
		var sequence uint32
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				packet := encodeTestPacket(format, clock(), sequence)
				_ = tx.SendBytes(packet)
				sequence++
			}
		}
	}()

	return inj
}

// Stop cancels the background loop, closes the async writer, and blocks
// until both have exited.
func (i *Injector) Stop() {
	i.cancel()
	<-i.done
	i.tx.Close()
}

// encodeTestPacket lays delimiters down verbatim and fills the first two
// fields with timestamp/sequence; any remaining fields are left zeroed.
func encodeTestPacket(format catalogue.PacketFormat, timestamp int64, sequence uint32) []byte {
	buf := make([]byte, format.Size())
	for _, d := range format.Delimiters {
		copy(buf[d.Offset:], d.Identifier)
	}
	for i, f := range format.Fields {
		switch i {
		case 0:
			encodeIntField(buf, f, uint64(timestamp))
		case 1:
			encodeIntField(buf, f, uint64(sequence))
		}
	}
	return buf
}

func encodeIntField(buf []byte, f catalogue.Field, v uint64) {
	span := buf[f.Offset : f.Offset+f.Width()]
	order := binary.ByteOrder(binary.LittleEndian)
	if f.BigEndian {
		order = binary.BigEndian
	}
	switch f.Type {
	case catalogue.U8, catalogue.I8:
		span[0] = byte(v)
	case catalogue.U16, catalogue.I16:
		order.PutUint16(span, uint16(v))
	case catalogue.U24:
		tmp := make([]byte, 4)
		order.PutUint32(tmp, uint32(v))
		if f.BigEndian {
			copy(span, tmp[1:4])
		} else {
			copy(span, tmp[0:3])
		}
	case catalogue.U32, catalogue.I32:
		order.PutUint32(span, uint32(v))
	case catalogue.U64, catalogue.I64:
		order.PutUint64(span, v)
	}
}
