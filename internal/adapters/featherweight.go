package adapters

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/kstaniek/groundstation/internal/catalogue"
	"github.com/kstaniek/groundstation/internal/telemetry"
)

// featherweightGPSFormat is the well-known name translated GPS fixes are
// tagged with.
const featherweightGPSFormat = "FW GPS"

// Featherweight wraps a SerialPort talking to an RFD900 radio bridge.
// Telemetry arrives as a mostly-ASCII status line; this adapter hunts for
// the "@ GPS_STAT" marker in each read and translates the single fix it
// carries into a DecodedPacket, bypassing the generic Framer entirely since
// the wire format has no fixed-offset fields.
type Featherweight struct {
	*SerialPort
	pending []telemetry.DecodedPacket
}

func NewFeatherweight(cat *catalogue.Catalogue, clock telemetry.Clock) *Featherweight {
	return &Featherweight{SerialPort: NewSerialPort(cat, clock)}
}

func (f *Featherweight) Kind() Kind { return KindFeatherweight }

func (f *Featherweight) Init(endpoint string, _ int) error {
	const featherweightBaud = 115200
	return f.SerialPort.Init(endpoint, featherweightBaud)
}

func (f *Featherweight) ReadRaw() ([]byte, error) {
	raw, err := f.SerialPort.readSocket()
	if err != nil {
		return raw, err
	}
	if len(raw) == 0 {
		return raw, nil
	}
	if pkt, ok := parseGPSStatusLine(raw, f.clock()); ok {
		f.pending = append(f.pending, pkt)
	}
	return raw, nil
}

func (f *Featherweight) Parse() ([]telemetry.DecodedPacket, error) {
	out := f.pending
	f.pending = nil
	return out, nil
}

func parseGPSStatusLine(raw []byte, now int64) (telemetry.DecodedPacket, bool) {
	text := strings.TrimRight(string(raw), "\x00")
	idx := strings.Index(text, "@ GPS_STAT")
	if idx < 0 {
		return telemetry.DecodedPacket{}, false
	}
	line := text[idx:]
	if end := strings.Index(line, "\r\n"); end >= 0 {
		line = line[:end]
	}
	fields := strings.Fields(line)
	pkt, err := decodeGPSFields(fields, now)
	if err != nil {
		return telemetry.DecodedPacket{}, false
	}
	return pkt, true
}

func decodeGPSFields(f []string, now int64) (telemetry.DecodedPacket, error) {
	if len(f) < 20 {
		return telemetry.DecodedPacket{}, errors.New("featherweight: short GPS_STAT line")
	}
	year, _ := strconv.Atoi(f[3])
	month, _ := strconv.Atoi(f[4])
	day, _ := strconv.Atoi(f[5])
	timeParts := strings.FieldsFunc(f[6], func(r rune) bool { return r == ':' || r == '.' })
	if len(timeParts) < 4 {
		return telemetry.DecodedPacket{}, errors.New("featherweight: bad time field")
	}
	hour, _ := strconv.Atoi(timeParts[0])
	minute, _ := strconv.Atoi(timeParts[1])
	second, _ := strconv.Atoi(timeParts[2])
	milli, _ := strconv.Atoi(timeParts[3])

	if year == 0 {
		year, month, day = 2015, 1, 1
	}
	ts := time.Date(year, time.Month(month), day, hour, minute, second, milli*int(time.Millisecond), time.UTC)

	parseF := func(i int) float64 {
		v, _ := strconv.ParseFloat(f[i], 64)
		return v
	}

	return telemetry.DecodedPacket{
		FormatName: featherweightGPSFormat,
		ReceivedAt: now,
		Values: []telemetry.DecodedValue{
			telemetry.I64(ts.UnixMilli()),
			telemetry.F64(parseF(11)),
			telemetry.F64(parseF(13)),
			telemetry.F64(parseF(15)),
			telemetry.F64(parseF(17)),
			telemetry.F64(parseF(18)),
			telemetry.F64(parseF(19)),
		},
	}, nil
}
