package adapters

import (
	"encoding/hex"
	"time"

	"github.com/kstaniek/groundstation/internal/catalogue"
	"github.com/kstaniek/groundstation/internal/framer"
	"github.com/kstaniek/groundstation/internal/telemetry"
)

// wellKnownAltusMetrumFormats are the hardcoded layouts the quirks table
// names. Their exact field sets are AltusMetrum firmware trivia; what the
// generic engine needs from them is the sync delimiter, the leading 16-bit
// tick field the wrap-around correction promotes, and the CRC hook.
var wellKnownAltusMetrumFormats = []catalogue.PacketFormat{
	{
		Name: "telemega_kalman",
		Fields: []catalogue.Field{
			{Index: 0, Name: "tick", Type: catalogue.U16, Offset: 2},
			{Index: 1, Name: "accel", Type: catalogue.I32, Offset: 4},
			{Index: 2, Name: "height", Type: catalogue.I32, Offset: 8},
			{Index: 3, Name: "speed", Type: catalogue.I32, Offset: 12},
		},
		Delimiters: []catalogue.Delimiter{
			{Index: 0, Name: "sync", Identifier: []byte{0x55, 0x55}, Offset: 0},
		},
		CRC: &catalogue.CRC{Validate: framer.AltusMetrumCRC},
	},
	{
		Name: "TeleMetrum v1.x Sensor Data",
		Fields: []catalogue.Field{
			{Index: 0, Name: "tick", Type: catalogue.U16, Offset: 2},
			{Index: 1, Name: "accel", Type: catalogue.I16, Offset: 4},
			{Index: 2, Name: "pressure", Type: catalogue.I16, Offset: 6},
		},
		Delimiters: []catalogue.Delimiter{
			{Index: 0, Name: "sync", Identifier: []byte{0x55, 0x56}, Offset: 0},
		},
		CRC: &catalogue.CRC{Validate: framer.AltusMetrumCRC},
	},
	{
		Name: "TeleMetrum v2 Sensor Data",
		Fields: []catalogue.Field{
			{Index: 0, Name: "tick", Type: catalogue.U16, Offset: 2},
			{Index: 1, Name: "accel", Type: catalogue.I32, Offset: 4},
			{Index: 2, Name: "pressure", Type: catalogue.I32, Offset: 8},
		},
		Delimiters: []catalogue.Delimiter{
			{Index: 0, Name: "sync", Identifier: []byte{0x55, 0x57}, Offset: 0},
		},
		CRC: &catalogue.CRC{Validate: framer.AltusMetrumCRC},
	},
}

// RegisterWellKnownFormats registers every hardcoded AltusMetrum format with
// cat if it isn't already present (by name). Formats already registered
// under the same name are skipped, so repeated calls against the same
// catalogue add nothing further.
func RegisterWellKnownFormats(cat *catalogue.Catalogue) error {
	existing := map[string]bool{}
	for _, f := range cat.Formats() {
		existing[f.Name] = true
	}
	for _, f := range wellKnownAltusMetrumFormats {
		if existing[f.Name] {
			continue
		}
		if _, err := cat.Register(f); err != nil {
			return err
		}
	}
	return nil
}

// altusMetrumHandshake is the TeleDongle radio setup sequence: put the radio
// in monitor mode, then tune it to the telemetry frequency the ground
// station expects. Bytes are ASCII commands terminated by '\n' (0x0A), the
// protocol the TeleDongle firmware's command console speaks.
var altusMetrumHandshake = [][]byte{
	{0x7E, 0x0A, 0x45, 0x20, 0x30, 0x0A, 0x6D, 0x20, 0x30, 0x0A},
	{0x6D, 0x20, 0x32, 0x30, 0x0A, 0x6D, 0x20, 0x30, 0x0A, 0x63, 0x20, 0x73, 0x0A, 0x66, 0x0A, 0x76, 0x0A},
}

// AltusMetrum wraps a SerialPort talking to a TeleDongle/TeleMega radio
// bridge: the wire carries ASCII hex digits rather than raw bytes, so every
// read is filtered down to its hex digits and decoded before being handed
// to the generic Framer; everything downstream of that is the shared
// delimiter-recognition engine, including the wrap-around quirk it applies
// to the formats this family registers.
type AltusMetrum struct {
	*SerialPort
}

// NewAltusMetrum constructs an AltusMetrum adapter bound to cat.
func NewAltusMetrum(cat *catalogue.Catalogue, clock telemetry.Clock) *AltusMetrum {
	return &AltusMetrum{SerialPort: NewSerialPort(cat, clock)}
}

func (a *AltusMetrum) Kind() Kind { return KindAltusMetrum }

func (a *AltusMetrum) Init(endpoint string, _ int) error {
	const teledongleBaud = 9600
	if err := a.SerialPort.Init(endpoint, teledongleBaud); err != nil {
		return err
	}
	for _, cmd := range altusMetrumHandshake {
		if err := a.SerialPort.Write(cmd); err != nil {
			return err
		}
		time.Sleep(100 * time.Millisecond)
		_, _ = a.SerialPort.readSocket()
	}
	return nil
}

func (a *AltusMetrum) ReadRaw() ([]byte, error) {
	raw, err := a.SerialPort.readSocket()
	if err != nil || len(raw) == 0 {
		return raw, err
	}

	hexDigits := make([]byte, 0, len(raw))
	for _, c := range raw {
		if isHexDigit(c) {
			hexDigits = append(hexDigits, c)
		}
	}
	if len(hexDigits)%2 != 0 {
		hexDigits = hexDigits[:len(hexDigits)-1]
	}
	decoded := make([]byte, hex.DecodedLen(len(hexDigits)))
	n, err := hex.Decode(decoded, hexDigits)
	if err != nil {
		return nil, nil
	}
	decoded = decoded[:n]
	a.fr.Push(decoded)
	return decoded, nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
