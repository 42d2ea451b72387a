package adapters

import (
	"encoding/binary"
	"errors"

	"github.com/kstaniek/groundstation/internal/catalogue"
	"github.com/kstaniek/groundstation/internal/telemetry"
)

// AIM well-known format names. The AIM wire format packs a bespoke
// per-delimiter record stream rather than the generic fixed-layout packets
// the Catalogue models, so this adapter bypasses the Framer entirely and
// emits DecodedPacket values tagged against these names directly.
const (
	aimMeta      = "Aim_Meta"
	aimAccelZ    = "Aim_AccelZ"
	aimPressure  = "Aim_Pressure"
	aimBattComp  = "Aim_BatComp"
	aimBattEject = "Aim_BatEject"
	aimTemp      = "Aim_Temp"
	aimAccelXY   = "Aim_AccelXY"
	aimGyro      = "Aim_GyroXYZ"
)

// AIM wraps a SerialPort and translates its bespoke record stream into
// DecodedPackets against the Aim_* well-known names instead of going
// through the generic Framer.
type AIM struct {
	*SerialPort
	pending []byte
}

func NewAIM(cat *catalogue.Catalogue, clock telemetry.Clock) *AIM {
	return &AIM{SerialPort: NewSerialPort(cat, clock)}
}

func (a *AIM) Kind() Kind { return KindAIM }

func (a *AIM) ReadRaw() ([]byte, error) {
	raw, err := a.SerialPort.readSocket()
	if err != nil || len(raw) == 0 {
		return raw, err
	}
	a.pending = append(a.pending, raw...)
	return raw, nil
}

// Parse drains complete AIM transmissions from the pending buffer. Each
// transmission is self-delimited by a length byte at index 1, so unlike the
// generic Framer there is no delimiter-anchored recognition scan: whole
// transmissions are consumed one at a time or not at all.
func (a *AIM) Parse() ([]telemetry.DecodedPacket, error) {
	var out []telemetry.DecodedPacket
	for {
		if len(a.pending) < 2 {
			return out, nil
		}
		length := int(a.pending[1])
		total := length + 2
		if len(a.pending) < total {
			return out, nil
		}
		transmission := a.pending[:total]
		packets, err := decodeAimTransmission(transmission, a.clock())

		a.pending = a.pending[total:]
		if err != nil {
			return out, err
		}
		out = append(out, packets...)
	}
}

func decodeAimTransmission(t []byte, now int64) ([]telemetry.DecodedPacket, error) {
	if len(t) < 5 {
		return nil, errors.New("aim: transmission too short")
	}
	length := t[1]
	rssi := int16(binary.BigEndian.Uint16(t[2:4]))
	snr := int8(t[4])

	packets := []telemetry.DecodedPacket{{
		FormatName: aimMeta,
		Values:     []telemetry.DecodedValue{telemetry.I16(rssi), telemetry.I8(snr)},
		ReceivedAt: now,
	}}

	i := 3
	for i < int(length) {
		i += 2
		if i+1 >= len(t) {
			break
		}
		delta := t[i]
		delim := t[i+1]

		switch delim {
		case 0x02: // accel Z
			if i+4 > len(t) {
				return packets, nil
			}
			raw := int16(binary.LittleEndian.Uint16(t[i+2 : i+4]))
			packets = append(packets, aimPacket(aimAccelZ, now, delta, telemetry.F64(float64(raw)/256)))
			i += 2
		case 0x03: // pressure, u24
			if i+5 > len(t) {
				return packets, nil
			}
			raw := uint32(t[i+2]) | uint32(t[i+3])<<8 | uint32(t[i+4])<<16
			packets = append(packets, aimPacket(aimPressure, now, delta, telemetry.U24(raw)))
			i += 3
		case 0x04, 0x05: // battery voltage
			if i+4 > len(t) {
				return packets, nil
			}
			raw := binary.LittleEndian.Uint16(t[i+2 : i+4])
			name := aimBattComp
			if delim == 0x05 {
				name = aimBattEject
			}
			volts := (3.3 * float64(raw)) / 65536
			packets = append(packets, aimPacket(name, now, delta, telemetry.F64(volts)))
			i += 2
		case 0x06: // temperature
			if i+4 > len(t) {
				return packets, nil
			}
			raw := binary.LittleEndian.Uint16(t[i+2 : i+4])
			packets = append(packets, aimPacket(aimTemp, now, delta, telemetry.F64(float64(raw)/100)))
			i += 2
		case 0x0B: // accel XY
			if i+6 > len(t) {
				return packets, nil
			}
			x := int16(binary.LittleEndian.Uint16(t[i+2 : i+4]))
			y := int16(binary.LittleEndian.Uint16(t[i+4 : i+6]))
			packets = append(packets, aimPacket(aimAccelXY, now, delta,
				telemetry.F64(float64(x)/256), telemetry.F64(float64(y)/256)))
			i += 4
		case 0x0C: // gyro XYZ
			if i+8 > len(t) {
				return packets, nil
			}
			x := int16(binary.LittleEndian.Uint16(t[i+2 : i+4]))
			y := int16(binary.LittleEndian.Uint16(t[i+4 : i+6]))
			z := int16(binary.LittleEndian.Uint16(t[i+6 : i+8]))
			packets = append(packets, aimPacket(aimGyro, now, delta,
				telemetry.F64(float64(x)/70), telemetry.F64(float64(y)/70), telemetry.F64(float64(z)/70)))
			i += 6
		default:
			// Unrecognised record type: stop, the rest of the
			// transmission can't be reliably resynchronised.
			return packets, nil
		}
	}
	return packets, nil
}

func aimPacket(name string, now int64, deltaTime byte, values ...telemetry.DecodedValue) telemetry.DecodedPacket {
	all := append([]telemetry.DecodedValue{telemetry.U8(deltaTime)}, values...)
	return telemetry.DecodedPacket{FormatName: name, Values: all, ReceivedAt: now}
}
