package framer

// altusMetrumFormats names the packet formats whose first field is a 16-bit
// millisecond tick that wraps at 65535 and needs cross-packet correction.
var altusMetrumFormats = map[string]bool{
	"telemega_kalman":                true,
	"TeleMetrum v1.x Sensor Data":    true,
	"TeleMetrum v2 Sensor Data":      true,
}

// wrapState tracks the running correction for one AltusMetrum-family format.
// The framer keeps one per format name so interleaved formats don't corrupt
// each other's timestamp sequence.
type wrapState struct {
	offset uint64
	last   uint64
	seen   bool
}

// correct applies the wrap-around promotion described for AltusMetrum
// formats: a fresh tick lower than the last one observed means the 16-bit
// counter rolled over, so another 65535 is folded into the running offset.
func (w *wrapState) correct(tick uint64) uint64 {
	corrected := tick + w.offset
	if w.seen && corrected < w.last {
		w.offset += 65535
		corrected = tick + w.offset
	}
	w.last = corrected
	w.seen = true
	return corrected
}

// AltusMetrumCRC validates the top bit of the second-to-last byte of the
// framed region, the check used by AltusMetrum-family formats in place of a
// conventional checksum.
func AltusMetrumCRC(framed []byte) bool {
	if len(framed) < 2 {
		return false
	}
	return framed[len(framed)-2]&0x80 != 0
}
