package catalogue

// ParseHexIdentifier turns a user-entered hex string into the byte pattern a
// Delimiter matches on the wire. Every character must be a hex digit. An odd
// number of digits is accepted: the final byte's low nibble is padded with
// zero. E.g. "0" -> {0x00}; "abc" -> {0xab, 0xc0}.
func ParseHexIdentifier(s string) ([]byte, error) {
	if len(s) == 0 {
		return nil, ErrEmptyIdentifier
	}
	out := make([]byte, 0, (len(s)+1)/2)
	for i := 0; i < len(s); i += 2 {
		hi, ok := hexNibble(s[i])
		if !ok {
			return nil, invalidHexErr(s[i])
		}
		var lo byte
		if i+1 < len(s) {
			v, ok := hexNibble(s[i+1])
			if !ok {
				return nil, invalidHexErr(s[i+1])
			}
			lo = v
		}
		out = append(out, hi<<4|lo)
	}
	return out, nil
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}

// HexString renders an identifier back to its hex-string form for
// persistence, lowercase, two digits per byte.
func HexString(id []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(id)*2)
	for i, b := range id {
		out[i*2] = digits[b>>4]
		out[i*2+1] = digits[b&0xf]
	}
	return string(out)
}
