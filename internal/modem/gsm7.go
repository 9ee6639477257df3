package modem

// GSM 03.38 default alphabet. Index is the septet value; 0x1B is the escape
// to the extension table and never maps to a character.
const gsm7Basic = "@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞ\x1bÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
	"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà"

const gsm7Escape = 0x1B

var gsm7Extension = map[rune]byte{
	'\f': 0x0A,
	'^':  0x14,
	'{':  0x28,
	'}':  0x29,
	'\\': 0x2F,
	'[':  0x3C,
	'~':  0x3D,
	']':  0x3E,
	'|':  0x40,
	'€':  0x65,
}

var gsm7Index = func() map[rune]byte {
	idx := make(map[rune]byte, 128)
	var i byte
	for _, r := range gsm7Basic {
		if i != gsm7Escape {
			idx[r] = i
		}
		i++
	}
	return idx
}()

// septetLen returns how many septets r occupies, or 0 when r has no GSM 7-bit
// encoding.
func septetLen(r rune) int {
	if _, ok := gsm7Index[r]; ok {
		return 1
	}
	if _, ok := gsm7Extension[r]; ok {
		return 2
	}
	return 0
}

// IsGSM7 reports whether s can be sent with the default alphabet.
func IsGSM7(s string) bool {
	for _, r := range s {
		if septetLen(r) == 0 {
			return false
		}
	}
	return true
}

// encodeGSM7 maps s to unpacked septets. ok is false when s contains a
// character outside the alphabet.
func encodeGSM7(s string) (septets []byte, ok bool) {
	septets = make([]byte, 0, len(s))
	for _, r := range s {
		if v, found := gsm7Index[r]; found {
			septets = append(septets, v)
			continue
		}
		if v, found := gsm7Extension[r]; found {
			septets = append(septets, gsm7Escape, v)
			continue
		}
		return nil, false
	}
	return septets, true
}

// pack7 packs septets LSB first after fill padding bits.
func pack7(septets []byte, fill int) []byte {
	bits := fill + 7*len(septets)
	out := make([]byte, (bits+7)/8)
	pos := fill
	for _, s := range septets {
		for b := 0; b < 7; b++ {
			if s&(1<<b) != 0 {
				out[pos/8] |= 1 << (pos % 8)
			}
			pos++
		}
	}
	return out
}
