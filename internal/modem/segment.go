package modem

import "unicode/utf16"

// Segment limits for single and concatenated messages.
const (
	GSM7SingleLimit = 160
	GSM7PartLimit   = 153
	UCS2SingleLimit = 70
	UCS2PartLimit   = 67
)

// Divide splits body into the parts a modem would transmit. GSM 7-bit text
// fits 160 septets in one message and 153 per part otherwise; anything else
// is sent as UCS-2 with 70 and 67 code units. Escape sequences and surrogate
// pairs are never split.
func Divide(body string) []string {
	if body == "" {
		return nil
	}
	if IsGSM7(body) {
		return divideBy(body, GSM7SingleLimit, GSM7PartLimit, septetLen)
	}
	return divideBy(body, UCS2SingleLimit, UCS2PartLimit, utf16.RuneLen)
}

func divideBy(body string, single, part int, width func(rune) int) []string {
	total := 0
	for _, r := range body {
		total += width(r)
	}
	if total <= single {
		return []string{body}
	}

	var (
		parts []string
		start int
		used  int
	)
	for i, r := range body {
		w := width(r)
		if used+w > part {
			parts = append(parts, body[start:i])
			start = i
			used = 0
		}
		used += w
	}
	return append(parts, body[start:])
}
