package modem

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"
)

const (
	typeInternational = 0x91
	typeUnknown       = 0x81

	dcsGSM7 = 0x00
	dcsUCS2 = 0x08

	firstOctetSubmit = 0x01
	flagUDHI         = 0x40

	// 8-bit reference concatenation header: UDHL, IEI, IEDL, ref, total, seq.
	concatHeaderLen = 6
)

var ErrInvalidAddress = errors.New("modem: invalid destination address")

// Concat identifies one part of a concatenated message.
type Concat struct {
	Ref   byte
	Total byte
	Seq   byte
}

// SubmitPDU is an encoded SMS-SUBMIT ready for AT+CMGS.
type SubmitPDU struct {
	// Hex is the SMSC address followed by the TPDU, as written to the modem.
	Hex string
	// TPDULen is the octet count passed to AT+CMGS; it excludes the SMSC field.
	TPDULen int
}

// EncodeSubmit builds an SMS-SUBMIT for text addressed to to. smsc may be
// empty to use the SIM's stored service centre. concat is nil for a single
// message.
func EncodeSubmit(to, text, smsc string, concat *Concat) (SubmitPDU, error) {
	da, err := encodeAddress(to)
	if err != nil {
		return SubmitPDU{}, err
	}
	sca, err := encodeSMSC(smsc)
	if err != nil {
		return SubmitPDU{}, err
	}

	var udh []byte
	if concat != nil {
		udh = []byte{concatHeaderLen - 1, 0x00, 0x03, concat.Ref, concat.Total, concat.Seq}
	}

	dcs := byte(dcsGSM7)
	var udl int
	var ud []byte
	if septets, ok := encodeGSM7(text); ok {
		limit := GSM7SingleLimit
		fill := 0
		headerSeptets := 0
		if udh != nil {
			limit = GSM7PartLimit
			fill = (7 - (len(udh)*8)%7) % 7
			headerSeptets = (len(udh)*8 + fill) / 7
		}
		if len(septets) > limit {
			return SubmitPDU{}, fmt.Errorf("modem: text needs %d septets, limit is %d", len(septets), limit)
		}
		udl = headerSeptets + len(septets)
		ud = append(append([]byte{}, udh...), pack7(septets, fill)...)
	} else {
		dcs = dcsUCS2
		units := utf16.Encode([]rune(text))
		limit := UCS2SingleLimit
		if udh != nil {
			limit = UCS2PartLimit
		}
		if len(units) > limit {
			return SubmitPDU{}, fmt.Errorf("modem: text needs %d UCS-2 units, limit is %d", len(units), limit)
		}
		ud = append([]byte{}, udh...)
		for _, u := range units {
			ud = append(ud, byte(u>>8), byte(u))
		}
		udl = len(ud)
	}

	first := byte(firstOctetSubmit)
	if udh != nil {
		first |= flagUDHI
	}

	tpdu := make([]byte, 0, 8+len(da)+len(ud))
	tpdu = append(tpdu, first, 0x00)
	tpdu = append(tpdu, da...)
	tpdu = append(tpdu, 0x00, dcs, byte(udl))
	tpdu = append(tpdu, ud...)

	return SubmitPDU{
		Hex:     strings.ToUpper(hex.EncodeToString(append(sca, tpdu...))),
		TPDULen: len(tpdu),
	}, nil
}

// encodeAddress returns the TP-DA field: digit count, type of address and
// swapped BCD digits.
func encodeAddress(number string) ([]byte, error) {
	digits, toa, err := normalizeNumber(number)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(len(digits)), toa}, swapBCD(digits)...), nil
}

// encodeSMSC returns the SMSC field; its length counts octets, not digits.
func encodeSMSC(number string) ([]byte, error) {
	if number == "" {
		return []byte{0x00}, nil
	}
	digits, toa, err := normalizeNumber(number)
	if err != nil {
		return nil, err
	}
	bcd := swapBCD(digits)
	return append([]byte{byte(len(bcd) + 1), toa}, bcd...), nil
}

func normalizeNumber(number string) (string, byte, error) {
	n := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(number))
	toa := byte(typeUnknown)
	if strings.HasPrefix(n, "+") {
		toa = typeInternational
		n = n[1:]
	}
	if n == "" || len(n) > 20 {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidAddress, number)
	}
	for _, c := range n {
		if c < '0' || c > '9' {
			return "", 0, fmt.Errorf("%w: %q", ErrInvalidAddress, number)
		}
	}
	return n, toa, nil
}

func swapBCD(digits string) []byte {
	if len(digits)%2 == 1 {
		digits += "F"
	}
	out := make([]byte, 0, len(digits)/2)
	for i := 0; i < len(digits); i += 2 {
		lo := nibble(digits[i])
		hi := nibble(digits[i+1])
		out = append(out, hi<<4|lo)
	}
	return out
}

func nibble(c byte) byte {
	if c == 'F' {
		return 0x0F
	}
	return c - '0'
}
