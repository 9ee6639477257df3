package models

// SMSMessage exists for the duration of one delivery attempt.
type SMSMessage struct {
	To    string   `json:"phoneNumber"`
	Body  string   `json:"message"`
	Parts []string `json:"-"`
}

// ResultCode is the carrier-level outcome reported for a submitted SMS.
type ResultCode int

const (
	ResultOK ResultCode = iota
	ResultGenericFailure
	ResultNoService
	ResultNullPDU
	ResultRadioOff
	ResultUnknown
)

func (c ResultCode) String() string {
	switch c {
	case ResultOK:
		return "ok"
	case ResultGenericFailure:
		return "generic_failure"
	case ResultNoService:
		return "no_service"
	case ResultNullPDU:
		return "null_pdu"
	case ResultRadioOff:
		return "radio_off"
	default:
		return "unknown"
	}
}

// ParseResultCode maps the wire name of a result code back to its value.
func ParseResultCode(raw string) ResultCode {
	for c := ResultOK; c < ResultUnknown; c++ {
		if c.String() == raw {
			return c
		}
	}
	return ResultUnknown
}

// SentCallback receives the carrier result of one submitted part.
type SentCallback func(code ResultCode)
