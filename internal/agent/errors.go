package agent

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgs    = errors.New("phone number and message are required")
	ErrMailboxFull    = errors.New("sms mailbox is full")
	ErrMailboxStopped = errors.New("sms mailbox is not running")
	ErrNotRegistered  = errors.New("no result listener registered")
)

// DispatchKind classifies a failed dispatch.
type DispatchKind string

const (
	KindPermissionDenied    DispatchKind = "permission_denied"
	KindTransmissionFailure DispatchKind = "transmission_failure"
)

// DispatchError reports why an SMS could not be handed to the modem.
type DispatchError struct {
	Kind DispatchKind
	Err  error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("sms dispatch %s: %v", e.Kind, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// IsPermissionDenied reports whether err is a permission-denied dispatch.
func IsPermissionDenied(err error) bool {
	var de *DispatchError
	return errors.As(err, &de) && de.Kind == KindPermissionDenied
}
