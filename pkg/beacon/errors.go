package beacon

import (
	"errors"
	"fmt"
)

// ErrCapabilityDenied matches every CapabilityError via errors.Is.
var ErrCapabilityDenied = errors.New("bluetooth capability denied")

// Reason explains why the platform refused a capability.
type Reason string

const (
	ReasonRadioDisabled   Reason = "radio disabled"
	ReasonPermission      Reason = "permission not granted"
	ReasonPayloadTooLarge Reason = "payload exceeds advertisement budget"
	ReasonUnsupported     Reason = "feature unsupported"
)

// CapabilityError is returned when Bluetooth cannot be used at all. It is not
// retried automatically; the UI should prompt for the missing capability.
type CapabilityError struct {
	Op     string
	Reason Reason
	Err    error
}

func (e *CapabilityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *CapabilityError) Is(target error) bool { return target == ErrCapabilityDenied }

func (e *CapabilityError) Unwrap() error { return e.Err }

// Platform failure codes reported by radios.
const (
	CodeInternal          = -1
	CodeAlreadyStarted    = 1
	CodeTooManyAdvertiser = 2
	CodeRegistration      = 3
	CodeUnsupported       = 4
)

// TransportError is a non-fatal advertise/scan start failure carrying the
// platform error code. Callers may retry manually.
type TransportError struct {
	Op   string
	Code int
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed (code %d): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s failed (code %d)", e.Op, e.Code)
}

func (e *TransportError) Unwrap() error { return e.Err }

// classify converts an arbitrary radio error into CapabilityError or TransportError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var capErr *CapabilityError
	if errors.As(err, &capErr) {
		return err
	}
	var tErr *TransportError
	if errors.As(err, &tErr) {
		return err
	}
	return &TransportError{Op: op, Code: CodeInternal, Err: err}
}
