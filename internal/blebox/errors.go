package blebox

import "fmt"

// TransportError is returned for network faults, timeouts and non-200 responses.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ValidationError means the device answered but its identity is unusable.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "device validation failed: " + e.Reason
}
