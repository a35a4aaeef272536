package remote

import (
	"errors"
	"fmt"
)

// RejectionError is returned when the remote answered with a 4xx/5xx status.
type RejectionError struct {
	Status  int
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("remote rejected request (%d): %s", e.Status, e.Message)
}

// TransportError is returned when no response was received at all.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MalformedError is returned when a successful response could not be decoded.
type MalformedError struct {
	Err error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed payload: %v", e.Err)
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

// IsRejection reports whether err is a remote rejection and returns it.
func IsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// IsTransient reports whether err should be treated as a transport failure:
// either no response arrived or the response could not be understood.
func IsTransient(err error) bool {
	var te *TransportError
	var me *MalformedError
	return errors.As(err, &te) || errors.As(err, &me)
}
