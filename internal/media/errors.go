package media

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes media errors.
type ErrorCode string

const (
	// ErrCodeInvalidRate indicates a playback rate outside AllowedRates.
	ErrCodeInvalidRate ErrorCode = "INVALID_RATE"

	// ErrCodeTransport indicates the media failed to load, seek or play.
	ErrCodeTransport ErrorCode = "MEDIA_TRANSPORT"
)

// InvalidRateError is returned synchronously by SetRate. Adapter state is
// unchanged.
type InvalidRateError struct {
	Rate float64
}

// Error implements the error interface.
func (e *InvalidRateError) Error() string {
	return fmt.Sprintf("%s: %gx is not an allowed playback rate", ErrCodeInvalidRate, e.Rate)
}

// Code returns ErrCodeInvalidRate.
func (e *InvalidRateError) Code() ErrorCode {
	return ErrCodeInvalidRate
}

// TransportError wraps a failure reported by the media element.
type TransportError struct {
	// Op is the operation that failed ("seek", "play", "load", ...).
	Op  string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrCodeTransport, e.Op, e.Err)
}

// Unwrap returns the element's error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Code returns ErrCodeTransport.
func (e *TransportError) Code() ErrorCode {
	return ErrCodeTransport
}

// IsInvalidRate returns true if err is (or wraps) an InvalidRateError.
func IsInvalidRate(err error) bool {
	var re *InvalidRateError
	return errors.As(err, &re)
}

// IsTransport returns true if err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ErrUnavailable is the cause recorded once an adapter has failed; later
// transport calls return it wrapped in a TransportError.
var ErrUnavailable = errors.New("media unavailable")
