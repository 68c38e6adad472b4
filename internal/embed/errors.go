package embed

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPayload is returned when there is nothing to encode.
	ErrEmptyPayload = errors.New("empty payload")
	// ErrEmptyBackground is returned for a background without pixels.
	ErrEmptyBackground = errors.New("background has zero width or height")
)

// EncodeError reports that the payload could not be turned into a QR symbol.
type EncodeError struct {
	PayloadLen int
	Err        error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("qr encode error (%d bytes): %v", e.PayloadLen, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// CompositingError reports that the output raster could not be produced.
type CompositingError struct {
	Operation string
	Err       error
}

func (e *CompositingError) Error() string {
	return fmt.Sprintf("compositing error in %s: %v", e.Operation, e.Err)
}

func (e *CompositingError) Unwrap() error { return e.Err }
