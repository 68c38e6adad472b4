package validate

import (
	"errors"
	"fmt"
)

// ErrEmptyImage is returned for a nil image or one without pixels.
var ErrEmptyImage = errors.New("image has no pixels")

// MismatchError reports that a symbol decoded to a payload other than the
// expected one. Validation stops at the first mismatch.
type MismatchError struct {
	Attempt  int
	Strategy string
	Expected string
	Decoded  string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("QR validation failed: decoded %q, expected %q (attempt %d, %s)",
		e.Decoded, e.Expected, e.Attempt, e.Strategy)
}

// ExhaustedError reports that no attempt produced a decodable symbol.
type ExhaustedError struct {
	Attempts int
	History  []Attempt
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("QR validation failed after %d attempts", e.Attempts)
}
