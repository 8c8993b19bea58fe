package compact

import (
	"errors"
	"fmt"
)

var (
	// ErrRangeViolation is matched by every FieldError.
	ErrRangeViolation = errors.New("value exceeds field width")

	// ErrMalformedType is returned when a compact is structurally incomplete,
	// e.g. a mandate without a witness argument. Nothing is hashed in that case.
	ErrMalformedType = errors.New("malformed type configuration")

	// ErrLayout is returned for field layouts that overlap or do not fit in 256 bits.
	ErrLayout = errors.New("invalid field layout")
)

// FieldError reports a value wider than the field it is packed into.
type FieldError struct {
	Field  string
	Width  uint
	BitLen int
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %d-bit value does not fit in %d bits", e.Field, e.BitLen, e.Width)
}

func (e *FieldError) Is(target error) bool {
	return target == ErrRangeViolation
}
