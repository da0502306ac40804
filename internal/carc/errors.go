package carc

import (
	"errors"
	"fmt"
)

// EncodeError reports a value that cannot be represented in the format.
type EncodeError struct {
	Field   string
	Message string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("carc encode %s: %s", e.Field, e.Message)
}

// DecodeError reports a corrupt or truncated buffer. Offset is where the
// failing read started.
type DecodeError struct {
	Offset  int
	Message string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("carc decode at offset %d: %s", e.Offset, e.Message)
}

// IsEncodeError reports whether err is or wraps an *EncodeError.
func IsEncodeError(err error) bool {
	var ee *EncodeError
	return errors.As(err, &ee)
}

// IsDecodeError reports whether err is or wraps a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
