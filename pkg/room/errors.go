package room

import (
	"fmt"

	"github.com/cardroom/cardroom/pkg/wire"
)

// Error is a protocol visible command rejection. The gateway converts it to
// an error message for the submitter; it is never broadcast.
type Error struct {
	Code    wire.ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errf builds a protocol error.
func Errf(code wire.ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the wire error code from err, defaulting to internal for
// anything that is not a protocol error.
func CodeOf(err error) wire.ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return wire.CodeInternal
}
