package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrFieldCount     = errors.New("protocol: line does not have 6 fields")
	ErrFieldRange     = errors.New("protocol: field out of range")
	ErrUnknownCommand = errors.New("protocol: unknown command")
	ErrBadHex         = errors.New("protocol: invalid hex payload")
	ErrLineTooLong    = errors.New("protocol: line exceeds buffer limit")
	ErrShortPayload   = errors.New("protocol: payload too short")
)

// DecodeError reports a line that could not be turned into a Frame.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
