/*
Package mawerr collects the sentinel error values shared across
bwtindex, enumerator, and maws, so a caller can classify a failure with
errors.Is instead of string-matching messages.

Go has no equivalent of a checked-exception hierarchy, so the four
broad failure categories a BWT-indexing pipeline runs into (input
format, I/O, resource exhaustion, programmer error) become plain
wrapped sentinels here, following the pattern of errors.New and
fmt.Errorf("...: %w", ...) used throughout this codebase rather than a
custom error-handling framework. Programmer errors (out-of-range
access, an unknown policy id) are not represented here at all: they
panic at the call site instead.
*/
package mawerr

import (
	"errors"
	"fmt"
)

// ErrInputFormat wraps a failure to validate input: an invalid DNA/RNA
// symbol, an empty text, or multi-string inputs whose lengths don't match.
var ErrInputFormat = errors.New("mawerr: invalid input format")

// ErrIO wraps a failure reading or writing a file or stream.
var ErrIO = errors.New("mawerr: I/O failure")

// ErrResource wraps a failure to obtain memory, goroutines, or other
// runtime resources needed to complete an operation.
var ErrResource = errors.New("mawerr: resource exhausted")

// IO wraps err so that errors.Is(result, ErrIO) holds. Only ErrIO is
// wrapped: err appears in the message text (%v) but errors.Unwrap and
// errors.Is do not reach it. A single
// %w is used rather than fmt.Errorf's 1.20+ multi-%w support, since the
// module still targets Go 1.19.
func IO(err error) error {
	return fmt.Errorf("%w: %v", ErrIO, err)
}
