package remind

import (
	"errors"
	"fmt"
)

// ErrRateLimited reports that a user hit the creation cap for the current
// window.
var ErrRateLimited = errors.New("rate limit exceeded")

// SyntaxError is a recoverable user error. Message is safe to show as-is;
// Examples, when set, carries usage examples for the failing scenario.
type SyntaxError struct {
	Message  string
	Examples string
	cause    error
}

func (e *SyntaxError) Error() string { return e.Message }
func (e *SyntaxError) Unwrap() error { return e.cause }

func syntaxErr(cause error, examples, format string, args ...any) *SyntaxError {
	return &SyntaxError{
		Message:  fmt.Sprintf(format, args...),
		Examples: examples,
		cause:    cause,
	}
}
