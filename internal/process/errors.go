package process

import (
	"errors"
	"fmt"
	"strings"
)

// Static error variables to satisfy err113 linter
var (
	ErrCommandNotRegistered = errors.New("no results registered for command")
	ErrResultsExhausted     = errors.New("registered results exhausted for command")
	ErrCallMismatch         = errors.New("recorded calls do not match expected calls")
)

// ConfigurationError reports a call the double was not provisioned for.
// It always means the test set up too few results.
type ConfigurationError struct {
	Key string
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%v: %q", e.Err, e.Key)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// VerificationError reports recorded calls that differ from the expected list
type VerificationError struct {
	Expected []string
	Recorded []string
	// Index is the first differing position, or -1 when only the counts differ.
	Index int
}

func (e *VerificationError) Error() string {
	var b strings.Builder
	if e.Index < 0 {
		fmt.Fprintf(&b, "%v: expected %d call(s), got %d", ErrCallMismatch, len(e.Expected), len(e.Recorded))
	} else {
		fmt.Fprintf(&b, "%v: call %d: expected %q, got %q",
			ErrCallMismatch, e.Index, e.Expected[e.Index], e.Recorded[e.Index])
	}
	b.WriteString("\nexpected:\n")
	for _, c := range e.Expected {
		b.WriteString("  " + c + "\n")
	}
	b.WriteString("recorded:\n")
	for _, c := range e.Recorded {
		b.WriteString("  " + c + "\n")
	}
	return b.String()
}

func (e *VerificationError) Unwrap() error {
	return ErrCallMismatch
}
