package openclaw

import (
	"fmt"
	"strings"
)

// maxRawInError bounds the raw payload echoed by ParseError.Error.
const maxRawInError = 200

// ParseError reports output that could not be parsed. Raw keeps the full text
// for diagnostics.
type ParseError struct {
	Op  string
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	raw := e.Raw
	if len(raw) > maxRawInError {
		raw = raw[:maxRawInError] + "..."
	}
	return fmt.Sprintf("parse %s: %v (raw: %q)", e.Op, e.Err, raw)
}

func (e *ParseError) Unwrap() error { return e.Err }

// CommandError reports a failed openclaw invocation.
type CommandError struct {
	Args    []string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("openclaw %s: %s", strings.Join(e.Args, " "), e.Message)
}
