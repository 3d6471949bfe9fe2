package command

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownService    = errors.New("unknown service")
	ErrUnknownAction     = errors.New("unknown action")
	ErrArity             = errors.New("missing arguments")
	ErrMalformedArgument = errors.New("malformed argument")
	ErrLineTooLong       = errors.New("line too long")
)

// ParseError describes why a workload line could not be turned into a
// command. Kind is one of the sentinel errors above.
type ParseError struct {
	Kind  error
	Line  string
	Token string
	// Want is the minimum token count for arity failures and the byte limit
	// for ErrLineTooLong.
	Want int
	Err  error
}

// LineTooLong reports a line over limit bytes. prefix is its start, kept for
// the report.
func LineTooLong(prefix string, limit int) *ParseError {
	return &ParseError{Kind: ErrLineTooLong, Line: prefix, Want: limit}
}

func (e *ParseError) Error() string {
	switch {
	case errors.Is(e.Kind, ErrLineTooLong):
		return fmt.Sprintf("%v: %q... exceeds %d bytes", e.Kind, e.Line, e.Want)
	case errors.Is(e.Kind, ErrArity):
		return fmt.Sprintf("%v: %q needs at least %d tokens", e.Kind, e.Line, e.Want)
	case e.Err != nil:
		return fmt.Sprintf("%v %q in %q: %v", e.Kind, e.Token, e.Line, e.Err)
	default:
		return fmt.Sprintf("%v %q in %q", e.Kind, e.Token, e.Line)
	}
}

func (e *ParseError) Unwrap() error {
	return e.Kind
}
