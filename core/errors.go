package lisp

import "fmt"

// ParseError reports malformed input. Line is 1-based and counts lines
// pulled from the source; zero means unknown.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse error (line %d): %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("parse error: %s", e.Msg)
}

// ApplyError is returned when the function position is neither a
// primitive, a lambda, nor a symbol that resolves to one.
type ApplyError struct {
	Fn Sexpr
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("cannot apply %s", e.Fn.String())
}

// ArgError covers wrong argument counts and shapes for primitives and
// special forms.
type ArgError struct {
	Name string
	Msg  string
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Msg)
}

func argErrorf(name, format string, args ...any) error {
	return &ArgError{Name: name, Msg: fmt.Sprintf(format, args...)}
}

// DepthError is returned when nested eval/apply calls pass the configured
// ceiling.
type DepthError struct {
	Limit int
}

func (e *DepthError) Error() string {
	return fmt.Sprintf("recursion limit exceeded (%d)", e.Limit)
}
