package pcre

import (
	"errors"
	"strconv"
)

// SyntaxError reports a malformed pattern, or a serialized pattern that
// failed validation in [Load].
type SyntaxError struct {
	// Offset is the byte offset in the pattern (or blob) where the
	// problem was detected.
	Offset int
	Msg    string
	// Err is the underlying cause, if any.
	Err error
}

func (e *SyntaxError) Error() string {
	return "pcre: syntax error at offset " + strconv.Itoa(e.Offset) + ": " + e.Msg
}

func (e *SyntaxError) Unwrap() error { return e.Err }

var _ error = (*SyntaxError)(nil)

func newSyntaxError(offset int, msg string) *SyntaxError {
	return &SyntaxError{Offset: offset, Msg: msg}
}

// CompileError reports a pattern that parsed but cannot be compiled:
// an undefined backreference, too many groups, a lookbehind of variable
// length, or a program that grew too large.
type CompileError struct {
	Offset int
	Msg    string
}

func (e *CompileError) Error() string {
	return "pcre: compile error at offset " + strconv.Itoa(e.Offset) + ": " + e.Msg
}

var _ error = (*CompileError)(nil)

func newCompileError(offset int, msg string) *CompileError {
	return &CompileError{Offset: offset, Msg: msg}
}

// RuntimeErrorKind tells why a match attempt was abandoned.
type RuntimeErrorKind uint8

const (
	// The step budget of [Limits.MatchLimit] was exhausted.
	RuntimeMatchLimit RuntimeErrorKind = iota + 1
	// The backtrack stack grew past [Limits.StackLimit].
	RuntimeStackLimit
	// The context passed to a *Context method was done.
	RuntimeCancelled
)

func (k RuntimeErrorKind) String() string {
	switch k {
	case RuntimeMatchLimit:
		return "match limit exceeded"
	case RuntimeStackLimit:
		return "backtrack stack limit exceeded"
	case RuntimeCancelled:
		return "match cancelled"
	}
	return "unknown runtime error"
}

var (
	// ErrInvalidFlag is returned for a flag passed where it has no meaning,
	// such as FlagNotBOL to Compile.
	ErrInvalidFlag = errors.New("pcre: invalid flag")

	ErrMatchLimit = errors.New("pcre: match limit exceeded")
	ErrStackLimit = errors.New("pcre: backtrack stack limit exceeded")
	ErrCancelled  = errors.New("pcre: match cancelled")
)

// RuntimeError reports a match attempt that could not finish. The compiled
// pattern is unaffected and may be used again.
type RuntimeError struct {
	Kind RuntimeErrorKind
	// Steps is the number of instructions executed before giving up.
	Steps int
	// Err is the context error for RuntimeCancelled.
	Err error
}

func (e *RuntimeError) Error() string {
	msg := "pcre: " + e.Kind.String() + " after " + strconv.Itoa(e.Steps) + " steps"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RuntimeError) Unwrap() []error {
	var errs []error
	switch e.Kind {
	case RuntimeMatchLimit:
		errs = append(errs, ErrMatchLimit)
	case RuntimeStackLimit:
		errs = append(errs, ErrStackLimit)
	case RuntimeCancelled:
		errs = append(errs, ErrCancelled)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

var _ error = (*RuntimeError)(nil)

// EncodingError reports a subject that is not valid UTF-8, or an offset
// that splits a code point, when FlagUTF is set and FlagNoUTFCheck is not.
type EncodingError struct {
	Offset int
	Msg    string
}

func (e *EncodingError) Error() string {
	return "pcre: invalid UTF-8 at offset " + strconv.Itoa(e.Offset) + ": " + e.Msg
}

var _ error = (*EncodingError)(nil)
