package parser

import (
	"errors"
	"fmt"
)

// Kind classifies a file-level parse failure
type Kind int

const (
	KindTruncated Kind = iota + 1
	KindUnexpectedLine
	KindNumberFormat
)

var (
	// ErrTruncated means input ended inside a block
	ErrTruncated = errors.New("truncated record")
	// ErrUnexpectedLine means a line did not carry the prefix the current state expects
	ErrUnexpectedLine = errors.New("unexpected line")
	// ErrNumberFormat means a timestamp or extra field value is not a number
	ErrNumberFormat = errors.New("malformed number")
)

func (k Kind) String() string {
	switch k {
	case KindTruncated:
		return "truncated"
	case KindUnexpectedLine:
		return "unexpected_line"
	case KindNumberFormat:
		return "number_format"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindTruncated:
		return ErrTruncated
	case KindUnexpectedLine:
		return ErrUnexpectedLine
	case KindNumberFormat:
		return ErrNumberFormat
	default:
		return nil
	}
}

// ParseError aborts parsing of one file. Line is the 0-based index of the
// last line consumed, -1 if nothing was read.
type ParseError struct {
	Filename string
	Line     int
	Kind     Kind
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %s: %v", e.Filename, e.Line, e.Kind.sentinel(), e.Err)
}

// Unwrap returns the underlying cause
func (e *ParseError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind
func (e *ParseError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}
