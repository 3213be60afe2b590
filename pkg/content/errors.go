package content

import (
	"errors"
	"fmt"

	"github.com/fluxo/siard-archiver/pkg/typemap"
)

// Kind classifies content errors
type Kind int

const (
	KindArityMismatch Kind = iota + 1
	KindUnsupportedType
	KindIOFailure
	KindUnsupportedFeature
	KindInvalidState
)

// Sentinels matched by errors.Is against an *Error of the same kind
var (
	ErrArityMismatch      = errors.New("row arity does not match table")
	ErrUnsupportedType    = typemap.ErrUnsupportedType
	ErrIOFailure          = errors.New("i/o failure")
	ErrUnsupportedFeature = errors.New("unsupported feature")
	ErrInvalidState       = errors.New("invalid writer state")
)

func (k Kind) sentinel() error {
	switch k {
	case KindArityMismatch:
		return ErrArityMismatch
	case KindUnsupportedType:
		return ErrUnsupportedType
	case KindIOFailure:
		return ErrIOFailure
	case KindUnsupportedFeature:
		return ErrUnsupportedFeature
	case KindInvalidState:
		return ErrInvalidState
	}
	return nil
}

// Code returns the error code used in logs and reports
func (k Kind) Code() string {
	switch k {
	case KindArityMismatch:
		return "ARITY_MISMATCH"
	case KindUnsupportedType:
		return "UNSUPPORTED_TYPE"
	case KindIOFailure:
		return "IO_FAILURE"
	case KindUnsupportedFeature:
		return "UNSUPPORTED_FEATURE"
	case KindInvalidState:
		return "INVALID_STATE"
	}
	return "UNKNOWN"
}

// Error is the single structured error surfaced by the content writer
type Error struct {
	Kind  Kind
	Table string
	LOB   string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Kind.sentinel().Error()
	if e.Table != "" {
		msg = fmt.Sprintf("%s: table %s", msg, e.Table)
	}
	if e.LOB != "" {
		msg = fmt.Sprintf("%s: lob %s", msg, e.LOB)
	}
	if e.Err != nil && e.Err != e.Kind.sentinel() {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func newError(kind Kind, table string, err error) *Error {
	return &Error{Kind: kind, Table: table, Err: err}
}

// Code extracts the error code of err, or "INTERNAL" for foreign errors
func Code(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind.Code()
	}
	return "INTERNAL"
}
