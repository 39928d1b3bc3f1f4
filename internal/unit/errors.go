package unit

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
	"golang.org/x/xerrors"
)

// ErrorCode identifies one of the five error kinds §7 names. Parse and
// Compatibility errors are recorded as LoadFailed and the rescan continues;
// Spawn and Activate errors surface through the same LoadFailed channel;
// Invariant errors abort the rescan.
type ErrorCode int

const (
	_ ErrorCode = iota
	ErrParse
	ErrCompatibility
	ErrSpawn
	ErrActivate
	ErrInvariant
)

func (c ErrorCode) String() string {
	switch c {
	case ErrParse:
		return "Parse"
	case ErrCompatibility:
		return "Compatibility"
	case ErrSpawn:
		return "Spawn"
	case ErrActivate:
		return "Activate"
	case ErrInvariant:
		return "Invariant"
	default:
		return "Unknown"
	}
}

// CodedError carries an ErrorCode alongside its message so callers can
// branch on kind without string matching, adapted from the predecessor's
// ComplexError (pkg/commands/errors.go).
type CodedError struct {
	Code    ErrorCode
	Message string
	frame   xerrors.Frame
}

func NewCodedError(code ErrorCode, format string, args ...interface{}) *CodedError {
	return &CodedError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		frame:   xerrors.Caller(1),
	}
}

func (e *CodedError) FormatError(p xerrors.Printer) error {
	p.Printf("%s: %s", e.Code, e.Message)
	e.frame.Format(p)
	return nil
}

func (e *CodedError) Format(f fmt.State, c rune) { xerrors.FormatError(e, f, c) }

func (e *CodedError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

// HasCode reports whether err is a *CodedError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var ce *CodedError
	if xerrors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// Wrap adds a stack trace to err for top-level diagnostics, mirroring the
// predecessor's WrapError. Returns nil for a nil input.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, 1)
}

func ParseError(format string, args ...interface{}) error {
	return NewCodedError(ErrParse, format, args...)
}

func CompatibilityError(format string, args ...interface{}) error {
	return NewCodedError(ErrCompatibility, format, args...)
}

func SpawnError(format string, args ...interface{}) error {
	return NewCodedError(ErrSpawn, format, args...)
}

func ActivateError(format string, args ...interface{}) error {
	return NewCodedError(ErrActivate, format, args...)
}

func InvariantError(format string, args ...interface{}) error {
	return NewCodedError(ErrInvariant, format, args...)
}
