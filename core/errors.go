package core

import "github.com/pkg/errors"

// ErrConflict signals that a uniqueness invariant was about to be violated.
// Storage implementations translate driver-specific unique-violation errors
// into this sentinel so callers can recover (or surface HTTP 409).
var ErrConflict = errors.New("already exists")

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// PhaseLockedError is returned when a checklist write is attempted outside
// an editable phase. It is enforced at the API boundary; the core services
// perform no clock checks themselves.
type PhaseLockedError struct {
	Phase string
}

func NewPhaseLockedError(phase string) error {
	return &PhaseLockedError{Phase: phase}
}

func (err PhaseLockedError) Error() string {
	return "checklist is locked during phase " + err.Phase
}

func IsPhaseLocked(err error) bool {
	_, ok := errors.Cause(err).(*PhaseLockedError)
	return ok
}

// ConfigurationError signals invalid deployment configuration, such as an
// unknown timezone identifier.
type ConfigurationError struct {
	Msg string
	Err error
}

func NewConfigurationError(msg string, err error) error {
	return &ConfigurationError{Msg: msg, Err: err}
}

func (err ConfigurationError) Error() string {
	if err.Err != nil {
		return err.Msg + ": " + err.Err.Error()
	}
	return err.Msg
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
