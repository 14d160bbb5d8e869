// Package errdefs holds the error types shared by the mission solver, the
// aerodynamic bridge and the propulsion models. Callers match them with
// errors.As.
package errdefs

import (
	"fmt"
	"time"
)

// ConfigurationError reports a missing, duplicated or inconsistent
// segment or aircraft attribute.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Msg
}

// Configf builds a ConfigurationError from a format string.
func Configf(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// SolverExecutionError reports that the external aerodynamic solver could
// not be launched or did not finish within its allotted time.
type SolverExecutionError struct {
	Executable string
	Timeout    time.Duration // non-zero when the run was killed on expiry
	Err        error
}

func (e *SolverExecutionError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("aerodynamic solver %s did not finish within %s", e.Executable, e.Timeout)
	}
	return fmt.Sprintf("aerodynamic solver %s failed to run: %v", e.Executable, e.Err)
}

func (e *SolverExecutionError) Unwrap() error { return e.Err }

// SolverConvergenceError reports that the solver ran but produced no
// usable trimmed solution.
type SolverConvergenceError struct {
	Path   string
	Reason string
}

func (e *SolverConvergenceError) Error() string {
	msg := "solver failed to reach a trimmed solution"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	return msg
}

// NumericDomainError reports a computed quantity outside its valid domain.
type NumericDomainError struct {
	Quantity string
	Value    float64
	Reason   string
}

func (e *NumericDomainError) Error() string {
	return fmt.Sprintf("numeric domain error: %s = %g: %s", e.Quantity, e.Value, e.Reason)
}

// Domain builds a NumericDomainError.
func Domain(quantity string, value float64, reason string) error {
	return &NumericDomainError{Quantity: quantity, Value: value, Reason: reason}
}

// UnsupportedVariantError reports a segment kind or engine family with no
// matching computation rule.
type UnsupportedVariantError struct {
	Category string // "segment", "engine" ...
	Variant  string
	Op       string // optional operation name
}

func (e *UnsupportedVariantError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("unsupported %s %q for %s", e.Category, e.Variant, e.Op)
	}
	return fmt.Sprintf("unsupported %s %q", e.Category, e.Variant)
}
