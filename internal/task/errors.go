package task

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the delegation pipeline. Wrap these with the typed
// errors below so callers can branch with errors.Is while still getting a
// machine-readable code and a human message.
var (
	// ErrValidation indicates malformed or contradictory options, caught
	// before any process spawns.
	ErrValidation = errors.New("invalid options")

	// ErrInvalidIdentifier indicates a malformed session identifier.
	ErrInvalidIdentifier = errors.New("invalid session identifier")

	// ErrSessionConflict indicates the agent refused a session operation
	// (create against an existing session, resume against a missing one).
	ErrSessionConflict = errors.New("session conflict")

	// ErrRuleConflict indicates duplicate or contradictory permission rules.
	ErrRuleConflict = errors.New("permission rule conflict")

	// ErrToolNotFound indicates the agent executable is not resolvable.
	ErrToolNotFound = errors.New("agent executable not found")

	// ErrProcessFailure indicates the agent exited nonzero.
	ErrProcessFailure = errors.New("agent process failed")

	// ErrTimeout indicates the agent exceeded its time limit and was killed.
	ErrTimeout = errors.New("agent process timed out")
)

// Reserved exit codes, matching the conventional shell codes the agent's
// own callers expect.
const (
	ExitUsage        = 2
	ExitTimeout      = 124
	ExitToolNotFound = 127
)

// ValidationError reports a contradictory or malformed option set.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ValidationError) Code() string { return "validation" }

// NewValidationError creates a typed validation error.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InvalidIdentifierError reports a session identifier that is not a
// canonical hyphenated 128-bit value.
type InvalidIdentifierError struct {
	ID string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid session identifier: %q", e.ID)
}

func (e *InvalidIdentifierError) Unwrap() error { return ErrInvalidIdentifier }

func (e *InvalidIdentifierError) Code() string { return "invalid_identifier" }

// SessionConflictError surfaces the agent's own refusal of a session
// operation, detected from its exit status and stderr.
type SessionConflictError struct {
	SessionID string
	Detail    string
}

func (e *SessionConflictError) Error() string {
	return fmt.Sprintf("session %s: %s", e.SessionID, e.Detail)
}

func (e *SessionConflictError) Unwrap() error { return ErrSessionConflict }

func (e *SessionConflictError) Code() string { return "session_conflict" }

// RuleConflictError reports duplicate or contradictory permission rules.
// The composer never resolves these silently.
type RuleConflictError struct {
	Rule string
}

func (e *RuleConflictError) Error() string {
	return fmt.Sprintf("conflicting permission rule: %s", e.Rule)
}

func (e *RuleConflictError) Unwrap() error { return ErrRuleConflict }

func (e *RuleConflictError) Code() string { return "rule_conflict" }

// ToolNotFoundError reports that the agent executable could not be
// resolved on PATH. Reported before any spawn attempt, never conflated
// with a runtime failure.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("%q not found on PATH (install the agent CLI first)", e.Name)
}

func (e *ToolNotFoundError) Unwrap() error { return ErrToolNotFound }

func (e *ToolNotFoundError) Code() string { return "tool_not_found" }

// ProcessFailure reports a nonzero agent exit with a stderr preview.
type ProcessFailure struct {
	ExitCode int
	Stderr   string
}

func (e *ProcessFailure) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("agent exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("agent exited with code %d: %s", e.ExitCode, e.Stderr)
}

func (e *ProcessFailure) Unwrap() error { return ErrProcessFailure }

func (e *ProcessFailure) Code() string { return "process_failure" }

// TimeoutExceeded reports that the timeout fired and the process group
// was terminated.
type TimeoutExceeded struct {
	Limit time.Duration
}

func (e *TimeoutExceeded) Error() string {
	return fmt.Sprintf("agent did not finish within %s", e.Limit)
}

func (e *TimeoutExceeded) Unwrap() error { return ErrTimeout }

func (e *TimeoutExceeded) Code() string { return "timeout" }

// IsValidation checks if an error is a pre-spawn validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsTimeout checks if an error is a timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// ExitCode maps an error from the delegation pipeline to the process
// exit code the CLI should report.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var pf *ProcessFailure
	switch {
	case errors.Is(err, ErrTimeout):
		return ExitTimeout
	case errors.Is(err, ErrToolNotFound):
		return ExitToolNotFound
	case errors.As(err, &pf):
		return pf.ExitCode
	case errors.Is(err, ErrSessionConflict):
		return 1
	default:
		return ExitUsage
	}
}
