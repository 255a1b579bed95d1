// Package session validates session identifiers and resolves session-mode
// directives for the agent process. The agent owns the session store;
// uniqueness enforcement stays with it. This package only checks identifier
// shape, enforces mode exclusivity, and recognizes the agent's own refusal.
package session

import (
	"strings"

	"github.com/google/uuid"

	"github.com/joss/handoff/internal/task"
)

// Directive is the resolved session instruction forwarded to the
// argument translator.
type Directive struct {
	Mode task.SessionMode
	ID   string
}

// Validate checks that id is a canonical hyphenated 128-bit identifier
// and returns its normalized lowercase form.
func Validate(id string) (string, error) {
	// uuid.Parse also accepts urn: and braced forms; require the canonical
	// 36-character rendering.
	if len(id) != 36 {
		return "", &task.InvalidIdentifierError{ID: id}
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", &task.InvalidIdentifierError{ID: id}
	}
	return parsed.String(), nil
}

// Mint returns a fresh canonical session identifier.
func Mint() string {
	return uuid.NewString()
}

// Resolve turns a session mode and identifier into a directive.
// Create and resume require a valid identifier; continue and none reject
// one. Collision checks are not performed here: the agent process is the
// authority over its session store and refuses conflicting operations
// itself (see Conflict).
func Resolve(mode task.SessionMode, id string) (Directive, error) {
	switch mode {
	case task.SessionNone, "":
		if id != "" {
			return Directive{}, task.NewValidationError("session", "identifier given without create or resume")
		}
		return Directive{Mode: task.SessionNone}, nil
	case task.SessionContinue:
		if id != "" {
			return Directive{}, task.NewValidationError("session", "continue takes no identifier")
		}
		return Directive{Mode: task.SessionContinue}, nil
	case task.SessionCreate, task.SessionResume:
		if id == "" {
			return Directive{}, task.NewValidationError("session", string(mode)+" requires a session identifier")
		}
		normalized, err := Validate(id)
		if err != nil {
			return Directive{}, err
		}
		return Directive{Mode: mode, ID: normalized}, nil
	default:
		return Directive{}, task.NewValidationError("session", "unknown session mode: "+string(mode))
	}
}

// conflictMarkers are stderr fragments the agent emits when it refuses a
// session operation: creating an identifier it already knows, or resuming
// one it does not.
var conflictMarkers = []string{
	"already in use",
	"already exists",
	"no conversation found",
	"no session found",
	"session not found",
}

// Conflict inspects the agent's exit status and stderr after a create or
// resume attempt and surfaces its refusal as a SessionConflictError.
// Returns nil when the failure is not session-related.
func Conflict(dir Directive, exitCode int, stderr string) error {
	if exitCode == 0 || dir.ID == "" {
		return nil
	}
	if dir.Mode != task.SessionCreate && dir.Mode != task.SessionResume {
		return nil
	}
	lower := strings.ToLower(stderr)
	for _, marker := range conflictMarkers {
		if strings.Contains(lower, marker) {
			return &task.SessionConflictError{
				SessionID: dir.ID,
				Detail:    strings.TrimSpace(stderr),
			}
		}
	}
	return nil
}
