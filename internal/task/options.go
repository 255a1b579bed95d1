// Package task defines the option model, error taxonomy, and task record
// protocol for delegating one coding task to the external agent process.
package task

import (
	"os"
	"path/filepath"
	"time"
)

// SessionMode selects how the invocation relates to the agent's
// cross-invocation session store.
type SessionMode string

const (
	SessionNone     SessionMode = "none"
	SessionCreate   SessionMode = "create"
	SessionResume   SessionMode = "resume"
	SessionContinue SessionMode = "continue"
)

// PermissionMode is the baseline capability grant applied before rule
// overlays.
type PermissionMode string

const (
	PermissionPlan        PermissionMode = "plan"
	PermissionAcceptEdits PermissionMode = "acceptEdits"
	PermissionDontAsk     PermissionMode = "dontAsk"
	PermissionDefault     PermissionMode = "default"
	PermissionBypass      PermissionMode = "bypass"
)

// OutputFormat selects how the agent renders its result stream.
type OutputFormat string

const (
	OutputText   OutputFormat = "text"
	OutputJSON   OutputFormat = "json"
	OutputStream OutputFormat = "stream-json"
)

// DefaultTimeout bounds an invocation when the caller does not set one.
const DefaultTimeout = 600 * time.Second

// Options is the validated, normalized representation of one delegation.
// Zero values mean "not set"; Validate enforces the cross-field invariants.
type Options struct {
	// Prompt is the inline task text. Mutually exclusive with PlanFile.
	Prompt string

	// PlanFile sources the prompt from a file instead of inline text.
	PlanFile string

	// Session selects none/create/resume/continue semantics.
	Session SessionMode

	// SessionID is required iff Session is create or resume.
	SessionID string

	// Permission is the baseline permission mode.
	Permission PermissionMode

	// AllowRules and DenyRules are tool rules, e.g. "Read" or "Edit(src/**)".
	AllowRules []string
	DenyRules  []string

	// FullTrust is the explicit escape hatch that lets bypass mode grant
	// network-sensitive tools. Only meaningful with PermissionBypass.
	FullTrust bool

	// Model is the model alias or full identifier, forwarded as-is.
	Model string

	// MaxTurns and MaxBudgetUSD bound the agent's work. Zero means unset.
	MaxTurns     int
	MaxBudgetUSD float64

	// Output selects the agent's output format.
	Output OutputFormat

	// AddDirs grants the agent access to directories beyond the workspace.
	AddDirs []string

	// AppendSystemPrompt is extra text appended to the agent's system prompt.
	AppendSystemPrompt string

	// MCPConfig is a path to an MCP server configuration file.
	MCPConfig string

	// Timeout bounds the whole invocation. Must be positive.
	Timeout time.Duration

	// RecordPath enables the file-based result sink when non-empty.
	// Empty means the console sink.
	RecordPath string

	// WorkDir is the agent's working directory. Empty means inherit.
	WorkDir string
}

// Validate checks the option set for contradictions. It is pure: calling
// it twice on the same value yields the same result, and it never mutates
// the receiver.
func (o *Options) Validate() error {
	if o.Prompt == "" && o.PlanFile == "" {
		return NewValidationError("prompt", "a prompt or a plan file is required")
	}
	if o.Prompt != "" && o.PlanFile != "" {
		return NewValidationError("prompt", "inline prompt and plan file are mutually exclusive")
	}

	switch o.Session {
	case SessionNone, "":
		if o.SessionID != "" {
			return NewValidationError("session", "session identifier given without create or resume")
		}
	case SessionCreate:
		if o.SessionID == "" {
			return NewValidationError("session", "create requires a session identifier")
		}
	case SessionResume:
		if o.SessionID == "" {
			return NewValidationError("session", "resume requires a session identifier")
		}
	case SessionContinue:
		if o.SessionID != "" {
			return NewValidationError("session", "continue resolves the most recent session and takes no identifier")
		}
	default:
		return NewValidationError("session", "unknown session mode: "+string(o.Session))
	}

	switch o.Permission {
	case "", PermissionPlan, PermissionAcceptEdits, PermissionDontAsk, PermissionDefault, PermissionBypass:
	default:
		return NewValidationError("permission-mode", "unknown permission mode: "+string(o.Permission))
	}
	if o.FullTrust && o.Permission != PermissionBypass {
		return NewValidationError("full-trust", "full-trust is only meaningful with bypass mode")
	}

	switch o.Output {
	case "", OutputText, OutputJSON, OutputStream:
	default:
		return NewValidationError("output-format", "unknown output format: "+string(o.Output))
	}

	if o.Timeout <= 0 {
		return NewValidationError("timeout", "timeout must be positive")
	}

	if o.RecordPath != "" {
		dir := filepath.Dir(o.RecordPath)
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return NewValidationError("output", "task file directory does not exist: "+dir)
		}
	}

	return nil
}
