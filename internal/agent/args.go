// Package agent builds the agent CLI invocation and controls the child
// process lifecycle.
package agent

import (
	"strconv"
	"strings"

	"github.com/joss/handoff/internal/permission"
	"github.com/joss/handoff/internal/session"
	"github.com/joss/handoff/internal/task"
)

// permissionModeArg maps the option-model permission mode to the flag
// value the agent CLI expects.
var permissionModeArg = map[task.PermissionMode]string{
	task.PermissionPlan:        "plan",
	task.PermissionAcceptEdits: "acceptEdits",
	task.PermissionDontAsk:     "dontAsk",
	task.PermissionDefault:     "default",
	task.PermissionBypass:      "bypassPermissions",
}

// BuildArgs translates the option model into the literal argument vector
// for the agent process.
//
// List-valued options (allow rules, deny rules, extra directories) are
// serialized as a single comma-joined token each. The agent CLI parses
// these flags as variadic, so separate tokens would make it swallow the
// trailing positional prompt as another list element. The serialization
// goes through a scalar string by construction; the prompt is additionally
// protected by the "--" terminator.
func BuildArgs(opts *task.Options, dir session.Directive, rules *permission.RuleSet, prompt string) []string {
	args := []string{"-p"}

	switch dir.Mode {
	case task.SessionCreate:
		args = append(args, "--session-id", dir.ID)
	case task.SessionResume:
		args = append(args, "--resume", dir.ID)
	case task.SessionContinue:
		args = append(args, "--continue")
	}

	if rules.Mode == task.PermissionBypass && rules.FullTrust {
		args = append(args, "--dangerously-skip-permissions")
	} else if rules.Mode != task.PermissionDefault {
		args = append(args, "--permission-mode", permissionModeArg[rules.Mode])
	}

	if len(rules.Allow) > 0 {
		args = append(args, "--allowedTools", rules.AllowArg())
	}
	if len(rules.Deny) > 0 {
		args = append(args, "--disallowedTools", rules.DenyArg())
	}

	// Always forwarded; the agent itself ignores the model selection when
	// both endpoint and credential overrides are present in the environment.
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}

	if opts.MaxTurns > 0 {
		args = append(args, "--max-turns", strconv.Itoa(opts.MaxTurns))
	}
	if opts.MaxBudgetUSD > 0 {
		args = append(args, "--max-budget-usd", strconv.FormatFloat(opts.MaxBudgetUSD, 'f', -1, 64))
	}

	if opts.Output != "" {
		args = append(args, "--output-format", string(opts.Output))
	}

	if opts.AppendSystemPrompt != "" {
		args = append(args, "--append-system-prompt", opts.AppendSystemPrompt)
	}

	if len(opts.AddDirs) > 0 {
		args = append(args, "--add-dir", joinDirs(opts.AddDirs))
	}

	if opts.MCPConfig != "" {
		args = append(args, "--mcp-config", opts.MCPConfig)
	}

	// End option parsing so the prompt can never be consumed by a
	// variadic flag.
	args = append(args, "--", prompt)
	return args
}

func joinDirs(dirs []string) string {
	trimmed := make([]string, len(dirs))
	for i, d := range dirs {
		trimmed[i] = strings.TrimSpace(d)
	}
	return strings.Join(trimmed, ",")
}
