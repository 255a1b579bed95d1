// Package permission composes the baseline permission mode and allow/deny
// tool rules into the final rule set passed to the agent process.
//
// Precedence is a single auditable composition: deny beats allow, allow
// beats the baseline, and the network-sensitive override beats bypass
// unless full trust is declared.
package permission

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/joss/handoff/internal/task"
)

// Rule is a (tool, optional scope) pair, e.g. Read or Edit(src/**) or
// Bash(npm test). An empty scope means the tool is unrestricted within
// the baseline.
type Rule struct {
	Tool  string
	Scope string
}

// String renders the rule in the agent's Tool(scope) syntax.
func (r Rule) String() string {
	if r.Scope == "" {
		return r.Tool
	}
	return fmt.Sprintf("%s(%s)", r.Tool, r.Scope)
}

// MatchesPath reports whether a scoped rule covers the given path.
// Unscoped rules match everything.
func (r Rule) MatchesPath(path string) bool {
	if r.Scope == "" {
		return true
	}
	ok, err := doublestar.Match(r.Scope, path)
	return err == nil && ok
}

// networkSensitive lists tools with fetch/search capability. They are
// excluded from every baseline grant and must appear verbatim in the
// allow list, even under bypass, unless full trust is declared.
var networkSensitive = []string{"WebFetch", "WebSearch"}

// NetworkSensitive reports whether a tool name carries network capability.
func NetworkSensitive(tool string) bool {
	for _, t := range networkSensitive {
		if t == tool {
			return true
		}
	}
	return false
}

// ParseRule parses Tool or Tool(scope) syntax. Scope glob patterns are
// validated eagerly so a malformed rule fails before any process spawns.
func ParseRule(s string) (Rule, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Rule{}, task.NewValidationError("rule", "empty tool rule")
	}

	open := strings.IndexByte(s, '(')
	if open < 0 {
		if strings.ContainsAny(s, ") ,") {
			return Rule{}, task.NewValidationError("rule", "malformed tool rule: "+s)
		}
		return Rule{Tool: s}, nil
	}

	if !strings.HasSuffix(s, ")") || open == 0 {
		return Rule{}, task.NewValidationError("rule", "malformed tool rule: "+s)
	}
	tool := s[:open]
	scope := s[open+1 : len(s)-1]
	if scope == "" {
		return Rule{}, task.NewValidationError("rule", "empty scope in rule: "+s)
	}
	if !doublestar.ValidatePattern(scope) {
		return Rule{}, task.NewValidationError("rule", "invalid scope pattern: "+s)
	}
	return Rule{Tool: tool, Scope: scope}, nil
}

// ParseRules parses a list of rule strings, preserving order.
func ParseRules(raw []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(raw))
	for _, s := range raw {
		r, err := ParseRule(s)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// RuleSet is the composed result ready for argument translation.
type RuleSet struct {
	Mode      task.PermissionMode
	Allow     []Rule
	Deny      []Rule
	FullTrust bool
}

// Compose builds the final rule set from a baseline mode and allow/deny
// rule lists.
//
// The baseline mode carries its implicit capability set (read-only for
// plan, read+edit for acceptEdits, everything for bypass); the agent
// enforces it. Overlays are composed here: allow rules add, deny rules
// subtract with higher precedence. A tool+scope pair appearing twice in a
// list or in both lists is a RuleConflictError, never last-writer-wins.
// Network-sensitive tools are force-denied unless present verbatim in the
// allow list; this applies under bypass too unless fullTrust is set.
func Compose(mode task.PermissionMode, allow, deny []string, fullTrust bool) (*RuleSet, error) {
	if mode == "" {
		mode = task.PermissionDefault
	}

	allowRules, err := ParseRules(allow)
	if err != nil {
		return nil, err
	}
	denyRules, err := ParseRules(deny)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]string) // rule -> list it came from
	for _, r := range allowRules {
		key := r.String()
		if seen[key] != "" {
			return nil, &task.RuleConflictError{Rule: key}
		}
		seen[key] = "allow"
	}
	for _, r := range denyRules {
		key := r.String()
		if seen[key] != "" {
			return nil, &task.RuleConflictError{Rule: key}
		}
		seen[key] = "deny"
	}

	rs := &RuleSet{
		Mode:      mode,
		Allow:     allowRules,
		Deny:      denyRules,
		FullTrust: fullTrust,
	}

	if !fullTrust {
		for _, tool := range networkSensitive {
			if rs.allowedVerbatim(tool) || rs.deniedVerbatim(tool) {
				continue
			}
			rs.Deny = append(rs.Deny, Rule{Tool: tool})
		}
	}

	return rs, nil
}

// allowedVerbatim reports whether the tool appears unscoped in the allow
// list. A scoped allow does not lift the network-sensitive override.
func (rs *RuleSet) allowedVerbatim(tool string) bool {
	for _, r := range rs.Allow {
		if r.Tool == tool && r.Scope == "" {
			return true
		}
	}
	return false
}

func (rs *RuleSet) deniedVerbatim(tool string) bool {
	for _, r := range rs.Deny {
		if r.Tool == tool && r.Scope == "" {
			return true
		}
	}
	return false
}

// AllowArg serializes the allow rules as the single comma-joined token
// the translator forwards.
func (rs *RuleSet) AllowArg() string {
	return joinRules(rs.Allow)
}

// DenyArg serializes the deny rules as a single comma-joined token.
func (rs *RuleSet) DenyArg() string {
	return joinRules(rs.Deny)
}

func joinRules(rules []Rule) string {
	parts := make([]string, len(rules))
	for i, r := range rules {
		parts[i] = r.String()
	}
	return strings.Join(parts, ",")
}
