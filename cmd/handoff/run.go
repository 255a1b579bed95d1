package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joss/handoff/internal/orchestrator"
	"github.com/joss/handoff/internal/task"
)

func runCmd() *cobra.Command {
	var (
		planFile    string
		sessionID   string
		resumeID    string
		continueSes bool
		permMode    string
		fullTrust   bool
		allowTools  string
		denyTools   string
		model       string
		maxTurns    int
		maxBudget   float64
		outputFmt   string
		appendSys   string
		addDirs     string
		mcpConfig   string
		timeoutSec  int
		outputFile  string
		workDir     string
	)

	cmd := &cobra.Command{
		Use:   "run [prompt]",
		Short: "Delegate one task to the agent process",
		Long: `Run the agent in non-interactive mode with one prompt.

Examples:
  # Single analysis query (read-only, safe)
  handoff run --permission-mode plan "Analyze the architecture of src/"

  # Start a new multi-turn session
  handoff run --session 6f1c0793-94a4-44e4-b2fb-507095fc2f33 "Suggest improvements"

  # Resume an existing session
  handoff run --resume 6f1c0793-94a4-44e4-b2fb-507095fc2f33 "Apply the changes"

  # Editing with an explicit tool allowlist
  handoff run --allowed-tools "Read,Edit(src/**),Bash(npm test)" "Fix the token bug"

  # File-based async delegation: poll task.json from another process
  handoff run --output task.json "Refactor the database layer"`,
		Args: cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			opts := &task.Options{
				PlanFile:           planFile,
				Permission:         task.PermissionMode(permMode),
				FullTrust:          fullTrust,
				AllowRules:         splitRules(allowTools),
				DenyRules:          splitRules(denyTools),
				Model:              model,
				MaxTurns:           maxTurns,
				MaxBudgetUSD:       maxBudget,
				Output:             task.OutputFormat(outputFmt),
				AddDirs:            splitList(addDirs),
				AppendSystemPrompt: appendSys,
				MCPConfig:          mcpConfig,
				Timeout:            time.Duration(timeoutSec) * time.Second,
				RecordPath:         outputFile,
				WorkDir:            workDir,
			}
			if len(args) > 0 {
				opts.Prompt = args[0]
			}

			// Session flags are mutually exclusive; cobra enforces that,
			// this just maps them onto the session mode.
			switch {
			case resumeID != "":
				opts.Session = task.SessionResume
				opts.SessionID = resumeID
			case sessionID != "":
				opts.Session = task.SessionCreate
				opts.SessionID = sessionID
			case continueSes:
				opts.Session = task.SessionContinue
			default:
				opts.Session = task.SessionNone
			}

			if cmd.Flags().Changed("output") && outputFile == "" {
				fail(task.NewValidationError("output", "task file path must not be empty"))
			}

			outcome, err := orchestrator.New().Delegate(context.Background(), opts)

			// File sink: the record carries the details; stdout only emits
			// the path so callers can hand it to status/watch.
			if opts.RecordPath != "" && outcome != nil {
				fmt.Println(outcome.RecordPath)
				os.Exit(task.ExitCode(err))
			}

			if outcome != nil && outcome.Result != nil {
				if outcome.Result.Stdout != "" {
					fmt.Print(outcome.Result.Stdout)
				}
				if outcome.Result.Stderr != "" {
					fmt.Fprint(os.Stderr, outcome.Result.Stderr)
				}
			}
			if err != nil {
				if outcome == nil || outcome.Result == nil {
					// Pre-spawn error: nothing was printed yet.
					fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				} else if errors.Is(err, task.ErrTimeout) {
					fmt.Fprintf(os.Stderr, "Error: %v. Consider increasing --timeout for complex tasks.\n", err)
				}
				os.Exit(task.ExitCode(err))
			}
		},
	}

	cmd.Flags().StringVar(&planFile, "plan-file", "", "Read the prompt from a file instead of the command line")
	cmd.Flags().StringVar(&sessionID, "session", "", "Create a new session with this identifier")
	cmd.Flags().StringVar(&resumeID, "resume", "", "Resume an existing session by identifier")
	cmd.Flags().BoolVar(&continueSes, "continue", false, "Continue the most recent session in the working directory")
	cmd.MarkFlagsMutuallyExclusive("session", "resume", "continue")

	cmd.Flags().StringVar(&permMode, "permission-mode", "", "Baseline permission mode (plan|acceptEdits|dontAsk|default|bypass)")
	cmd.Flags().BoolVar(&fullTrust, "full-trust", false, "With bypass: also grant network-sensitive tools")
	cmd.Flags().StringVar(&allowTools, "allowed-tools", "", `Comma-separated tool allow rules, e.g. "Read,Edit(src/**),Bash(npm test)"`)
	cmd.Flags().StringVar(&denyTools, "disallowed-tools", "", `Comma-separated tool deny rules, e.g. "Bash,Write"`)

	cmd.Flags().StringVar(&model, "model", "", "Model alias or full model identifier")
	cmd.Flags().IntVar(&maxTurns, "max-turns", 0, "Max agentic turns before stopping")
	cmd.Flags().Float64Var(&maxBudget, "max-budget", 0, "Max budget in USD before stopping")
	cmd.Flags().StringVar(&outputFmt, "output-format", "", "Output format (text|json|stream-json)")
	cmd.Flags().StringVar(&appendSys, "append-system-prompt", "", "Append additional instructions to the agent's system prompt")
	cmd.Flags().StringVar(&addDirs, "add-dir", "", `Comma-separated additional directories, e.g. "../other-project,/shared/libs"`)
	cmd.Flags().StringVar(&mcpConfig, "mcp-config", "", "Path to MCP server configuration file")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 600, "Agent timeout in seconds")
	cmd.Flags().StringVar(&outputFile, "output", "", "Write results to a JSON task file instead of stdout")
	cmd.Flags().StringVar(&workDir, "dir", "", "Working directory for the agent process")

	return cmd
}

// splitRules splits a comma-separated rule list, keeping commas inside a
// rule's scope parentheses (brace globs like Edit(src/{a,b}/**)) intact.
func splitRules(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				if part := strings.TrimSpace(s[start:i]); part != "" {
					out = append(out, part)
				}
				start = i + 1
			}
		}
	}
	if part := strings.TrimSpace(s[start:]); part != "" {
		out = append(out, part)
	}
	return out
}

// splitList turns a comma-separated flag value into trimmed elements.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(task.ExitCode(err))
}
