// Package main provides the handoff CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/joss/handoff/internal/agent"
	"github.com/joss/handoff/internal/config"
	"github.com/joss/handoff/internal/task"
)

var version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "handoff",
		Short: "Delegate coding tasks to an external agent process",
		Long: `handoff: delegate one coding task to the agent CLI and collect the result.

Usage modes:
  handoff run "prompt"              Run a task, result on stdout
  handoff run --output task.json    Run a task, result in a pollable task file
  handoff status task.json          Read a task file once
  handoff watch task.json           Poll a task file until the task finishes

Use 'handoff doctor' to check the environment.`,
	}

	rootCmd.AddGroup(
		&cobra.Group{ID: "task", Title: "Tasks:"},
		&cobra.Group{ID: "env", Title: "Environment:"},
	)

	run := runCmd()
	run.GroupID = "task"
	rootCmd.AddCommand(run)

	status := statusCmd()
	status.GroupID = "task"
	rootCmd.AddCommand(status)

	watch := watchCmd()
	watch.GroupID = "task"
	rootCmd.AddCommand(watch)

	doctor := doctorCmd()
	doctor.GroupID = "env"
	rootCmd.AddCommand(doctor)

	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show handoff version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("handoff version %s\n", version)
		},
	}
}

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check environment health",
		Long: `Diagnose the handoff runtime environment.

Checks:
  - Agent executable on PATH
  - Service endpoint / credential overrides`,
		Run: func(cmd *cobra.Command, args []string) {
			env := config.Env()
			ok := color.New(color.FgGreen).SprintFunc()
			bad := color.New(color.FgRed).SprintFunc()

			healthy := true
			ctrl := agent.NewController(env.AgentBin, task.DefaultTimeout)
			if path, err := ctrl.Resolve(); err == nil {
				fmt.Printf("%s agent executable: %s\n", ok("✓"), path)
			} else {
				fmt.Printf("%s agent executable: %q not found on PATH\n", bad("✗"), env.AgentBin)
				healthy = false
			}

			if env.AnthropicBaseURL != "" {
				fmt.Printf("%s endpoint override: %s\n", ok("✓"), env.AnthropicBaseURL)
			} else {
				fmt.Println("  endpoint override: not set")
			}
			if env.AnthropicKey != "" {
				fmt.Printf("%s credential: set\n", ok("✓"))
			} else {
				fmt.Println("  credential: not set (agent uses its own login)")
			}
			if config.ThirdPartyConfigured() && env.Model != "" {
				fmt.Println("  note: with endpoint and credential overrides set, the agent ignores --model")
			}

			if !healthy {
				os.Exit(1)
			}
		},
	}
}
