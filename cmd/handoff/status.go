package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/joss/handoff/internal/task"
	"github.com/joss/handoff/internal/tui"
)

func statusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status <task-file>",
		Short: "Read a task record once",
		Long: `Read a task record file and print its status.

The record is always a complete snapshot; reading it concurrently with a
running task is safe.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			rec, err := task.Read(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}

			if asJSON {
				data, _ := json.MarshalIndent(rec, "", "  ")
				fmt.Println(string(data))
				return
			}

			printRecord(rec)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func watchCmd() *cobra.Command {
	var intervalMS int

	cmd := &cobra.Command{
		Use:   "watch <task-file>",
		Short: "Poll a task record until the task finishes",
		Long: `Watch a task record file, refreshing until it reaches a terminal
status (completed, error, or timeout).

Without a TTY this falls back to a plain poll loop.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			interval := time.Duration(intervalMS) * time.Millisecond

			var rec *task.Record
			var err error
			if term.IsTerminal(int(os.Stdout.Fd())) {
				rec, err = tui.Watch(args[0], interval)
			} else {
				rec, err = pollPlain(args[0], interval)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if rec != nil {
				printRecord(rec)
				if rec.Status != task.StatusCompleted {
					os.Exit(1)
				}
			}
		},
	}

	cmd.Flags().IntVar(&intervalMS, "interval", 1000, "Poll interval in milliseconds")
	return cmd
}

// pollPlain reads the record on an interval until it is terminal.
func pollPlain(path string, interval time.Duration) (*task.Record, error) {
	for {
		rec, err := task.Read(path)
		if err != nil {
			return nil, err
		}
		if rec.Status.Terminal() {
			return rec, nil
		}
		time.Sleep(interval)
	}
}

func printRecord(rec *task.Record) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	var status string
	switch rec.Status {
	case task.StatusCompleted:
		status = green(string(rec.Status))
	case task.StatusError, task.StatusTimeout:
		status = red(string(rec.Status))
	default:
		status = yellow(string(rec.Status))
	}

	fmt.Printf("TASK %s\n", rec.TaskID)
	fmt.Printf("  Status:   %s\n", status)
	if rec.SessionID != "" {
		fmt.Printf("  Session:  %s\n", rec.SessionID)
	}
	if rec.PID != 0 {
		fmt.Printf("  PID:      %d\n", rec.PID)
	}
	if rec.StartedAt != "" {
		fmt.Printf("  Started:  %s\n", rec.StartedAt)
	}
	if rec.CompletedAt != "" {
		fmt.Printf("  Finished: %s\n", rec.CompletedAt)
	}
	if rec.ExitCode != nil {
		fmt.Printf("  Exit:     %d\n", *rec.ExitCode)
	}
	if rec.Error != "" {
		fmt.Printf("  Error:    %s\n", rec.Error)
	}
	if rec.Output != "" {
		fmt.Println()
		fmt.Print(rec.Output)
	}
}
