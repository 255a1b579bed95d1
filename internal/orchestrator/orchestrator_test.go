//go:build !windows

package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/handoff/internal/agent"
	"github.com/joss/handoff/internal/task"
)

const conflictID = "6f1c0793-94a4-44e4-b2fb-507095fc2f33"

// fakeAgent writes a shell script standing in for the agent binary and
// returns its absolute path.
func fakeAgent(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-agent")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

// echoArgs prints every argument on its own line and exits 0.
const echoArgs = `printf '%s\n' "$@"`

func baseOptions() *task.Options {
	return &task.Options{
		Prompt:  "summarize the diff",
		Timeout: 10 * time.Second,
	}
}

func TestDelegateConsoleSink(t *testing.T) {
	o := NewWithBin(fakeAgent(t, echoArgs))
	opts := baseOptions()

	out, err := o.Delegate(context.Background(), opts)
	require.NoError(t, err)
	require.NotNil(t, out.Result)

	assert.Equal(t, agent.StateCompleted, out.Result.State)
	assert.Equal(t, 0, out.Result.ExitCode)
	assert.Empty(t, out.RecordPath)

	// The prompt travels as the final argument after the terminator.
	lines := strings.Split(strings.TrimRight(out.Result.Stdout, "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.Equal(t, "--", lines[len(lines)-2])
	assert.Equal(t, "summarize the diff", lines[len(lines)-1])
}

func TestDelegateFileSinkCompleted(t *testing.T) {
	o := NewWithBin(fakeAgent(t, `echo agent output`))
	opts := baseOptions()
	opts.RecordPath = filepath.Join(t.TempDir(), "task.json")

	out, err := o.Delegate(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, opts.RecordPath, out.RecordPath)

	rec, err := task.Read(opts.RecordPath)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, rec.Status)
	assert.Equal(t, "agent output\n", rec.Output)
	assert.Equal(t, os.Getpid(), rec.PID)
	require.NotNil(t, rec.ExitCode)
	assert.Equal(t, 0, *rec.ExitCode)
	assert.NotEmpty(t, rec.TaskID)
	assert.NotEmpty(t, rec.CompletedAt)
}

func TestDelegateFileSinkFailed(t *testing.T) {
	o := NewWithBin(fakeAgent(t, `echo model overloaded >&2; exit 5`))
	opts := baseOptions()
	opts.RecordPath = filepath.Join(t.TempDir(), "task.json")

	_, err := o.Delegate(context.Background(), opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, task.ErrProcessFailure))

	rec, readErr := task.Read(opts.RecordPath)
	require.NoError(t, readErr)
	assert.Equal(t, task.StatusError, rec.Status)
	assert.Contains(t, rec.Error, "model overloaded")
	require.NotNil(t, rec.ExitCode)
	assert.Equal(t, 5, *rec.ExitCode)
}

func TestDelegateFileSinkTimeout(t *testing.T) {
	o := NewWithBin(fakeAgent(t, `sleep 30`))
	opts := baseOptions()
	opts.Timeout = 300 * time.Millisecond
	opts.RecordPath = filepath.Join(t.TempDir(), "task.json")

	_, err := o.Delegate(context.Background(), opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, task.ErrTimeout))
	assert.Equal(t, task.ExitTimeout, task.ExitCode(err))

	rec, readErr := task.Read(opts.RecordPath)
	require.NoError(t, readErr)
	assert.Equal(t, task.StatusTimeout, rec.Status)
	require.NotNil(t, rec.ExitCode)
	assert.Equal(t, task.ExitTimeout, *rec.ExitCode)
}

func TestDelegateSessionConflict(t *testing.T) {
	o := NewWithBin(fakeAgent(t, `echo "Error: Session ID `+conflictID+` is already in use" >&2; exit 1`))
	opts := baseOptions()
	opts.Session = task.SessionCreate
	opts.SessionID = conflictID
	opts.RecordPath = filepath.Join(t.TempDir(), "task.json")

	out, err := o.Delegate(context.Background(), opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, task.ErrSessionConflict))

	var conflict *task.SessionConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, conflictID, conflict.SessionID)
	assert.Equal(t, conflictID, out.SessionID)

	// The generic failure was reclassified, but the record is still terminal.
	rec, readErr := task.Read(opts.RecordPath)
	require.NoError(t, readErr)
	assert.Equal(t, task.StatusError, rec.Status)
}

func TestDelegatePreSpawnErrorsLeaveNoRecord(t *testing.T) {
	recordPath := filepath.Join(t.TempDir(), "task.json")

	// Validation failure.
	o := NewWithBin(fakeAgent(t, echoArgs))
	opts := baseOptions()
	opts.Prompt = ""
	opts.RecordPath = recordPath
	_, err := o.Delegate(context.Background(), opts)
	require.Error(t, err)
	assert.True(t, task.IsValidation(err))
	assert.NoFileExists(t, recordPath)

	// Rule conflict.
	opts = baseOptions()
	opts.RecordPath = recordPath
	opts.AllowRules = []string{"Edit(src/**)"}
	opts.DenyRules = []string{"Edit(src/**)"}
	_, err = o.Delegate(context.Background(), opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, task.ErrRuleConflict))
	assert.NoFileExists(t, recordPath)

	// Malformed session identifier.
	opts = baseOptions()
	opts.RecordPath = recordPath
	opts.Session = task.SessionResume
	opts.SessionID = "not-a-uuid"
	_, err = o.Delegate(context.Background(), opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, task.ErrInvalidIdentifier))
	assert.NoFileExists(t, recordPath)

	// Missing executable.
	missing := NewWithBin("no-such-agent-on-path")
	opts = baseOptions()
	opts.RecordPath = recordPath
	_, err = missing.Delegate(context.Background(), opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, task.ErrToolNotFound))
	assert.NoFileExists(t, recordPath)
}

func TestDelegateSpawnFailureStillTerminatesRecord(t *testing.T) {
	// Resolvable but not runnable: exec fails after the running record
	// was already persisted.
	path := filepath.Join(t.TempDir(), "fake-agent")
	require.NoError(t, os.WriteFile(path, []byte("#!/no/such/interpreter\n"), 0o755))

	o := NewWithBin(path)
	opts := baseOptions()
	opts.RecordPath = filepath.Join(t.TempDir(), "task.json")

	_, err := o.Delegate(context.Background(), opts)
	require.Error(t, err)

	rec, readErr := task.Read(opts.RecordPath)
	require.NoError(t, readErr)
	assert.Equal(t, task.StatusError, rec.Status)
}

func TestDelegatePlanFilePrompt(t *testing.T) {
	plan := filepath.Join(t.TempDir(), "plan.md")
	require.NoError(t, os.WriteFile(plan, []byte("## Plan\n1. refactor\n"), 0o644))

	o := NewWithBin(fakeAgent(t, echoArgs))
	opts := baseOptions()
	opts.Prompt = ""
	opts.PlanFile = plan

	out, err := o.Delegate(context.Background(), opts)
	require.NoError(t, err)
	assert.Contains(t, out.Result.Stdout, "## Plan\n1. refactor\n")
}

func TestDelegatePlanFileMissing(t *testing.T) {
	o := NewWithBin(fakeAgent(t, echoArgs))
	opts := baseOptions()
	opts.Prompt = ""
	opts.PlanFile = filepath.Join(t.TempDir(), "nope.md")

	_, err := o.Delegate(context.Background(), opts)
	require.Error(t, err)
	assert.True(t, task.IsValidation(err))
}

func TestDelegateNetworkDeniesReachArgs(t *testing.T) {
	o := NewWithBin(fakeAgent(t, echoArgs))
	opts := baseOptions()
	opts.Permission = task.PermissionPlan

	out, err := o.Delegate(context.Background(), opts)
	require.NoError(t, err)

	lines := strings.Split(out.Result.Stdout, "\n")
	found := false
	for i, l := range lines {
		if l == "--disallowedTools" && i+1 < len(lines) {
			found = true
			assert.Equal(t, "WebFetch,WebSearch", lines[i+1])
		}
	}
	assert.True(t, found, "disallowed tools flag must be forwarded")
}

func TestDelegateMintedSessionForwarded(t *testing.T) {
	o := NewWithBin(fakeAgent(t, echoArgs))
	opts := baseOptions()
	opts.Session = task.SessionCreate
	opts.SessionID = conflictID
	opts.RecordPath = filepath.Join(t.TempDir(), "task.json")

	out, err := o.Delegate(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, conflictID, out.SessionID)

	rec, readErr := task.Read(opts.RecordPath)
	require.NoError(t, readErr)
	assert.Equal(t, conflictID, rec.SessionID)
	assert.Contains(t, out.Result.Stdout, "--session-id\n"+conflictID)
}
