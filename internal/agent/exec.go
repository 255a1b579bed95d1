package agent

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/joss/handoff/internal/logging"
	handoffstrings "github.com/joss/handoff/internal/strings"
	"github.com/joss/handoff/internal/task"
)

// State tracks the controller's lifecycle for one invocation.
type State string

const (
	StateIdle      State = "idle"
	StateSpawned   State = "spawned"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed_out"
)

// Result captures the terminal outcome of one agent invocation.
type Result struct {
	State       State
	PID         int
	ExitCode    int
	Stdout      string
	Stderr      string
	StartedAt   time.Time
	CompletedAt time.Time
}

// DefaultGrace is the interval between the termination signal and the
// forced kill on timeout.
const DefaultGrace = 5 * time.Second

// Controller spawns the agent process, captures its output streams, and
// enforces the timeout. One controller drives exactly one child process.
type Controller struct {
	// Bin is the agent executable name or path.
	Bin string

	// Timeout bounds the invocation. Expiry terminates the whole process
	// group, waits Grace, then force-kills.
	Timeout time.Duration
	Grace   time.Duration

	// Dir is the child's working directory. Empty means inherit.
	Dir string

	// Env overrides the child environment (nil = inherit).
	Env []string

	log      *logging.Logger
	lookPath func(string) (string, error)
}

// NewController creates a controller for the given executable and timeout.
func NewController(bin string, timeout time.Duration) *Controller {
	return &Controller{
		Bin:      bin,
		Timeout:  timeout,
		Grace:    DefaultGrace,
		log:      logging.New("agent"),
		lookPath: exec.LookPath,
	}
}

// Resolve checks that the agent executable exists on the resolvable path.
// Called before any spawn attempt; a missing executable is a distinct
// pre-spawn condition, never a runtime failure.
func (c *Controller) Resolve() (string, error) {
	path, err := c.lookPath(c.Bin)
	if err != nil {
		return "", &task.ToolNotFoundError{Name: c.Bin}
	}
	return path, nil
}

// Run spawns the agent with the given arguments and blocks until it
// exits, the timeout fires, or the context is canceled (treated the same
// as timeout expiry: the process group is terminated, never left partial).
//
// The returned Result is non-nil whenever a process was spawned; the
// error describes the failure class for the caller.
func (c *Controller) Run(ctx context.Context, args []string) (*Result, error) {
	path, err := c.Resolve()
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(path, args...)
	cmd.Dir = c.Dir
	if c.Env != nil {
		cmd.Env = c.Env
	}

	// Output is streamed into growing buffers as the child writes, so a
	// chatty agent never blocks on a full pipe.
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Own process group, so timeout termination reaches descendants.
	setProcGroup(cmd)

	start := time.Now().UTC()
	if err := cmd.Start(); err != nil {
		return nil, &task.ProcessFailure{ExitCode: -1, Stderr: err.Error()}
	}

	res := &Result{
		State:     StateSpawned,
		PID:       cmd.Process.Pid,
		StartedAt: start,
	}
	c.log.Info("spawn", map[string]interface{}{"pid": res.PID, "bin": c.Bin})

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timeout := time.NewTimer(c.Timeout)
	defer timeout.Stop()

	var waitErr error
	timedOut := false

	select {
	case waitErr = <-done:
	case <-timeout.C:
		timedOut = true
		waitErr = c.terminateTree(res.PID, done)
	case <-ctx.Done():
		timedOut = true
		waitErr = c.terminateTree(res.PID, done)
	}

	res.CompletedAt = time.Now().UTC()
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()

	if timedOut {
		res.State = StateTimedOut
		res.ExitCode = task.ExitTimeout
		c.log.Warn("timeout", map[string]interface{}{"pid": res.PID, "limit": c.Timeout.String()}, nil)
		return res, &task.TimeoutExceeded{Limit: c.Timeout}
	}

	if waitErr == nil {
		res.State = StateCompleted
		res.ExitCode = 0
		c.log.TimedEvent("exit", start, map[string]interface{}{"pid": res.PID, "exit_code": 0})
		return res, nil
	}

	res.State = StateFailed
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		res.ExitCode = exitErr.ExitCode()
	} else {
		res.ExitCode = 1
	}
	c.log.TimedEvent("exit", start, map[string]interface{}{"pid": res.PID, "exit_code": res.ExitCode})
	return res, &task.ProcessFailure{
		ExitCode: res.ExitCode,
		Stderr:   handoffstrings.Truncate(handoffstrings.FirstLine(res.Stderr), 200),
	}
}

// terminateTree signals the process group, waits the grace interval, and
// force-kills if the child is still alive. Always drains the wait result
// so the child is fully reaped.
func (c *Controller) terminateTree(pid int, done <-chan error) error {
	_ = terminate(pid)

	grace := c.Grace
	if grace <= 0 {
		grace = DefaultGrace
	}

	select {
	case err := <-done:
		return err
	case <-time.After(grace):
		_ = kill(pid)
		return <-done
	}
}
