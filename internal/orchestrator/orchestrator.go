// Package orchestrator drives one task delegation end to end: validate
// options, compose permissions, resolve the session directive, translate
// arguments, run the agent process, and surface the result through the
// console or the task record file.
package orchestrator

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/joss/handoff/internal/agent"
	"github.com/joss/handoff/internal/config"
	"github.com/joss/handoff/internal/logging"
	"github.com/joss/handoff/internal/permission"
	"github.com/joss/handoff/internal/session"
	"github.com/joss/handoff/internal/task"
)

// Orchestrator runs one delegation per call. It holds no per-task state;
// concurrent calls against distinct record paths are independent.
type Orchestrator struct {
	bin string
	log *logging.Logger
}

// New creates an orchestrator bound to the configured agent executable.
func New() *Orchestrator {
	return &Orchestrator{
		bin: config.Env().AgentBin,
		log: logging.New("orchestrator"),
	}
}

// NewWithBin creates an orchestrator for a specific executable (tests,
// alternate agent builds).
func NewWithBin(bin string) *Orchestrator {
	return &Orchestrator{bin: bin, log: logging.New("orchestrator")}
}

// Outcome is what a delegation produced. Result is nil when the failure
// happened before any spawn. RecordPath is set in file-sink mode.
type Outcome struct {
	Result     *agent.Result
	RecordPath string
	SessionID  string
}

// Delegate runs one task against the agent process and blocks until it
// finishes, times out, or fails to start.
//
// Pre-spawn errors (validation, rule conflicts, identifier problems, a
// missing executable) return directly and never produce a task record.
// In file-sink mode the running record is fully persisted before the
// spawn, and the terminal state is recorded exactly once afterwards.
func (o *Orchestrator) Delegate(ctx context.Context, opts *task.Options) (*Outcome, error) {
	start := time.Now()

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	rules, err := permission.Compose(opts.Permission, opts.AllowRules, opts.DenyRules, opts.FullTrust)
	if err != nil {
		return nil, err
	}

	dir, err := session.Resolve(opts.Session, opts.SessionID)
	if err != nil {
		return nil, err
	}

	prompt := opts.Prompt
	if opts.PlanFile != "" {
		data, err := os.ReadFile(opts.PlanFile)
		if err != nil {
			return nil, task.NewValidationError("plan-file", "cannot read plan file: "+opts.PlanFile)
		}
		prompt = string(data)
	}

	ctrl := agent.NewController(o.bin, opts.Timeout)
	ctrl.Dir = opts.WorkDir
	if _, err := ctrl.Resolve(); err != nil {
		return nil, err
	}

	args := agent.BuildArgs(opts, dir, rules, prompt)
	outcome := &Outcome{RecordPath: opts.RecordPath, SessionID: dir.ID}

	var rec *task.Manager
	if opts.RecordPath != "" {
		rec = task.NewManager(opts.RecordPath, dir.ID)
		// The running record carries this process's pid; it must be on
		// disk before the spawn so a poller never sees a missing file.
		if err := rec.Start(os.Getpid()); err != nil {
			return nil, err
		}
	}

	result, runErr := ctrl.Run(ctx, args)
	outcome.Result = result

	if result != nil {
		if conflict := session.Conflict(dir, result.ExitCode, result.Stderr); conflict != nil {
			runErr = conflict
		}
	}

	if rec != nil {
		if result != nil {
			o.publish(rec, result, runErr)
		} else if runErr != nil {
			// Spawn failed after the running record was persisted; the
			// record still has to reach a terminal state.
			if err := rec.Fail(runErr.Error(), task.ExitCode(runErr)); err != nil {
				o.log.Error("publish", map[string]interface{}{"path": rec.Path()}, err)
			}
		}
	}

	o.log.TimedEvent("delegate", start, map[string]interface{}{
		"sink":    sinkName(opts.RecordPath),
		"session": dir.ID,
	})
	return outcome, runErr
}

// publish writes the terminal record state for a finished invocation.
func (o *Orchestrator) publish(rec *task.Manager, result *agent.Result, runErr error) {
	var err error
	switch {
	case runErr == nil:
		err = rec.Complete(result.Stdout, result.ExitCode)
	case errors.Is(runErr, task.ErrTimeout):
		err = rec.Timeout(runErr.Error())
	default:
		detail := result.Stderr
		if detail == "" {
			detail = runErr.Error()
		}
		err = rec.Fail(detail, result.ExitCode)
	}
	if err != nil {
		o.log.Error("publish", map[string]interface{}{"path": rec.Path()}, err)
	}
}

func sinkName(recordPath string) string {
	if recordPath == "" {
		return "console"
	}
	return "file"
}
