package task

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/joss/handoff/internal/logging"
)

// Status is the lifecycle state recorded in a task file.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusTimeout   Status = "timeout"
)

// Terminal reports whether the status is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusTimeout
}

// Record is the JSON snapshot persisted for one asynchronous invocation.
// Every write is a complete snapshot; readers never see a partial file.
type Record struct {
	TaskID      string `json:"task_id"`
	Status      Status `json:"status"`
	PID         int    `json:"pid,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	StartedAt   string `json:"started_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
	Output      string `json:"output,omitempty"`
	Error       string `json:"error,omitempty"`
	ExitCode    *int   `json:"exit_code,omitempty"`
}

// Manager owns the task record file for a single invocation. It writes the
// running record at spawn time and exactly one terminal update afterwards.
// It never deletes the record and never implements polling itself; the
// atomic write protocol is what makes external polling safe.
type Manager struct {
	path      string
	taskID    string
	sessionID string
	startedAt time.Time
	terminal  bool
	log       *logging.Logger
}

// NewManager creates a record manager for a target path. The session
// identifier may be empty when no session is involved.
func NewManager(path, sessionID string) *Manager {
	return &Manager{
		path:      path,
		taskID:    ulid.Make().String(),
		sessionID: sessionID,
		log:       logging.New("record"),
	}
}

// Path returns the canonical record path.
func (m *Manager) Path() string { return m.path }

// TaskID returns the identifier stamped into every snapshot.
func (m *Manager) TaskID() string { return m.taskID }

// Start persists the running record. It must complete before the child
// process is spawned so a poller never observes a missing file.
func (m *Manager) Start(pid int) error {
	m.startedAt = time.Now().UTC()
	rec := &Record{
		TaskID:    m.taskID,
		Status:    StatusRunning,
		PID:       pid,
		SessionID: m.sessionID,
		StartedAt: m.startedAt.Format(time.RFC3339),
	}
	if err := writeAtomic(m.path, rec); err != nil {
		return err
	}
	m.log.Info("start", map[string]interface{}{"path": m.path, "task_id": m.taskID})
	return nil
}

// Complete records a successful terminal state with the agent's output.
func (m *Manager) Complete(output string, exitCode int) error {
	return m.finish(&Record{
		Status:   StatusCompleted,
		Output:   output,
		ExitCode: &exitCode,
	})
}

// Fail records an error terminal state.
func (m *Manager) Fail(errMsg string, exitCode int) error {
	return m.finish(&Record{
		Status:   StatusError,
		Error:    errMsg,
		ExitCode: &exitCode,
	})
}

// Timeout records a timeout terminal state with the reserved exit code.
func (m *Manager) Timeout(errMsg string) error {
	code := ExitTimeout
	return m.finish(&Record{
		Status:   StatusTimeout,
		Error:    errMsg,
		ExitCode: &code,
	})
}

func (m *Manager) finish(rec *Record) error {
	if m.terminal {
		return fmt.Errorf("task record %s already finalized", m.path)
	}
	rec.TaskID = m.taskID
	rec.SessionID = m.sessionID
	if !m.startedAt.IsZero() {
		rec.StartedAt = m.startedAt.Format(time.RFC3339)
	}
	rec.CompletedAt = time.Now().UTC().Format(time.RFC3339)
	if err := writeAtomic(m.path, rec); err != nil {
		return err
	}
	m.terminal = true
	m.log.Info("finish", map[string]interface{}{"path": m.path, "status": string(rec.Status)})
	return nil
}

// Read loads a record from disk, for status and watch commands.
func Read(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse task record %s: %w", path, err)
	}
	return &rec, nil
}

// writeAtomic writes a record snapshot via a temp file in the same
// directory followed by a rename. A concurrent reader sees either the
// previous complete snapshot or the new one, never a partial file.
func writeAtomic(path string, rec *Record) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(abs), ".task-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	data = append(data, '\n')

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	if err := os.Rename(tmp.Name(), abs); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("publish task record: %w", err)
	}
	return nil
}
