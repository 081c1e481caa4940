package installer

import (
	"context"
	"os/exec"
	"time"
)

// Status is the lifecycle state of the installation.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s ends a run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// Command describes the child process to launch.
type Command struct {
	Path string
	Args []string
	Env  map[string]string // additional env vars
	Dir  string            // working directory
	// Require lists files that must exist before launching.
	Require []string
	// Secrets are redacted from every output line before it is recorded.
	Secrets []string
	// Models is informational and copied into the state.
	Models []string
}

// job is the exclusive handle on one child process.
type job struct {
	id      string
	cmd     *exec.Cmd
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{} // closed once the child is reaped and the loop returned
	exited  chan struct{} // closed by reap; waitErr is valid afterwards
	waitErr error
	secrets []string
	started time.Time
}
