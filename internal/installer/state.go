package installer

import (
	"time"

	"setupd/pkg/types"
)

const taskComplete = "Installation complete!"

type stateRecord struct {
	status      Status
	progress    int
	task        string
	startedAt   *time.Time
	completedAt *time.Time
	err         string
	jobID       string
	models      []string
}

func idleState() stateRecord { return stateRecord{status: StatusIdle} }

func (r stateRecord) snapshot() types.InstallationState {
	st := types.InstallationState{
		Status:      string(r.status),
		Progress:    r.progress,
		CurrentTask: r.task,
		Error:       r.err,
		JobID:       r.jobID,
	}
	if r.startedAt != nil {
		t := *r.startedAt
		st.StartedAt = &t
	}
	if r.completedAt != nil {
		t := *r.completedAt
		st.CompletedAt = &t
	}
	if len(r.models) > 0 {
		st.Models = append([]string(nil), r.models...)
	}
	return st
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// emitLocked publishes e to the bus and the optional publisher.
func (i *Installer) emitLocked(e types.Event) {
	i.bus.Publish(e)
	i.publisher.Publish(e)
}

// logLocked records an orchestrator message and relays it as a log event.
func (i *Installer) logLocked(level, msg string) {
	e := i.sink.Append(level, msg)
	i.emitLocked(types.LogEvent(e))
}

// beginLocked enters running from any non-running state, clearing the
// previous run's outcome.
func (i *Installer) beginLocked(jobID string, models []string) {
	now := time.Now().UTC()
	i.state = stateRecord{
		status:    StatusRunning,
		startedAt: &now,
		jobID:     jobID,
		models:    append([]string(nil), models...),
	}
	progressGauge.Set(0)
	i.emitLocked(types.StatusEvent(string(StatusRunning), ""))
}

// setProgressLocked applies a progress/task update while running. Progress is
// clamped and never decreases within a run. An empty task keeps the current one.
func (i *Installer) setProgressLocked(p int, hasProgress bool, task string) {
	if i.state.status != StatusRunning {
		return
	}
	next := i.state.progress
	if hasProgress {
		if p = clampProgress(p); p > next {
			next = p
		}
	}
	nextTask := i.state.task
	if task != "" {
		nextTask = task
	}
	if next == i.state.progress && nextTask == i.state.task {
		return
	}
	i.state.progress = next
	i.state.task = nextTask
	progressGauge.Set(float64(next))
	i.emitLocked(types.ProgressEvent(next, nextTask))
}

// finishLocked moves the run identified by jobID to a terminal status. It
// reports false, and does nothing, when that run is no longer running, so
// exit and cancellation racing each other produce exactly one terminal event.
func (i *Installer) finishLocked(jobID string, to Status, errMsg string) bool {
	if i.state.status != StatusRunning || i.state.jobID != jobID || !to.Terminal() {
		return false
	}
	switch to {
	case StatusCompleted:
		now := time.Now().UTC()
		i.state.progress = 100
		i.state.task = taskComplete
		i.state.completedAt = &now
		progressGauge.Set(100)
		i.emitLocked(types.ProgressEvent(100, taskComplete))
		i.logLocked(LevelInfo, "Installation completed successfully!")
	case StatusError:
		i.state.err = errMsg
		i.logLocked(LevelError, "Installation failed: "+errMsg)
	case StatusCancelled:
		i.logLocked(LevelWarning, "Installation cancelled by user")
	}
	i.state.status = to
	runsTotal.WithLabelValues(string(to)).Inc()
	i.emitLocked(types.StatusEvent(string(to), i.state.err))
	return true
}
