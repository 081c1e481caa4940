package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"setupd/internal/common/fsutil"
)

// Start launches c as the installer child and returns the new job id.
//
// It fails with an already-running error while a run is active. If a cancelled
// child is still being torn down, Start waits for it (bounded by ctx) so that
// at most one child exists at any time.
func (i *Installer) Start(ctx context.Context, c Command) (string, error) {
	for {
		i.mu.Lock()
		prev := i.job
		if prev == nil {
			break
		}
		if i.state.status == StatusRunning {
			id := prev.id
			i.mu.Unlock()
			return "", alreadyRunningError{jobID: id}
		}
		i.mu.Unlock()
		select {
		case <-prev.done:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	// mu is held from here on until the child is running.

	jobID := uuid.NewString()
	i.classifier = NewClassifier()
	i.beginLocked(jobID, c.Models)
	if len(c.Models) > 0 {
		i.logLocked(LevelInfo, "Starting installation for models: "+strings.Join(c.Models, ", "))
	} else {
		i.logLocked(LevelInfo, "Starting installation")
	}
	i.setProgressLocked(5, true, "Loading sources...")

	cmd, out, err := i.launch(c)
	if err != nil {
		i.finishLocked(jobID, StatusError, err.Error())
		i.mu.Unlock()
		i.log.Error().Err(err).Str("job_id", jobID).Msg("installer launch failed")
		return "", err
	}

	jctx, cancel := context.WithCancel(context.Background())
	j := &job{
		id:      jobID,
		cmd:     cmd,
		ctx:     jctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
		secrets: c.Secrets,
		started: time.Now(),
	}
	i.job = j
	i.logLocked(LevelInfo, fmt.Sprintf("Running: %s (pid %d)", filepath.Base(c.Path), cmd.Process.Pid))
	i.setProgressLocked(10, true, "Starting download process...")
	i.mu.Unlock()

	i.log.Info().Str("job_id", jobID).Int("pid", cmd.Process.Pid).Strs("models", c.Models).Msg("installer started")
	go j.reap()
	go i.watch(j)
	go i.run(j, out)
	return jobID, nil
}

// launch spawns the child with stdout and stderr merged into one pipe. The
// caller owns the returned read end.
func (i *Installer) launch(c Command) (*exec.Cmd, *os.File, error) {
	if strings.TrimSpace(c.Path) == "" {
		return nil, nil, ErrLaunch("empty command", nil)
	}
	for _, p := range c.Require {
		if err := fsutil.RequireFile(p); err != nil {
			return nil, nil, ErrLaunch(err.Error(), nil)
		}
	}
	cmd := exec.Command(c.Path, c.Args...)
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}
	// inherit environment
	cmd.Env = os.Environ()
	for k, v := range c.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}
	setProcessGroup(cmd)
	// A plain os.Pipe instead of StdoutPipe: Wait never touches it, so the
	// child can be reaped while its output is still being read.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, nil, ErrLaunch("output pipe", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, nil, ErrLaunch(filepath.Base(c.Path), err)
	}
	// The child has its own copy of the write end.
	_ = pw.Close()
	return cmd, pr, nil
}

// reap waits for the child process itself, independent of its output.
func (j *job) reap() {
	j.waitErr = j.cmd.Wait()
	close(j.exited)
}

// run streams the child's output until EOF or cancellation, then records the
// exit. Output still held open by a descendant is cut off outputDrainDelay
// after the child exited.
func (i *Installer) run(j *job, out *os.File) {
	readDone := make(chan struct{})
	go func() {
		select {
		case <-readDone:
		case <-j.exited:
			select {
			case <-readDone:
			case <-time.After(outputDrainDelay):
				i.log.Warn().Str("job_id", j.id).Dur("delay", outputDrainDelay).Msg("installer exited but its output is still open; closing")
				_ = out.Close()
			}
		}
	}()

	sc := newLineScanner(out)
	for sc.Scan() {
		if j.ctx.Err() != nil {
			break
		}
		line := cleanLine(sc.Text(), j.secrets)
		if line == "" {
			continue
		}
		i.log.Debug().Str("job_id", j.id).Msg(line)
		i.mu.Lock()
		if i.job == j && i.state.status == StatusRunning {
			i.recordLineLocked(line)
		}
		i.mu.Unlock()
	}
	if err := sc.Err(); err != nil && j.ctx.Err() == nil && !errors.Is(err, os.ErrClosed) {
		i.log.Warn().Err(err).Str("job_id", j.id).Msg("installer output unreadable; discarding rest")
		// Keep the child from blocking on a full pipe.
		_, _ = io.Copy(io.Discard, out)
	}
	close(readDone)
	_ = out.Close()

	<-j.exited
	waitErr := j.waitErr

	i.mu.Lock()
	switch {
	case waitErr == nil:
		i.finishLocked(j.id, StatusCompleted, "")
	default:
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			i.finishLocked(j.id, StatusError, ChildProcessFailure{Code: exitErr.ExitCode()}.Error())
		} else {
			i.finishLocked(j.id, StatusError, "wait for installer: "+waitErr.Error())
		}
	}
	final := i.state.status
	if i.job == j {
		i.job = nil
	}
	i.mu.Unlock()

	close(j.done)
	j.cancel()
	i.log.Info().Str("job_id", j.id).Str("status", string(final)).Dur("dur", time.Since(j.started)).Msg("installer exited")
}

// recordLineLocked stores one cleaned output line and applies its heuristics.
func (i *Installer) recordLineLocked(line string) {
	i.logLocked(LevelInfo, line)
	if u, ok := i.classifier.Classify(line); ok {
		i.setProgressLocked(u.Progress, u.HasProgress, u.Task)
	}
}

// watch terminates the child once the job is cancelled: SIGTERM to the whole
// process group first, SIGKILL after StopTimeout.
func (i *Installer) watch(j *job) {
	<-j.ctx.Done()
	select {
	case <-j.done:
		return
	default:
	}
	pid := j.cmd.Process.Pid
	if err := terminate(j.cmd.Process); err != nil {
		i.log.Debug().Err(err).Int("pid", pid).Msg("terminate installer")
	}
	select {
	case <-j.done:
	case <-time.After(i.cfg.StopTimeout):
		i.log.Warn().Int("pid", pid).Dur("timeout", i.cfg.StopTimeout).Msg("installer ignored SIGTERM; killing")
		if err := kill(j.cmd.Process); err != nil {
			i.log.Debug().Err(err).Int("pid", pid).Msg("kill installer")
		}
	}
}

// Stop cancels the running job. The state becomes cancelled immediately; the
// child is terminated in the background and reaped before a new Start runs.
func (i *Installer) Stop() error {
	i.mu.Lock()
	j := i.job
	if j == nil || i.state.status != StatusRunning {
		st := i.state.status
		i.mu.Unlock()
		return notRunningError{status: st}
	}
	i.finishLocked(j.id, StatusCancelled, "")
	i.mu.Unlock()

	j.cancel()
	i.log.Info().Str("job_id", j.id).Msg("installer cancellation requested")
	return nil
}

// Wait blocks until the current child (if any) has been reaped.
func (i *Installer) Wait(ctx context.Context) error {
	i.mu.Lock()
	j := i.job
	i.mu.Unlock()
	if j == nil {
		return nil
	}
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels a running job, waits for the child and ends all subscriptions.
func (i *Installer) Shutdown(ctx context.Context) error {
	if err := i.Stop(); err != nil && !IsNotRunning(err) {
		return err
	}
	err := i.Wait(ctx)
	i.bus.CloseAll()
	return err
}
