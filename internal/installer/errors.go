package installer

import (
	"errors"
	"fmt"
	"net/http"
)

// alreadyRunningError is returned by Start while a run is active.
type alreadyRunningError struct{ jobID string }

func (e alreadyRunningError) Error() string {
	return "installation already running: " + e.jobID
}

func (e alreadyRunningError) StatusCode() int { return http.StatusConflict }

// IsAlreadyRunning reports whether err indicates a start/start conflict.
func IsAlreadyRunning(err error) bool {
	var e alreadyRunningError
	return errors.As(err, &e)
}

// notRunningError is returned by Stop when nothing is running.
type notRunningError struct{ status Status }

func (e notRunningError) Error() string {
	return fmt.Sprintf("no installation running (status %s)", e.status)
}

func (e notRunningError) StatusCode() int { return http.StatusBadRequest }

// IsNotRunning reports whether err indicates a stop without a running job.
func IsNotRunning(err error) bool {
	var e notRunningError
	return errors.As(err, &e)
}

// ChildProcessFailure describes a non-zero exit of the installer.
// The message never contains arguments or environment of the child.
type ChildProcessFailure struct{ Code int }

func (e ChildProcessFailure) Error() string {
	return fmt.Sprintf("process exited with code %d", e.Code)
}

// IsChildProcessFailure reports whether err is a non-zero child exit.
func IsChildProcessFailure(err error) bool {
	var e ChildProcessFailure
	return errors.As(err, &e)
}

// launchError signals that the child could not be spawned at all.
type launchError struct {
	msg string
	err error
}

func (e launchError) Error() string {
	if e.err == nil {
		return "launch installer: " + e.msg
	}
	return "launch installer: " + e.msg + ": " + e.err.Error()
}

func (e launchError) Unwrap() error { return e.err }

func (e launchError) StatusCode() int { return http.StatusInternalServerError }

// ErrLaunch constructs a launch failure.
func ErrLaunch(msg string, err error) error { return launchError{msg: msg, err: err} }

// IsLaunchFailure reports whether err indicates the child could not be spawned.
func IsLaunchFailure(err error) bool {
	var e launchError
	return errors.As(err, &e)
}

// malformedRequestError signals an unusable install request.
type malformedRequestError struct{ msg string }

func (e malformedRequestError) Error() string { return e.msg }

func (e malformedRequestError) StatusCode() int { return http.StatusBadRequest }

// ErrMalformedRequest constructs a malformed request error.
func ErrMalformedRequest(msg string) error { return malformedRequestError{msg: msg} }

// IsMalformedRequest reports whether err indicates a bad request.
func IsMalformedRequest(err error) bool {
	var e malformedRequestError
	return errors.As(err, &e)
}
