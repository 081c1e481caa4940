// Package installer supervises a single long-running installation child process
// and turns its output into structured state and events. It is structured into
// small files by concern:
//
//   - installer.go: Installer service type, constructor, read-side accessors.
//   - config.go: Config and package defaults; New applies defaults.
//   - types.go: Status, Command and the private job record.
//   - errors.go: error types and helpers (IsAlreadyRunning, IsNotRunning, ...).
//   - state.go: installation state transitions (all called with mu held).
//   - supervisor.go: Start/Stop/Wait and the per-job read loop.
//   - proc_unix.go, proc_other.go: process-group setup and signalling.
//   - classifier.go: best-effort progress heuristics over cleaned output lines.
//   - scan.go: line splitting and cleaning of raw child output.
//   - logsink.go: bounded FIFO buffer of log entries.
//   - eventbus.go: fan-out of events to bounded per-subscriber channels.
//   - events.go, eventpub_memory.go: optional synchronous EventPublisher hook.
//   - command.go: builds the installer command line from an install request.
//   - metrics.go: Prometheus collectors.
//
// Progress is advisory only. A run is completed exclusively by a zero exit code
// of the child process; text heuristics never finish a run.
package installer
