package installer

import (
	"time"

	"github.com/rs/zerolog"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultLogCapacity      = 1000
	defaultSubscriberBuffer = 100
	defaultStopTimeout      = 5 * time.Second
	defaultInstallerBin     = "python3"
)

// outputDrainDelay bounds how long output is still read after the child
// exited. Descendants that keep the pipe open are cut off after it.
var outputDrainDelay = 2 * time.Second

// Config encapsulates all tunables for Installer construction.
type Config struct {
	// SetupDir is the working directory of the child process.
	SetupDir string
	// InstallerBin is the interpreter or executable that is launched.
	InstallerBin string
	// InstallerScript is resolved relative to SetupDir and passed as first
	// argument. Empty disables the script argument (InstallerBin is the installer).
	InstallerScript string
	// InstallerArgs are appended after the script and before --models.
	InstallerArgs []string
	// LogCapacity bounds the log sink.
	LogCapacity int
	// SubscriberBuffer bounds each subscriber channel.
	SubscriberBuffer int
	// StopTimeout is how long a child gets after SIGTERM before SIGKILL.
	StopTimeout time.Duration
	// Logger receives lifecycle logs and, at debug level, child output.
	Logger *zerolog.Logger
}

// New constructs an Installer from Config.
func New(cfg Config) *Installer {
	if cfg.LogCapacity <= 0 {
		cfg.LogCapacity = defaultLogCapacity
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = defaultSubscriberBuffer
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = defaultStopTimeout
	}
	if cfg.InstallerBin == "" {
		cfg.InstallerBin = defaultInstallerBin
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("component", "installer").Logger()
	}
	return &Installer{
		cfg:       cfg,
		log:       log,
		state:     idleState(),
		sink:      NewLogSink(cfg.LogCapacity),
		bus:       NewBus(cfg.SubscriberBuffer),
		publisher: noopPublisher{},
	}
}
