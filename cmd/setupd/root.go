package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"setupd/internal/config"
)

func newRootCmd() *cobra.Command {
	var (
		configPath string
		flags      config.Config
	)
	root := &cobra.Command{
		Use:   "setupd",
		Short: "Install models and custom nodes for a ComfyUI workspace over HTTP",
		Long: `setupd runs the installer script for the requested model categories,
turns its output into progress and streams it to any number of clients.

Configuration precedence: defaults < config file < SETUPD_* environment < flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, flags, os.LookupEnv)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg, os.Stderr)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, log)
		},
	}

	f := root.Flags()
	f.StringVarP(&configPath, "config", "c", "", "Config file (.yaml, .json or .toml); defaults to $SETUPD_CONFIG")
	f.StringVar(&flags.Addr, "addr", "", "HTTP listen address (default :5111)")
	f.StringVar(&flags.SetupDir, "setup-dir", "", "Directory holding the installer script and sources file (default working directory)")
	f.StringVar(&flags.ComfyDir, "comfy-dir", "", "ComfyUI directory reported by /status (default /workspace/ComfyUI)")
	f.StringVar(&flags.SourcesFile, "sources-file", "", "Manifest file (default <setup-dir>/sources2.json)")
	f.StringVar(&flags.InstallerBin, "installer-bin", "", "Interpreter or executable to launch (default python3)")
	f.StringVar(&flags.InstallerScript, "installer-script", "", "Installer script relative to setup-dir (default setup_remote.py)")
	f.StringSliceVar(&flags.InstallerArgs, "installer-arg", nil, "Extra installer argument, repeatable")
	f.StringVar(&flags.GitBin, "git-bin", "", "git executable used by /pull (default git)")
	f.IntVar(&flags.PullTimeoutSeconds, "pull-timeout", 0, "Seconds before /pull gives up (default 60)")
	f.IntVar(&flags.LogCapacity, "log-capacity", 0, "Log entries kept in memory (default 1000)")
	f.IntVar(&flags.LogTail, "log-tail", 0, "Entries /logs returns without ?limit (default 100)")
	f.IntVar(&flags.SubscriberBuffer, "subscriber-buffer", 0, "Queued events per /progress client before dropping (default 100)")
	f.IntVar(&flags.KeepaliveSeconds, "keepalive", 0, "Seconds between SSE keepalive comments (default 30)")
	f.IntVar(&flags.StopTimeoutSeconds, "stop-timeout", 0, "Seconds between SIGTERM and SIGKILL on stop (default 5)")
	f.Int64Var(&flags.MaxBodyBytes, "max-body-bytes", 0, "Maximum JSON request body (default 1MiB)")
	f.StringSliceVar(&flags.CORSOrigins, "cors-origin", nil, "Allowed CORS origin, repeatable (default *)")
	f.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug|info|warn|error (default info)")
	f.StringVar(&flags.LogFormat, "log-format", "", "Log format: json|text (default json)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "setupd", version)
		},
	})
	return root
}

// loadConfig applies defaults, the config file, the environment and flags in
// that order.
func loadConfig(path string, flags config.Config, lookup func(string) (string, bool)) (config.Config, error) {
	cfg := config.Defaults()
	if path == "" {
		path, _ = lookup(config.EnvPrefix + "CONFIG")
	}
	if path != "" {
		file, err := config.Load(path)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = cfg.Merge(file)
	}
	env, err := config.FromEnv(lookup)
	if err != nil {
		return cfg, err
	}
	return cfg.Merge(env).Merge(flags).Resolve()
}

// newLogger builds the process logger: JSON by default, human-readable console
// output for log_format=text.
func newLogger(cfg config.Config, w io.Writer) (zerolog.Logger, error) {
	lvl := strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if lvl == "warning" {
		lvl = "warn"
	}
	level, err := zerolog.ParseLevel(lvl)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	out := w
	if strings.EqualFold(cfg.LogFormat, "text") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}
