package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"setupd/internal/common/fsutil"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by Defaults in Merge.
type Config struct {
	Addr               string   `json:"addr" yaml:"addr" toml:"addr"`
	SetupDir           string   `json:"setup_dir" yaml:"setup_dir" toml:"setup_dir"`
	ComfyDir           string   `json:"comfy_dir" yaml:"comfy_dir" toml:"comfy_dir"`
	SourcesFile        string   `json:"sources_file" yaml:"sources_file" toml:"sources_file"`
	InstallerBin       string   `json:"installer_bin" yaml:"installer_bin" toml:"installer_bin"`
	InstallerScript    string   `json:"installer_script" yaml:"installer_script" toml:"installer_script"`
	InstallerArgs      []string `json:"installer_args" yaml:"installer_args" toml:"installer_args"`
	GitBin             string   `json:"git_bin" yaml:"git_bin" toml:"git_bin"`
	PullTimeoutSeconds int      `json:"pull_timeout_seconds" yaml:"pull_timeout_seconds" toml:"pull_timeout_seconds"`
	LogCapacity        int      `json:"log_capacity" yaml:"log_capacity" toml:"log_capacity"`
	LogTail            int      `json:"log_tail" yaml:"log_tail" toml:"log_tail"`
	SubscriberBuffer   int      `json:"subscriber_buffer" yaml:"subscriber_buffer" toml:"subscriber_buffer"`
	KeepaliveSeconds   int      `json:"keepalive_seconds" yaml:"keepalive_seconds" toml:"keepalive_seconds"`
	StopTimeoutSeconds int      `json:"stop_timeout_seconds" yaml:"stop_timeout_seconds" toml:"stop_timeout_seconds"`
	MaxBodyBytes       int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORSOrigins        []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	LogLevel           string   `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat          string   `json:"log_format" yaml:"log_format" toml:"log_format"`
}

// Defaults returns the built-in configuration. SetupDir defaults to the
// working directory.
func Defaults() Config {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return Config{
		Addr:               ":5111",
		SetupDir:           wd,
		ComfyDir:           "/workspace/ComfyUI",
		InstallerBin:       "python3",
		InstallerScript:    "setup_remote.py",
		GitBin:             "git",
		PullTimeoutSeconds: 60,
		LogCapacity:        1000,
		LogTail:            100,
		SubscriberBuffer:   100,
		KeepaliveSeconds:   30,
		StopTimeoutSeconds: 5,
		MaxBodyBytes:       1 << 20,
		CORSOrigins:        []string{"*"},
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	path, err := fsutil.ExpandHome(path)
	if err != nil {
		return cfg, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// Merge overlays the non-zero fields of o onto c.
func (c Config) Merge(o Config) Config {
	setStr := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setInt := func(dst *int, v int) {
		if v != 0 {
			*dst = v
		}
	}
	setStr(&c.Addr, o.Addr)
	setStr(&c.SetupDir, o.SetupDir)
	setStr(&c.ComfyDir, o.ComfyDir)
	setStr(&c.SourcesFile, o.SourcesFile)
	setStr(&c.InstallerBin, o.InstallerBin)
	setStr(&c.InstallerScript, o.InstallerScript)
	setStr(&c.GitBin, o.GitBin)
	setStr(&c.LogLevel, o.LogLevel)
	setStr(&c.LogFormat, o.LogFormat)
	setInt(&c.PullTimeoutSeconds, o.PullTimeoutSeconds)
	setInt(&c.LogCapacity, o.LogCapacity)
	setInt(&c.LogTail, o.LogTail)
	setInt(&c.SubscriberBuffer, o.SubscriberBuffer)
	setInt(&c.KeepaliveSeconds, o.KeepaliveSeconds)
	setInt(&c.StopTimeoutSeconds, o.StopTimeoutSeconds)
	if o.MaxBodyBytes != 0 {
		c.MaxBodyBytes = o.MaxBodyBytes
	}
	if len(o.InstallerArgs) > 0 {
		c.InstallerArgs = append([]string(nil), o.InstallerArgs...)
	}
	if len(o.CORSOrigins) > 0 {
		c.CORSOrigins = append([]string(nil), o.CORSOrigins...)
	}
	return c
}

// EnvPrefix prefixes every environment override, e.g. SETUPD_ADDR.
const EnvPrefix = "SETUPD_"

// FromEnv reads overrides from the environment through lookup (os.LookupEnv
// in production). List values are comma separated.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	var c Config
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	list := func(name string, dst *[]string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = SplitList(v)
		}
	}
	var firstErr error
	num := func(name string, dst *int) {
		v, ok := lookup(EnvPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			return
		}
		*dst = n
	}

	str("ADDR", &c.Addr)
	str("SETUP_DIR", &c.SetupDir)
	str("COMFY_DIR", &c.ComfyDir)
	str("SOURCES_FILE", &c.SourcesFile)
	str("INSTALLER_BIN", &c.InstallerBin)
	str("INSTALLER_SCRIPT", &c.InstallerScript)
	list("INSTALLER_ARGS", &c.InstallerArgs)
	str("GIT_BIN", &c.GitBin)
	num("PULL_TIMEOUT_SECONDS", &c.PullTimeoutSeconds)
	num("LOG_CAPACITY", &c.LogCapacity)
	num("LOG_TAIL", &c.LogTail)
	num("SUBSCRIBER_BUFFER", &c.SubscriberBuffer)
	num("KEEPALIVE_SECONDS", &c.KeepaliveSeconds)
	num("STOP_TIMEOUT_SECONDS", &c.StopTimeoutSeconds)
	var maxBody int
	num("MAX_BODY_BYTES", &maxBody)
	c.MaxBodyBytes = int64(maxBody)
	list("CORS_ORIGINS", &c.CORSOrigins)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	return c, firstErr
}

// SplitList splits a comma separated value, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Resolve expands '~' in paths, derives SourcesFile from SetupDir and
// validates the result.
func (c Config) Resolve() (Config, error) {
	var err error
	for _, p := range []*string{&c.SetupDir, &c.ComfyDir, &c.SourcesFile} {
		if *p, err = fsutil.ExpandHome(*p); err != nil {
			return c, err
		}
	}
	if c.SetupDir != "" {
		if abs, err := filepath.Abs(c.SetupDir); err == nil {
			c.SetupDir = abs
		}
	}
	if c.SourcesFile == "" {
		c.SourcesFile = filepath.Join(c.SetupDir, "sources2.json")
	} else if !filepath.IsAbs(c.SourcesFile) {
		c.SourcesFile = filepath.Join(c.SetupDir, c.SourcesFile)
	}
	if c.Addr == "" {
		return c, fmt.Errorf("addr must not be empty")
	}
	for name, v := range map[string]int{
		"log_capacity":         c.LogCapacity,
		"log_tail":             c.LogTail,
		"subscriber_buffer":    c.SubscriberBuffer,
		"keepalive_seconds":    c.KeepaliveSeconds,
		"stop_timeout_seconds": c.StopTimeoutSeconds,
		"pull_timeout_seconds": c.PullTimeoutSeconds,
	} {
		if v < 0 {
			return c, fmt.Errorf("%s must not be negative", name)
		}
	}
	if c.LogTail > c.LogCapacity && c.LogCapacity > 0 {
		c.LogTail = c.LogCapacity
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "json", "text":
	default:
		return c, fmt.Errorf("unsupported log_format: %s", c.LogFormat)
	}
	return c, nil
}

// KeepaliveInterval is KeepaliveSeconds as a duration.
func (c Config) KeepaliveInterval() time.Duration {
	return time.Duration(c.KeepaliveSeconds) * time.Second
}

// StopTimeout is StopTimeoutSeconds as a duration.
func (c Config) StopTimeout() time.Duration {
	return time.Duration(c.StopTimeoutSeconds) * time.Second
}

// PullTimeout is PullTimeoutSeconds as a duration.
func (c Config) PullTimeout() time.Duration {
	return time.Duration(c.PullTimeoutSeconds) * time.Second
}
