// Package vcs updates the setup checkout with git.
package vcs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"setupd/pkg/types"
)

const defaultPullTimeout = 60 * time.Second

// Puller runs `git pull` in a fixed directory.
type Puller struct {
	Dir     string
	GitBin  string
	Timeout time.Duration

	log zerolog.Logger
}

// NewPuller returns a Puller for dir. Empty gitBin means "git"; a
// non-positive timeout means 60s.
func NewPuller(dir, gitBin string, timeout time.Duration, log *zerolog.Logger) *Puller {
	if gitBin == "" {
		gitBin = "git"
	}
	if timeout <= 0 {
		timeout = defaultPullTimeout
	}
	l := zerolog.Nop()
	if log != nil {
		l = log.With().Str("component", "vcs").Logger()
	}
	return &Puller{Dir: dir, GitBin: gitBin, Timeout: timeout, log: l}
}

// Pull fetches and merges the upstream branch. A failing git command yields
// status "error" with its stderr; the returned error is set only when git
// could not be run or timed out.
func (p *Puller) Pull(ctx context.Context) (types.PullResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	start := time.Now()
	res, err := RunCmd(ctx, Cmd{
		Path: p.GitBin,
		Args: []string{"pull"},
		Dir:  p.Dir,
		// Never block on a credential prompt.
		Env: map[string]string{"GIT_TERMINAL_PROMPT": "0"},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("git pull timed out after %s", p.Timeout)
		} else if !errors.Is(err, context.Canceled) {
			err = fmt.Errorf("git pull: %w", err)
		}
		p.log.Warn().Err(err).Str("dir", p.Dir).Msg("pull failed to run")
		return types.PullResponse{}, err
	}
	if res.ExitCode != 0 {
		p.log.Warn().Int("exit_code", res.ExitCode).Str("dir", p.Dir).Msg("git pull failed")
		return types.PullResponse{Status: "error", Output: res.Stdout, Error: res.Stderr}, nil
	}
	p.log.Info().Str("dir", p.Dir).Dur("dur", time.Since(start)).Msg("git pull done")
	return types.PullResponse{Status: "success", Output: res.Stdout}, nil
}
