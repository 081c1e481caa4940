package installer

import (
	"context"
	"path/filepath"
	"strings"

	"setupd/pkg/types"
)

// Environment variables through which tokens reach the installer. They never
// appear on the command line.
const (
	envHFToken      = "HF_TOKEN"
	envCivitAIToken = "CIVITAI_TOKEN"
	envGitHubToken  = "GITHUB_TOKEN"
)

// BuildCommand turns an install request into the installer command line.
func (i *Installer) BuildCommand(req types.InstallRequest) (Command, error) {
	if len(req.Models) == 0 {
		return Command{}, ErrMalformedRequest("no models specified")
	}
	models := make([]string, 0, len(req.Models))
	for _, m := range req.Models {
		m = strings.TrimSpace(m)
		if m == "" {
			return Command{}, ErrMalformedRequest("model names must not be blank")
		}
		if strings.ContainsAny(m, ",\n\r") {
			return Command{}, ErrMalformedRequest("invalid model name: " + m)
		}
		models = append(models, m)
	}

	c := Command{
		Path:   i.cfg.InstallerBin,
		Dir:    i.cfg.SetupDir,
		Env:    map[string]string{},
		Models: models,
	}
	if s := i.cfg.InstallerScript; s != "" {
		if !filepath.IsAbs(s) && i.cfg.SetupDir != "" {
			s = filepath.Join(i.cfg.SetupDir, s)
		}
		c.Args = append(c.Args, s)
		c.Require = append(c.Require, s)
	}
	c.Args = append(c.Args, i.cfg.InstallerArgs...)
	c.Args = append(c.Args, "--models", strings.Join(models, ","))

	for k, v := range map[string]string{
		envHFToken:      req.HFToken,
		envCivitAIToken: req.CivitAIToken,
		envGitHubToken:  req.GitHubToken,
	} {
		if v = strings.TrimSpace(v); v != "" {
			c.Env[k] = v
			c.Secrets = append(c.Secrets, v)
		}
	}
	return c, nil
}

// Install validates req and starts the installer for it.
func (i *Installer) Install(ctx context.Context, req types.InstallRequest) (string, error) {
	c, err := i.BuildCommand(req)
	if err != nil {
		return "", err
	}
	return i.Start(ctx, c)
}
