package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"setupd/internal/common/fsutil"
	"setupd/internal/config"
	"setupd/internal/httpapi"
	"setupd/internal/installer"
	"setupd/internal/manifest"
	"setupd/internal/vcs"
)

// serve runs the HTTP server until ctx is cancelled or SIGINT/SIGTERM arrives,
// then stops a running installation and drains open streams.
func serve(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	inst := installer.New(installer.Config{
		SetupDir:         cfg.SetupDir,
		InstallerBin:     cfg.InstallerBin,
		InstallerScript:  cfg.InstallerScript,
		InstallerArgs:    cfg.InstallerArgs,
		LogCapacity:      cfg.LogCapacity,
		SubscriberBuffer: cfg.SubscriberBuffer,
		StopTimeout:      cfg.StopTimeout(),
		Logger:           &log,
	})

	if !fsutil.PathExists(cfg.SourcesFile) {
		log.Warn().Str("path", cfg.SourcesFile).Msg("sources file not found; available models will be empty")
	}
	catalog, err := manifest.NewCatalog(cfg.SourcesFile, &log)
	if err != nil {
		log.Warn().Err(err).Str("path", catalog.Path()).Msg("sources file unreadable")
	}
	go func() {
		if err := catalog.Watch(ctx); err != nil {
			log.Warn().Err(err).Msg("sources watcher disabled")
		}
	}()

	httpapi.SetLogger(log)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetKeepaliveInterval(cfg.KeepaliveInterval())
	httpapi.SetLogTail(cfg.LogTail)
	httpapi.SetCORSOptions(true, cfg.CORSOrigins, nil, nil)
	base, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpapi.SetBaseContext(base)

	mux := httpapi.NewMux(inst,
		httpapi.WithCatalog(catalog),
		httpapi.WithPuller(vcs.NewPuller(cfg.SetupDir, cfg.GitBin, cfg.PullTimeout(), &log)),
		httpapi.WithComfyDir(cfg.ComfyDir),
	)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	log.Info().
		Str("addr", ln.Addr().String()).
		Str("setup_dir", cfg.SetupDir).
		Str("comfy_dir", cfg.ComfyDir).
		Str("sources", cfg.SourcesFile).
		Str("version", version).
		Msg("setupd listening")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	log.Info().Msg("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), cfg.StopTimeout()+5*time.Second)
	defer cancel()
	// End event streams first; Shutdown waits for active handlers.
	cancelBase()
	if err := inst.Shutdown(shutCtx); err != nil {
		log.Error().Err(err).Msg("installer shutdown")
	}
	if err := srv.Shutdown(shutCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
		return err
	}
	return nil
}
