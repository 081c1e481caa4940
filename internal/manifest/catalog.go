package manifest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"setupd/pkg/types"
)

// Catalog caches the summary of one sources file and refreshes it when the
// file changes on disk.
type Catalog struct {
	path string
	log  zerolog.Logger

	mu      sync.RWMutex
	summary types.ManifestSummary
}

// NewCatalog loads path once. A decode error is returned together with a
// usable (empty) catalog so the server can still start.
func NewCatalog(path string, log *zerolog.Logger) (*Catalog, error) {
	l := zerolog.Nop()
	if log != nil {
		l = log.With().Str("component", "manifest").Logger()
	}
	c := &Catalog{path: filepath.Clean(path), log: l, summary: Summarize(Sources{})}
	return c, c.Reload()
}

// Path is the watched sources file.
func (c *Catalog) Path() string { return c.path }

// Summary returns a copy of the current summary.
func (c *Catalog) Summary() types.ManifestSummary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.summary
	s.AvailableModels = append([]string{}, s.AvailableModels...)
	return s
}

// Reload re-reads the file. On error the previous summary is kept.
func (c *Catalog) Reload() error {
	src, err := Load(c.path)
	if err != nil {
		return err
	}
	sum := Summarize(src)
	c.mu.Lock()
	c.summary = sum
	c.mu.Unlock()
	c.log.Debug().Int("models", sum.Total.Models).Int("custom_nodes", sum.Total.CustomNodes).Msg("sources loaded")
	return nil
}

// Watch reloads the catalog whenever the sources file is written, created,
// renamed or removed, until ctx is done. The parent directory is watched so
// editors that replace the file atomically are handled.
func (c *Catalog) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(c.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(c.path), err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != c.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			if err := c.Reload(); err != nil {
				// Usually a partially written file; the next write event retries.
				c.log.Warn().Err(err).Str("path", c.path).Msg("sources reload failed; keeping previous summary")
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.log.Warn().Err(err).Msg("watcher error")
		}
	}
}
