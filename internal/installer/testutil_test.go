package installer

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return c
}

// shellScript writes body to a temp file and returns a Command running it.
func shellScript(t *testing.T, body string) Command {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}
	p := filepath.Join(t.TempDir(), "installer.sh")
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return Command{Path: "/bin/sh", Args: []string{p}, Env: map[string]string{}}
}

// newTestInstaller builds an installer with a short stop timeout and shuts it
// down on cleanup.
func newTestInstaller(t *testing.T) (*Installer, *MemoryPublisher) {
	t.Helper()
	inst := New(Config{StopTimeout: 500 * time.Millisecond})
	pub := NewMemoryPublisher()
	inst.SetEventPublisher(pub)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = inst.Shutdown(ctx)
	})
	return inst, pub
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s", timeout)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
