package e2e

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"setupd/internal/httpapi"
	"setupd/internal/installer"
	"setupd/internal/manifest"
	"setupd/pkg/types"
)

const sources = `{
  "models": [
    {"name": "wan-t2v", "models": ["Wan2.2"], "associatedModel": "Wan2.2"},
    {"name": "qwen-image", "models": ["Qwen"], "associatedModel": "Qwen"}
  ],
  "custom_nodes": [
    {"name": "ComfyUI-Manager"}
  ]
}`

type stack struct {
	srv      *httptest.Server
	inst     *installer.Installer
	setupDir string
}

// newStack wires a real installer running script (a /bin/sh body) behind the
// HTTP surface, the way cmd/setupd does.
func newStack(t *testing.T, script string) *stack {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}
	dir := t.TempDir()
	write := func(name, content string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o755); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("setup_remote.sh", "#!/bin/sh\n"+script+"\n")
	write("sources2.json", sources)

	inst := installer.New(installer.Config{
		SetupDir:        dir,
		InstallerBin:    "/bin/sh",
		InstallerScript: "setup_remote.sh",
		StopTimeout:     500 * time.Millisecond,
	})
	catalog, err := manifest.NewCatalog(filepath.Join(dir, "sources2.json"), nil)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	srv := httptest.NewServer(httpapi.NewMux(inst, httpapi.WithCatalog(catalog), httpapi.WithComfyDir(dir)))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = inst.Shutdown(ctx)
		srv.Close()
	})
	return &stack{srv: srv, inst: inst, setupDir: dir}
}

// release lets a script blocked on `wait_release` continue.
func (s *stack) release(t *testing.T) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(s.setupDir, "release"), nil, 0o644); err != nil {
		t.Fatalf("release: %v", err)
	}
}

// waitRelease is the shell snippet that blocks until release is called.
const waitRelease = `while [ ! -f release ]; do sleep 0.05; done`

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func getStatus(t *testing.T, base string) types.StatusResponse {
	t.Helper()
	resp, body := httpGet(t, base+"/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/status %d %s", resp.StatusCode, body)
	}
	var st types.StatusResponse
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("/status json: %v", err)
	}
	return st
}

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

// stream is one connected /progress client.
type stream struct {
	resp *http.Response
	br   *bufio.Reader
}

func openStream(t *testing.T, base string) *stream {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/progress", nil)
	if err != nil {
		cancel()
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		t.Fatalf("GET /progress: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		_ = resp.Body.Close()
	})
	return &stream{resp: resp, br: bufio.NewReader(resp.Body)}
}

// next returns the next decoded event; io.EOF once the server closed the stream.
// Keepalive comments are skipped.
func (s *stream) next() (types.Event, error) {
	var data []string
	for {
		line, err := s.br.ReadString('\n')
		if err != nil {
			return types.Event{}, err
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "" && len(data) > 0:
			var ev types.Event
			err := json.Unmarshal([]byte(strings.Join(data, "\n")), &ev)
			return ev, err
		case strings.HasPrefix(line, "data: "):
			data = append(data, strings.TrimPrefix(line, "data: "))
		}
	}
}

// drain reads events until the server closes the stream.
func (s *stream) drain(t *testing.T) []types.Event {
	t.Helper()
	var out []types.Event
	for {
		ev, err := s.next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("stream: %v", err)
		}
		out = append(out, ev)
	}
}

func terminalCount(evs []types.Event) int {
	n := 0
	for _, e := range evs {
		if e.Terminal() {
			n++
		}
	}
	return n
}
