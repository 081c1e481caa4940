package e2e

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"setupd/pkg/types"
)

// TestE2E_TwoSubscribersSeeOneTerminalEvent connects one observer before the
// run and one while it is in progress. Both must receive exactly one terminal
// event, after which the server closes their streams.
func TestE2E_TwoSubscribersSeeOneTerminalEvent(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	s := newStack(t, `
echo "Starting for $2"
echo "Downloading Models (2 items)"
echo "Downloading wan.safetensors..."
`+waitRelease+`
echo "✓ Downloaded"
echo "✓ Downloaded"`)

	early := openStream(t, s.srv.URL)
	first, err := early.next()
	if err != nil || first.Type != types.EventSnapshot || first.State.Status != "idle" {
		t.Fatalf("unexpected first frame: %+v err=%v", first, err)
	}

	resp, body := httpPostJSON(t, s.srv.URL+"/install", []byte(`{"models":["Wan2.2","Qwen"]}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/install %d %s", resp.StatusCode, body)
	}
	var started types.InstallResponse
	if err := json.Unmarshal(body, &started); err != nil || started.Status != "started" || started.JobID == "" {
		t.Fatalf("unexpected install response: %s", body)
	}

	waitFor(t, 5*time.Second, func() bool { return s.inst.Snapshot().CurrentTask != "Starting download process..." })
	late := openStream(t, s.srv.URL)
	snap, err := late.next()
	if err != nil || snap.Type != types.EventSnapshot || snap.State.Status != "running" || snap.State.JobID != started.JobID {
		t.Fatalf("late subscriber snapshot: %+v err=%v", snap, err)
	}

	// A second start while running is rejected and leaves the job alone.
	if resp, body := httpPostJSON(t, s.srv.URL+"/install", []byte(`{"models":["Qwen"]}`)); resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 while running, got %d %s", resp.StatusCode, body)
	}

	s.release(t)
	earlyEvents := early.drain(t)
	lateEvents := late.drain(t)

	for name, evs := range map[string][]types.Event{"early": earlyEvents, "late": lateEvents} {
		if n := terminalCount(evs); n != 1 {
			t.Fatalf("%s subscriber saw %d terminal events: %+v", name, n, evs)
		}
		last := evs[len(evs)-1]
		if last.Type != types.EventStatus || last.Status != "completed" {
			t.Fatalf("%s subscriber: last event %+v", name, last)
		}
		prev := -1
		for _, e := range evs {
			if e.Type == types.EventProgress {
				if e.Progress < prev {
					t.Fatalf("%s subscriber: progress went back %d -> %d", name, prev, e.Progress)
				}
				prev = e.Progress
			}
		}
		if prev != 100 {
			t.Fatalf("%s subscriber: final progress %d", name, prev)
		}
	}

	var sawRunning bool
	for _, e := range earlyEvents {
		if e.Type == types.EventStatus && e.Status == "running" {
			sawRunning = true
		}
	}
	if !sawRunning {
		t.Fatalf("early subscriber missed the running transition")
	}

	st := getStatus(t, s.srv.URL)
	if st.Installation.Status != "completed" || st.Installation.Progress != 100 || st.Installation.CompletedAt == nil {
		t.Fatalf("unexpected final status: %+v", st.Installation)
	}
	if strings.Join(st.Installation.Models, ",") != "Wan2.2,Qwen" {
		t.Fatalf("models=%v", st.Installation.Models)
	}
}

func TestE2E_StopCancelsAndAllowsRestart(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	s := newStack(t, `echo "Installing Custom Nodes (3 nodes)"; while true; do echo "Cloning repo..."; sleep 1; done`)

	if resp, _ := httpPostJSON(t, s.srv.URL+"/stop", nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("stop while idle: expected 400, got %d", resp.StatusCode)
	}

	sub := openStream(t, s.srv.URL)
	if _, err := sub.next(); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if resp, body := httpPostJSON(t, s.srv.URL+"/install", []byte(`{"models":["Wan2.2"]}`)); resp.StatusCode != http.StatusOK {
		t.Fatalf("/install %d %s", resp.StatusCode, body)
	}
	waitFor(t, 5*time.Second, func() bool { return s.inst.Snapshot().CurrentTask == "Installing custom nodes..." || strings.HasPrefix(s.inst.Snapshot().CurrentTask, "Cloning") })

	resp, body := httpPostJSON(t, s.srv.URL+"/stop", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "stopping") {
		t.Fatalf("/stop %d %s", resp.StatusCode, body)
	}
	evs := sub.drain(t)
	if terminalCount(evs) != 1 || evs[len(evs)-1].Status != "cancelled" {
		t.Fatalf("unexpected events after stop: %+v", evs)
	}
	if st := getStatus(t, s.srv.URL); st.Installation.Status != "cancelled" {
		t.Fatalf("status=%s", st.Installation.Status)
	}

	if resp, body := httpPostJSON(t, s.srv.URL+"/install", []byte(`{"models":["Qwen"]}`)); resp.StatusCode != http.StatusOK {
		t.Fatalf("restart after stop: %d %s", resp.StatusCode, body)
	}
	waitFor(t, 5*time.Second, func() bool { return s.inst.Snapshot().Status == "running" })
}

func TestE2E_FailureKeepsProgressAndLogs(t *testing.T) {
	if testing.Short() {
		t.Skip("short mode")
	}
	s := newStack(t, `
echo "Downloading Models (4 items)"
echo "✓ Downloaded"
echo "✓ Downloaded"
echo "token is $HF_TOKEN"
echo "wget: server returned error" >&2
exit 1`)

	sub := openStream(t, s.srv.URL)
	if _, err := sub.next(); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if resp, body := httpPostJSON(t, s.srv.URL+"/install", []byte(`{"models":["Wan2.2"],"hf_token":"hf_secret123"}`)); resp.StatusCode != http.StatusOK {
		t.Fatalf("/install %d %s", resp.StatusCode, body)
	}
	evs := sub.drain(t)
	last := evs[len(evs)-1]
	if last.Status != "error" || !strings.Contains(last.Error, "1") {
		t.Fatalf("unexpected terminal event: %+v", last)
	}

	st := getStatus(t, s.srv.URL).Installation
	if st.Status != "error" || st.Progress != 45 || st.CompletedAt != nil {
		t.Fatalf("unexpected state: %+v", st)
	}

	resp, body := httpGet(t, s.srv.URL+"/logs?limit=50")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/logs %d", resp.StatusCode)
	}
	if strings.Contains(string(body), "hf_secret123") {
		t.Fatalf("token leaked into logs: %s", body)
	}
	for _, want := range []string{"token is ***", "wget: server returned error", "Starting installation for models: Wan2.2"} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("logs missing %q: %s", want, body)
		}
	}
}

func TestE2E_StatusReportsManifest(t *testing.T) {
	s := newStack(t, `exit 0`)
	st := getStatus(t, s.srv.URL)
	if st.Status != "online" || !st.ComfyExists || st.Installation.Status != "idle" {
		t.Fatalf("unexpected status: %+v", st)
	}
	if strings.Join(st.Available.AvailableModels, ",") != "Qwen,Wan2.2" || st.Available.Total.Models != 2 || st.Available.Total.CustomNodes != 1 {
		t.Fatalf("unexpected summary: %+v", st.Available)
	}
}

func TestE2E_InstallValidation(t *testing.T) {
	s := newStack(t, `exit 0`)
	for _, body := range []string{`{}`, `{"models":[]}`, `{"models":["  "]}`, `not json`} {
		resp, out := httpPostJSON(t, s.srv.URL+"/install", []byte(body))
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d %s", body, resp.StatusCode, out)
		}
	}
	if st := getStatus(t, s.srv.URL); st.Installation.Status != "idle" {
		t.Fatalf("rejected requests must not change state: %+v", st.Installation)
	}
}
