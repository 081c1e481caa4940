package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"":      LevelOff,
		"off":   LevelOff,
		"error": LevelError,
		"info":  LevelInfo,
		"DEBUG": LevelDebug,
		"weird": LevelInfo, // default
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestLogLevel_Overrides(t *testing.T) {
	r := httptest.NewRequest("GET", "/x?log=debug", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("query override failed: %v", got)
	}
	r = httptest.NewRequest("GET", "/x?log=1", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("shorthand query override failed: %v", got)
	}
	r = httptest.NewRequest("GET", "/x", nil)
	r.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(r); got != LevelError {
		t.Fatalf("header override failed: %v", got)
	}
	SetRequestLogLevel("off")
	defer SetRequestLogLevel("info")
	if got := requestLogLevel(httptest.NewRequest("GET", "/x", nil)); got != LevelOff {
		t.Fatalf("default level not applied: %v", got)
	}
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))
	t.Cleanup(func() { SetLogger(zerolog.Nop()) })
	return &buf
}

func TestRequestLogger_InfoAndOff(t *testing.T) {
	buf := captureLogs(t)
	h := NewMux(newMockService())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status?log=info", nil))
	out := buf.String()
	if !strings.Contains(out, `"message":"request end"`) || !strings.Contains(out, `"path":"/status"`) || !strings.Contains(out, `"status":200`) {
		t.Fatalf("missing request end log: %s", out)
	}
	if strings.Contains(out, "request start") {
		t.Fatalf("start line only expected at debug: %s", out)
	}

	buf.Reset()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz?log=off", nil))
	if buf.Len() != 0 {
		t.Fatalf("expected no logs with log=off: %s", buf.String())
	}
}

func TestRequestLogger_ServerErrorsLoggedAtErrorLevel(t *testing.T) {
	buf := captureLogs(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	req := httptest.NewRequest(http.MethodGet, "/x?log=error", nil)
	RequestLogger(next).ServeHTTP(httptest.NewRecorder(), req)
	if !strings.Contains(buf.String(), `"level":"error"`) || !strings.Contains(buf.String(), `"status":500`) {
		t.Fatalf("expected error-level log: %s", buf.String())
	}
}

func TestFrameLogger_SplitsLines(t *testing.T) {
	buf := captureLogs(t)
	fl := &frameLogger{}
	_, _ = fl.Write([]byte("data: {\"type\":\"log\"}\n\ndata: {\"ty"))
	_, _ = fl.Write([]byte("pe\":\"status\"}\n\n: keepalive\n\n"))

	out := buf.String()
	if !strings.Contains(out, `progress> {\"type\":\"log\"}`) {
		t.Fatalf("missing first frame: %q", out)
	}
	if !strings.Contains(out, `progress> {\"type\":\"status\"}`) {
		t.Fatalf("missing joined frame: %q", out)
	}
	if strings.Contains(out, "keepalive") {
		t.Fatalf("comments must not be logged: %q", out)
	}
}
