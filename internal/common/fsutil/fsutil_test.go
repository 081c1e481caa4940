package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}

	cases := map[string]string{
		"":               "",
		"/tmp":           "/tmp",
		"relative/dir":   "relative/dir",
		"~":              home,
		"~/ComfyUI":      filepath.Join(home, "ComfyUI"),
		"~other/ComfyUI": "~other/ComfyUI",
	}
	for in, want := range cases {
		got, err := ExpandHome(in)
		if err != nil {
			t.Fatalf("ExpandHome(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ExpandHome(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPathExists(t *testing.T) {
	d := t.TempDir()
	if !PathExists(d) {
		t.Fatalf("temp dir should exist")
	}
	if PathExists(filepath.Join(d, "missing")) {
		t.Fatalf("missing path reported as existing")
	}
}

func TestRequireFile(t *testing.T) {
	d := t.TempDir()
	f := filepath.Join(d, "setup_remote.py")
	if err := os.WriteFile(f, []byte("print('hi')\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := RequireFile(f); err != nil {
		t.Fatalf("RequireFile(file): %v", err)
	}
	if err := RequireFile(filepath.Join(d, "nope.py")); err == nil || err.Error() != "nope.py not found" {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := RequireFile(d); err == nil || !strings.Contains(err.Error(), "not a regular file") {
		t.Fatalf("directory accepted: %v", err)
	}
}
