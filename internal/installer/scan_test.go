package installer

import (
	"bufio"
	"strings"
	"testing"
)

func TestScanLinesOrCR(t *testing.T) {
	in := "one\ntwo\r\nbar 10%\rbar 20%\rbar 30%\nlast"
	sc := newLineScanner(strings.NewReader(in))
	var got []string
	for sc.Scan() {
		got = append(got, sc.Text())
	}
	want := []string{"one", "two", "bar 10%", "bar 20%", "bar 30%", "last"}
	if len(got) != len(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	for k := range want {
		if got[k] != want[k] {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestCleanLine(t *testing.T) {
	raw := "  \x1b[0;32m✓\x1b[0m Cloned with ghp_secret into \x1b[2m/x\x1b[0m  "
	got := cleanLine(raw, []string{"ghp_secret", ""})
	if got != "✓ Cloned with *** into /x" {
		t.Fatalf("cleanLine=%q", got)
	}
}

func TestLineSplitter_OversizedLineIsTruncated(t *testing.T) {
	in := "short\n" + strings.Repeat("x", 40) + "\r\nnext\rlast"
	sc := bufio.NewScanner(strings.NewReader(in))
	sc.Buffer(make([]byte, 0, 4), 16)
	sc.Split((&lineSplitter{max: 16}).split)
	var got []string
	for sc.Scan() {
		got = append(got, sc.Text())
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	want := []string{"short", strings.Repeat("x", 16), "next", "last"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("got %q, want %q", got, want)
	}
}
