package installer

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

const maxLineBytes = 1 << 20

// lineSplitter splits on '\n', '\r' or "\r\n". Download tools redraw their
// progress bar with bare carriage returns; each redraw becomes its own line.
//
// A line longer than max is cut to its first max bytes and the rest of it,
// up to the next delimiter, is dropped, so one runaway line never stops the
// scanner.
type lineSplitter struct {
	max        int
	discarding bool
}

func (s *lineSplitter) split(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	i := bytes.IndexAny(data, "\r\n")
	if i < 0 {
		switch {
		case s.discarding:
			return len(data), nil, nil
		case atEOF:
			return len(data), data, nil
		case len(data) >= s.max:
			s.discarding = true
			return len(data), data[:s.max], nil
		}
		return 0, nil, nil
	}
	adv := i + 1
	if data[i] == '\r' {
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				adv = i + 2
			}
		} else if !atEOF {
			// Need one more byte to tell "\r" from "\r\n".
			return 0, nil, nil
		}
	}
	if s.discarding {
		s.discarding = false
		return adv, nil, nil
	}
	return adv, data[:i], nil
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	sc.Split((&lineSplitter{max: maxLineBytes}).split)
	return sc
}

// cleanLine strips terminal formatting and redacts secrets.
func cleanLine(raw string, secrets []string) string {
	line := strings.TrimSpace(ansi.Strip(raw))
	for _, s := range secrets {
		if s != "" {
			line = strings.ReplaceAll(line, s, "***")
		}
	}
	return line
}
