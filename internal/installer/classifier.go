package installer

import (
	"regexp"
	"strconv"
	"strings"
)

// Task labels set by phase headers.
const (
	TaskDownloadingModels = "Downloading models..."
	TaskInstallingNodes   = "Installing custom nodes..."
)

// Reserved progress band for percentages reported by the child. The lower part
// is left for launch bookkeeping, the upper part for the exit code.
const (
	percentBandLow  = 10
	percentBandHigh = 95
	// Counted completions never claim more than this.
	itemProgressSpan = 90
	itemProgressCap  = 95
	taskLabelMax     = 60
)

var (
	phaseHeaderRe = regexp.MustCompile(`(?i)(downloading models|installing custom nodes)\s*\(\s*(\d+)\s*(?:items?|nodes?)\s*\)`)
	completedRe   = regexp.MustCompile(`\b(?:Downloaded|Installed)\b`)
	percentRe     = regexp.MustCompile(`(\d{1,3})\s?%`)
	announceRe    = regexp.MustCompile(`\b(?:Downloading|Cloning)\b`)
)

// Update is the outcome of classifying one line.
type Update struct {
	Progress    int
	HasProgress bool
	// Task is empty when the current task should not change.
	Task string
}

// Classifier derives best-effort progress from installer output. It keeps the
// per-phase item counters, so one Classifier serves exactly one run.
// Its result is advisory: it is never used to decide that a run is finished.
type Classifier struct {
	total     int
	completed int
}

// NewClassifier returns a classifier with empty counters.
func NewClassifier() *Classifier { return &Classifier{} }

// Classify inspects a cleaned line. ok is false for log-only lines.
func (c *Classifier) Classify(line string) (u Update, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Update{}, false
	}

	if m := phaseHeaderRe.FindStringSubmatch(line); m != nil {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			return Update{}, false
		}
		c.total = n
		c.completed = 0
		if strings.EqualFold(m[1], "downloading models") {
			return Update{Task: TaskDownloadingModels}, true
		}
		return Update{Task: TaskInstallingNodes}, true
	}

	if strings.Contains(line, "✓") || completedRe.MatchString(line) {
		c.completed++
		if c.total <= 0 {
			return Update{}, false
		}
		p := c.completed * itemProgressSpan / c.total
		if p > itemProgressCap {
			p = itemProgressCap
		}
		return Update{Progress: p, HasProgress: true}, true
	}

	if m := percentRe.FindStringSubmatch(line); m != nil {
		pct, err := strconv.Atoi(m[1])
		if err != nil {
			return Update{}, false
		}
		if pct > 100 {
			pct = 100
		}
		p := percentBandLow + pct*(percentBandHigh-percentBandLow)/100
		return Update{Progress: p, HasProgress: true, Task: truncateRunes(line, taskLabelMax)}, true
	}

	if announceRe.MatchString(line) {
		return Update{Task: truncateRunes(line, taskLabelMax)}, true
	}
	return Update{}, false
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
