// Package manifest reads the installer's sources file and summarises what it
// offers. Downloading and cloning stay with the installer child; this package
// only reads.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"setupd/internal/common/fsutil"
	"setupd/pkg/types"
)

// Item is one downloadable model file or custom-node repository. Fields the
// summary does not need are ignored.
type Item struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	// Models lists the categories this item belongs to.
	Models []string `json:"models"`
	// AssociatedModel ties the item to a single category; empty for shared items.
	AssociatedModel string `json:"associatedModel"`
}

// Sources is the decoded sources file.
type Sources struct {
	Models      []Item `json:"models"`
	CustomNodes []Item `json:"custom_nodes"`
}

// Load decodes the sources file at path. A missing file yields empty Sources
// and no error.
func Load(path string) (Sources, error) {
	var s Sources
	path, err := fsutil.ExpandHome(path)
	if err != nil {
		return s, err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read sources: %w", err)
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return Sources{}, fmt.Errorf("decode sources: %w", err)
	}
	return s, nil
}

// Summarize returns the sorted unique categories and the item totals.
func Summarize(s Sources) types.ManifestSummary {
	seen := map[string]struct{}{}
	add := func(c string) {
		if c = strings.TrimSpace(c); c != "" {
			seen[c] = struct{}{}
		}
	}
	for _, it := range s.Models {
		for _, c := range it.Models {
			add(c)
		}
		add(it.AssociatedModel)
	}
	for _, it := range s.CustomNodes {
		add(it.AssociatedModel)
	}
	cats := make([]string, 0, len(seen))
	for c := range seen {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return types.ManifestSummary{
		AvailableModels: cats,
		Total:           types.ManifestTotals{Models: len(s.Models), CustomNodes: len(s.CustomNodes)},
	}
}
