// Package palette ranks commands against the palette query.
package palette

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/asynkron/openx/internal/core/state"
)

// Filter returns indices into commands that fuzzy-match query, best first.
//
// The query is trimmed and lower-cased. An empty query returns every index in
// order. Otherwise name and description are scored independently and the
// better score wins; commands matching neither are dropped. Equal scores keep
// their original order.
func Filter(commands []state.CommandEntry, query string) []int {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		out := make([]int, len(commands))
		for i := range commands {
			out[i] = i
		}
		return out
	}

	names := make([]string, len(commands))
	descriptions := make([]string, len(commands))
	for i, cmd := range commands {
		names[i] = strings.ToLower(cmd.Name)
		descriptions[i] = strings.ToLower(cmd.Description)
	}

	best := make(map[int]int, len(commands))
	record := func(matches fuzzy.Matches) {
		for _, m := range matches {
			if prev, ok := best[m.Index]; !ok || m.Score > prev {
				best[m.Index] = m.Score
			}
		}
	}
	record(fuzzy.Find(query, names))
	record(fuzzy.Find(query, descriptions))

	out := make([]int, 0, len(best))
	for idx := range best {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := best[out[i]], best[out[j]]
		if si != sj {
			return si > sj
		}
		return out[i] < out[j]
	})
	return out
}

// Update recomputes p.Filtered from p.Query and resets the selection.
func Update(p *state.PaletteState) {
	p.Filtered = Filter(p.Commands, p.Query)
	p.Selected = 0
}
