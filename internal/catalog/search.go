package catalog

import (
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/r2midi/presetctl/internal/types"
)

// presetSource implements fuzzy.Source over a flattened preset list.
type presetSource []types.Preset

func (s presetSource) String(i int) string {
	p := s[i]
	if len(p.Characters) == 0 {
		return p.PresetName + " " + p.Category
	}
	return p.PresetName + " " + p.Category + " " + strings.Join(p.Characters, " ")
}

func (s presetSource) Len() int {
	return len(s)
}

// Search fuzzy-matches query against preset names, categories and characters.
// Results are ordered best match first; limit <= 0 means no limit.
func (s *Snapshot) Search(query string, limit int) []types.Preset {
	query = strings.TrimSpace(query)
	if query == "" {
		return []types.Preset{}
	}

	source := presetSource(s.flatten())
	matches := fuzzy.FindFrom(query, source)

	out := make([]types.Preset, 0, len(matches))
	for _, m := range matches {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, source[m.Index])
	}
	return out
}
