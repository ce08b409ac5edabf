package selection

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/skylark-radio/playlist-cli/internal/model"
)

const systemPrompt = `You are a radio music director assembling a playlist for one
programming slot. Use the catalog tools to discover tracks, then
answer with the final selection only.

The final answer must be a single JSON array, no surrounding prose,
where each element has exactly these fields:
{"id": "...", "title": "...", "artist": "...", "album": "...",
 "tempo_bpm": 0, "genre": "...", "year": 0, "country": "...",
 "duration_seconds": 0, "rationale": "..."}

Order the array as the on-air sequence. Respect the tempo window, the
genre and era share bands, and the regional content minimum. The
regional minimum is a hard requirement.`

const repromptText = `Your previous answer was not a well-formed JSON array of track
records. Re-emit the complete final selection as a single JSON array
with the exact fields requested, and nothing else.`

// buildUserPrompt renders the criteria snapshot and exclusions into
// the opening user turn.
func buildUserPrompt(c model.TrackSelectionCriteria, exclude map[string]bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Select %d tracks for this slot.\n\n", c.TargetTracks)

	if c.UnconstrainedTempo {
		b.WriteString("Tempo: unconstrained.\n")
	} else {
		fmt.Fprintf(&b, "Tempo window: %g-%g BPM.\n", c.Tempo.Min, c.Tempo.Max)
	}

	if c.UnconstrainedGenre {
		b.WriteString("Genres: unconstrained.\n")
	} else if len(c.GenreMix) > 0 {
		b.WriteString("Genre share bands:\n")
		for _, g := range sortedKeys(c.GenreMix) {
			band := c.GenreMix[g]
			fmt.Fprintf(&b, "  - %s: %.0f%%-%.0f%%\n", g, band.Min*100, band.Max*100)
		}
		if c.CrossGenre {
			b.WriteString("Cross-genre mixing outside these bands is permitted.\n")
		}
	}

	if len(c.EraDistribution) > 0 {
		b.WriteString("Era share bands:\n")
		for _, e := range sortedKeys(c.EraDistribution) {
			band := c.EraDistribution[e]
			fmt.Fprintf(&b, "  - %s: %.0f%%-%.0f%%\n", e, band.Min*100, band.Max*100)
		}
	}

	if c.RegionalMinimum > 0 {
		fmt.Fprintf(&b, "Hard requirement: at least %.0f%% of tracks must be from %s.\n",
			c.RegionalMinimum*100, c.RegionCode)
	}

	if c.EnergyFlow != "" {
		fmt.Fprintf(&b, "Energy flow / mood: %s\n", c.EnergyFlow)
	}

	if len(exclude) > 0 {
		ids := make([]string, 0, len(exclude))
		for id := range exclude {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		data, _ := json.Marshal(ids)
		fmt.Fprintf(&b, "Do not select these track ids: %s\n", data)
	}

	return b.String()
}

func sortedKeys(m map[string]model.Band) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
