package selection

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/skylark-radio/playlist-cli/internal/model"
)

// trackRecord is the wire shape the model must emit per track.
type trackRecord struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Artist          string  `json:"artist"`
	Album           string  `json:"album"`
	TempoBPM        float64 `json:"tempo_bpm"`
	Genre           string  `json:"genre"`
	Year            int     `json:"year"`
	Country         string  `json:"country"`
	DurationSeconds int     `json:"duration_seconds"`
	Rationale       string  `json:"rationale"`
}

// parseFinalSelection extracts the structured track list from the
// model's final text. Any structural defect is an error; the caller
// decides whether to re-prompt.
func parseFinalSelection(text string) ([]model.SelectedTrack, error) {
	raw := extractJSONArray(text)
	if raw == "" {
		return nil, eris.New("selection: no JSON array in final response")
	}

	var records []trackRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, eris.Wrap(err, "selection: unmarshal final response")
	}
	if len(records) == 0 {
		return nil, eris.New("selection: final response contains no tracks")
	}

	tracks := make([]model.SelectedTrack, 0, len(records))
	for i, r := range records {
		if r.ID == "" || r.Title == "" {
			return nil, eris.Errorf("selection: record %d missing id or title", i)
		}
		if r.TempoBPM <= 0 || r.DurationSeconds <= 0 {
			return nil, eris.Errorf("selection: record %d has non-positive tempo or duration", i)
		}
		tracks = append(tracks, model.SelectedTrack{
			TrackID:         r.ID,
			Title:           r.Title,
			Artist:          r.Artist,
			Album:           r.Album,
			TempoBPM:        r.TempoBPM,
			Genre:           r.Genre,
			Year:            r.Year,
			Country:         r.Country,
			DurationSeconds: r.DurationSeconds,
			Rationale:       r.Rationale,
		})
	}
	return tracks, nil
}

// extractJSONArray strips code fences and surrounding prose, keeping
// the outermost bracketed array.
func extractJSONArray(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.Index(text, "```"); idx >= 0 {
		text = strings.TrimPrefix(text[idx+3:], "json")
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
	}
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
