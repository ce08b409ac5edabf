package model

import "time"

// SelectedTrack is one chosen catalog entry. Owned exclusively by the
// playlist that contains it.
type SelectedTrack struct {
	TrackID         string  `json:"track_id"`
	Title           string  `json:"title"`
	Artist          string  `json:"artist"`
	Album           string  `json:"album"`
	TempoBPM        float64 `json:"tempo_bpm"`
	Genre           string  `json:"genre"`
	Year            int     `json:"year"`
	Country         string  `json:"country"`
	DurationSeconds int     `json:"duration_seconds"`
	Position        int     `json:"position"`
	Rationale       string  `json:"rationale"`
}

// Playlist is the ordered output of one daypart generation. The
// Duration Padder may append tracks and replace the stored validation
// result; after that the playlist is read-only.
type Playlist struct {
	Daypart          DaypartSpec      `json:"daypart"`
	Tracks           []SelectedTrack  `json:"tracks"`
	Validation       ValidationResult `json:"validation"`
	CostUSD          float64          `json:"cost_usd"`
	GenerationTime   time.Duration    `json:"generation_time_ns"`
	RelaxationLevels []string         `json:"relaxation_levels"`
	Skipped          bool             `json:"skipped,omitempty"`
}

// TotalDurationSeconds sums the durations of all tracks.
func (p *Playlist) TotalDurationSeconds() int {
	total := 0
	for _, t := range p.Tracks {
		total += t.DurationSeconds
	}
	return total
}

// TrackIDSet returns the set of track ids already in the playlist.
func (p *Playlist) TrackIDSet() map[string]bool {
	ids := make(map[string]bool, len(p.Tracks))
	for _, t := range p.Tracks {
		ids[t.TrackID] = true
	}
	return ids
}

// Append adds tracks at the end, assigning ordinal positions.
func (p *Playlist) Append(tracks ...SelectedTrack) {
	for _, t := range tracks {
		t.Position = len(p.Tracks) + 1
		p.Tracks = append(p.Tracks, t)
	}
}
