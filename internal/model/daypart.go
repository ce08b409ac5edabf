package model

import (
	"fmt"
	"strings"
)

// Band is an inclusive share band expressed as fractions of 1
// (0.30 means 30%). Bands may overlap across labels; their maxima
// need not sum to 1.
type Band struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// TempoRange is an inclusive BPM window.
type TempoRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether bpm falls inside the window.
func (r TempoRange) Contains(bpm float64) bool {
	return bpm >= r.Min && bpm <= r.Max
}

// TempoSegment maps a sub-range of the daypart to a tempo window.
// Times are wall-clock "HH:MM" strings taken verbatim from the
// programming document.
type TempoSegment struct {
	Start string     `json:"start"`
	End   string     `json:"end"`
	Tempo TempoRange `json:"tempo"`
}

// DaypartSpec is one programming slot extracted from a schedule
// document. It is immutable after parsing; every downstream component
// consumes it read-only.
type DaypartSpec struct {
	Name             string          `json:"name"`
	Weekday          string          `json:"weekday"`
	StartTime        string          `json:"start_time"`
	EndTime          string          `json:"end_time"`
	TempoProgression []TempoSegment  `json:"tempo_progression"`
	GenreMix         map[string]Band `json:"genre_mix"`
	EraDistribution  map[string]Band `json:"era_distribution"`

	// RegionalMinimum is the hard lower bound on the share of tracks
	// from the designated region. It is never relaxed.
	RegionalMinimum float64 `json:"regional_minimum"`
	RegionCode      string  `json:"region_code"`

	Mood                  string `json:"mood"`
	MinTracks             int    `json:"min_tracks"`
	MaxTracks             int    `json:"max_tracks"`
	TargetDurationMinutes int    `json:"target_duration_minutes"`
}

// ID returns a stable slug identifying the daypart, e.g.
// "morning-drive-monday".
func (d DaypartSpec) ID() string {
	slug := strings.ToLower(d.Name + " " + d.Weekday)
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return ' '
		}
	}, slug)
	return strings.Join(strings.Fields(slug), "-")
}

// TempoEnvelope returns the widest BPM window covering every segment
// of the tempo progression. Zero-valued when no segments exist.
func (d DaypartSpec) TempoEnvelope() TempoRange {
	if len(d.TempoProgression) == 0 {
		return TempoRange{}
	}
	env := d.TempoProgression[0].Tempo
	for _, seg := range d.TempoProgression[1:] {
		if seg.Tempo.Min < env.Min {
			env.Min = seg.Tempo.Min
		}
		if seg.Tempo.Max > env.Max {
			env.Max = seg.Tempo.Max
		}
	}
	return env
}

// TrackSelectionCriteria is the relaxation-level view of a
// DaypartSpec's quantitative fields. Each relaxation level produces
// one immutable snapshot; the regional minimum is carried over from
// the spec unchanged at every level.
type TrackSelectionCriteria struct {
	Level string `json:"level"`

	Tempo              TempoRange      `json:"tempo"`
	UnconstrainedTempo bool            `json:"unconstrained_tempo"`
	GenreMix           map[string]Band `json:"genre_mix"`
	CrossGenre         bool            `json:"cross_genre"`
	UnconstrainedGenre bool            `json:"unconstrained_genre"`
	EraDistribution    map[string]Band `json:"era_distribution"`

	RegionalMinimum float64 `json:"regional_minimum"`
	RegionCode      string  `json:"region_code"`

	EnergyFlow   string `json:"energy_flow"`
	TargetTracks int    `json:"target_tracks"`
}

// Genres returns the genre labels of the mix bands in no particular
// order.
func (c TrackSelectionCriteria) Genres() []string {
	out := make([]string, 0, len(c.GenreMix))
	for g := range c.GenreMix {
		out = append(out, g)
	}
	return out
}

// EraLabel maps a release year to its decade label ("1990s").
func EraLabel(year int) string {
	if year <= 0 {
		return "unknown"
	}
	return fmt.Sprintf("%ds", (year/10)*10)
}
