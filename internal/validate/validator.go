// Package validate scores a finished track sequence against its
// selection criteria. Validation is pure and deterministic: no I/O,
// no clock, identical inputs always yield identical scores.
package validate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/skylark-radio/playlist-cli/internal/model"
)

// Thresholds holds the configurable validation constants.
type Thresholds struct {
	// ConstraintPass is the minimum constraint-satisfaction score for
	// a passing playlist.
	ConstraintPass float64 `json:"constraint_pass" mapstructure:"constraint_pass"`
	// FlowPass is the minimum flow-quality score for a passing
	// playlist.
	FlowPass float64 `json:"flow_pass" mapstructure:"flow_pass"`
	// SmoothDelta and ChoppyDelta classify the average absolute BPM
	// delta between consecutive tracks.
	SmoothDelta float64 `json:"smooth_delta" mapstructure:"smooth_delta"`
	ChoppyDelta float64 `json:"choppy_delta" mapstructure:"choppy_delta"`
	// FlowScale divides the average delta when computing the flow
	// score: flow = max(0, 1 - avgDelta/FlowScale).
	FlowScale float64 `json:"flow_scale" mapstructure:"flow_scale"`
}

// DefaultThresholds returns the production validation constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ConstraintPass: 0.80,
		FlowPass:       0.70,
		SmoothDelta:    10,
		ChoppyDelta:    20,
		FlowScale:      50,
	}
}

// Validate computes constraint-satisfaction and flow-quality scores
// for tracks against criteria.
func Validate(tracks []model.SelectedTrack, criteria model.TrackSelectionCriteria, th Thresholds) model.ValidationResult {
	result := model.ValidationResult{
		GapAnalysis: map[string]string{},
	}

	if len(tracks) == 0 {
		result.EnergyProgression = model.ProgressionSmooth
		result.GapAnalysis["tracks"] = "no tracks selected"
		return result
	}

	result.TempoSatisfaction = tempoScore(tracks, criteria, result.GapAnalysis)
	result.GenreSatisfaction = bandScore(genreShares(tracks), criteria.GenreMix, criteria.UnconstrainedGenre, "genre", result.GapAnalysis)
	result.EraSatisfaction = bandScore(eraShares(tracks), criteria.EraDistribution, false, "era", result.GapAnalysis)
	result.RegionalSatisfaction = regionalScore(tracks, criteria, result.GapAnalysis)

	result.ConstraintSatisfaction = (result.TempoSatisfaction +
		result.GenreSatisfaction +
		result.EraSatisfaction +
		result.RegionalSatisfaction) / 4

	result.AvgTempoDelta = avgTempoDelta(tracks)
	result.FlowQuality = math.Max(0, 1-result.AvgTempoDelta/th.FlowScale)
	switch {
	case result.AvgTempoDelta < th.SmoothDelta:
		result.EnergyProgression = model.ProgressionSmooth
	case result.AvgTempoDelta > th.ChoppyDelta:
		result.EnergyProgression = model.ProgressionChoppy
	default:
		result.EnergyProgression = model.ProgressionModerate
	}
	if result.FlowQuality < th.FlowPass {
		result.GapAnalysis["flow"] = fmt.Sprintf(
			"average tempo delta %.1f BPM yields flow quality %.2f, below %.2f",
			result.AvgTempoDelta, result.FlowQuality, th.FlowPass)
	}

	result.PassesValidation = result.ConstraintSatisfaction >= th.ConstraintPass &&
		result.FlowQuality >= th.FlowPass

	if result.PassesValidation {
		result.GapAnalysis = map[string]string{}
	}
	return result
}

// tempoScore is the fraction of tracks inside the active tempo range.
func tempoScore(tracks []model.SelectedTrack, c model.TrackSelectionCriteria, gaps map[string]string) float64 {
	if c.UnconstrainedTempo {
		return 1
	}
	in := 0
	for _, t := range tracks {
		if c.Tempo.Contains(t.TempoBPM) {
			in++
		}
	}
	score := float64(in) / float64(len(tracks))
	if score < 1 {
		gaps["tempo"] = fmt.Sprintf("%d of %d tracks outside %g-%g BPM",
			len(tracks)-in, len(tracks), c.Tempo.Min, c.Tempo.Max)
	}
	return score
}

// bandScore is the fraction of bands whose observed share falls
// within [min, max].
func bandScore(observed map[string]float64, bands map[string]model.Band, unconstrained bool, kind string, gaps map[string]string) float64 {
	if unconstrained || len(bands) == 0 {
		return 1
	}

	labels := make([]string, 0, len(bands))
	for label := range bands {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	met := 0
	for _, label := range labels {
		b := bands[label]
		share := observed[strings.ToLower(label)]
		if share >= b.Min && share <= b.Max {
			met++
			continue
		}
		gaps[kind+":"+label] = fmt.Sprintf(
			"%s %q share %.0f%% outside band %.0f%%-%.0f%%",
			kind, label, share*100, b.Min*100, b.Max*100)
	}
	return float64(met) / float64(len(bands))
}

// regionalScore is 1 when the observed regional share meets the fixed
// minimum, otherwise the observed share itself.
func regionalScore(tracks []model.SelectedTrack, c model.TrackSelectionCriteria, gaps map[string]string) float64 {
	if c.RegionalMinimum <= 0 {
		return 1
	}
	regional := 0
	for _, t := range tracks {
		if strings.EqualFold(t.Country, c.RegionCode) {
			regional++
		}
	}
	share := float64(regional) / float64(len(tracks))
	if share >= c.RegionalMinimum {
		return 1
	}
	gaps["regional"] = fmt.Sprintf(
		"regional content %.0f%% below required minimum %.0f%% (%s)",
		share*100, c.RegionalMinimum*100, c.RegionCode)
	return share
}

func genreShares(tracks []model.SelectedTrack) map[string]float64 {
	shares := make(map[string]float64)
	for _, t := range tracks {
		shares[strings.ToLower(t.Genre)] += 1 / float64(len(tracks))
	}
	return shares
}

func eraShares(tracks []model.SelectedTrack) map[string]float64 {
	shares := make(map[string]float64)
	for _, t := range tracks {
		shares[model.EraLabel(t.Year)] += 1 / float64(len(tracks))
	}
	return shares
}

func avgTempoDelta(tracks []model.SelectedTrack) float64 {
	if len(tracks) < 2 {
		return 0
	}
	var total float64
	for i := 1; i < len(tracks); i++ {
		total += math.Abs(tracks[i].TempoBPM - tracks[i-1].TempoBPM)
	}
	return total / float64(len(tracks)-1)
}
