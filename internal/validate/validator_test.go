package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylark-radio/playlist-cli/internal/model"
)

func track(id string, bpm float64, genre string, year int, country string) model.SelectedTrack {
	return model.SelectedTrack{
		TrackID:  id,
		TempoBPM: bpm,
		Genre:    genre,
		Year:     year,
		Country:  country,
	}
}

func passingCriteria() model.TrackSelectionCriteria {
	return model.TrackSelectionCriteria{
		Tempo: model.TempoRange{Min: 90, Max: 130},
		GenreMix: map[string]model.Band{
			"Alternative": {Min: 0.25, Max: 0.75},
			"Indie Rock":  {Min: 0.25, Max: 0.75},
		},
		EraDistribution: map[string]model.Band{
			"1990s": {Min: 0.25, Max: 0.75},
			"2010s": {Min: 0.25, Max: 0.75},
		},
		RegionalMinimum: 0.25,
		RegionCode:      "AU",
	}
}

func TestValidateEmptyTracks(t *testing.T) {
	t.Parallel()

	result := Validate(nil, passingCriteria(), DefaultThresholds())

	assert.False(t, result.PassesValidation)
	assert.Equal(t, model.ProgressionSmooth, result.EnergyProgression)
	assert.Contains(t, result.GapAnalysis, "tracks")
}

func TestValidatePassingPlaylist(t *testing.T) {
	t.Parallel()

	tracks := []model.SelectedTrack{
		track("t1", 100, "Alternative", 1994, "AU"),
		track("t2", 105, "Indie Rock", 2015, "US"),
		track("t3", 110, "Alternative", 2016, "AU"),
		track("t4", 108, "Indie Rock", 1997, "GB"),
	}

	result := Validate(tracks, passingCriteria(), DefaultThresholds())

	assert.InDelta(t, 1.0, result.TempoSatisfaction, 0.001)
	assert.InDelta(t, 1.0, result.GenreSatisfaction, 0.001)
	assert.InDelta(t, 1.0, result.EraSatisfaction, 0.001)
	assert.InDelta(t, 1.0, result.RegionalSatisfaction, 0.001)
	assert.InDelta(t, 1.0, result.ConstraintSatisfaction, 0.001)

	// Deltas 5, 5, 2 average to 4: smooth.
	assert.InDelta(t, 4.0, result.AvgTempoDelta, 0.001)
	assert.InDelta(t, 1-4.0/50, result.FlowQuality, 0.001)
	assert.Equal(t, model.ProgressionSmooth, result.EnergyProgression)

	assert.True(t, result.PassesValidation)
	assert.Empty(t, result.GapAnalysis)
}

func TestValidateConstraintScoreIsMeanOfFour(t *testing.T) {
	t.Parallel()

	// Half the tracks sit outside the tempo window and the 1990s era
	// band goes unserved, dragging the mean below the pass line.
	criteria := passingCriteria()
	criteria.Tempo = model.TempoRange{Min: 100, Max: 105}

	tracks := []model.SelectedTrack{
		track("t1", 100, "Alternative", 2015, "AU"),
		track("t2", 100, "Indie Rock", 2015, "AU"),
		track("t3", 140, "Alternative", 2016, "AU"),
		track("t4", 140, "Indie Rock", 2016, "AU"),
	}

	result := Validate(tracks, criteria, DefaultThresholds())

	assert.InDelta(t, 0.5, result.TempoSatisfaction, 0.001)
	assert.InDelta(t, 0.0, result.EraSatisfaction, 0.001)
	expected := (0.5 + 1.0 + 0.0 + 1.0) / 4
	assert.InDelta(t, expected, result.ConstraintSatisfaction, 0.001)
	assert.False(t, result.PassesValidation)
	assert.Contains(t, result.GapAnalysis, "tempo")
	assert.Contains(t, result.GapAnalysis, "era:1990s")
}

func TestValidateSingleGenreOverfillsItsBand(t *testing.T) {
	t.Parallel()

	// Bands score in or out: a genre filling the whole playlist
	// overshoots its own maximum and fails the band, even though every
	// track matches the genre. With one band missed the mean lands at
	// 0.75, below the pass line.
	criteria := model.TrackSelectionCriteria{
		Tempo: model.TempoRange{Min: 90, Max: 120},
		GenreMix: map[string]model.Band{
			"Alt": {Min: 0.20, Max: 0.50},
		},
		RegionalMinimum: 0.30,
		RegionCode:      "AU",
	}

	tracks := []model.SelectedTrack{
		track("t1", 100, "Alt", 2015, "AU"),
		track("t2", 104, "Alt", 2016, "AU"),
		track("t3", 108, "Alt", 2017, "US"),
	}

	result := Validate(tracks, criteria, DefaultThresholds())

	assert.InDelta(t, 1.0, result.TempoSatisfaction, 0.001)
	assert.InDelta(t, 0.0, result.GenreSatisfaction, 0.001)
	assert.InDelta(t, 1.0, result.RegionalSatisfaction, 0.001)
	assert.InDelta(t, 0.75, result.ConstraintSatisfaction, 0.001)
	assert.False(t, result.PassesValidation)
	assert.Contains(t, result.GapAnalysis, "genre:Alt")
}

func TestValidateRegionalBelowMinimum(t *testing.T) {
	t.Parallel()

	criteria := passingCriteria()
	criteria.RegionalMinimum = 0.50

	tracks := []model.SelectedTrack{
		track("t1", 100, "Alternative", 1994, "AU"),
		track("t2", 102, "Indie Rock", 2015, "US"),
		track("t3", 104, "Alternative", 2016, "US"),
		track("t4", 106, "Indie Rock", 1997, "US"),
	}

	result := Validate(tracks, criteria, DefaultThresholds())

	// One of four tracks is regional: the score is the observed share.
	assert.InDelta(t, 0.25, result.RegionalSatisfaction, 0.001)
	assert.Contains(t, result.GapAnalysis, "regional")
	assert.False(t, result.PassesValidation)
}

func TestValidateRegionalCaseInsensitive(t *testing.T) {
	t.Parallel()

	criteria := passingCriteria()
	criteria.RegionalMinimum = 0.50

	tracks := []model.SelectedTrack{
		track("t1", 100, "Alternative", 1994, "au"),
		track("t2", 102, "Indie Rock", 2015, "AU"),
		track("t3", 104, "Alternative", 2016, "US"),
		track("t4", 106, "Indie Rock", 1997, "US"),
	}

	result := Validate(tracks, criteria, DefaultThresholds())
	assert.InDelta(t, 1.0, result.RegionalSatisfaction, 0.001)
}

func TestValidateFlowFloorsAtZero(t *testing.T) {
	t.Parallel()

	tracks := []model.SelectedTrack{
		track("t1", 60, "Alternative", 1994, "AU"),
		track("t2", 160, "Indie Rock", 2015, "AU"),
		track("t3", 60, "Alternative", 2016, "AU"),
	}

	result := Validate(tracks, passingCriteria(), DefaultThresholds())

	assert.InDelta(t, 100, result.AvgTempoDelta, 0.001)
	assert.Zero(t, result.FlowQuality)
	assert.Equal(t, model.ProgressionChoppy, result.EnergyProgression)
	assert.Contains(t, result.GapAnalysis, "flow")
	assert.False(t, result.PassesValidation)
}

func TestValidateFlowZeroExactlyAtScaleDelta(t *testing.T) {
	t.Parallel()

	// An average delta equal to the flow scale lands on zero exactly,
	// not just past the floor.
	tracks := []model.SelectedTrack{
		track("t1", 100, "Alternative", 2015, "AU"),
		track("t2", 150, "Indie Rock", 2016, "AU"),
	}
	criteria := model.TrackSelectionCriteria{UnconstrainedTempo: true, UnconstrainedGenre: true}

	result := Validate(tracks, criteria, DefaultThresholds())

	assert.InDelta(t, 50, result.AvgTempoDelta, 0.001)
	assert.InDelta(t, 0.0, result.FlowQuality, 0.0001)
	assert.Equal(t, model.ProgressionChoppy, result.EnergyProgression)
	assert.False(t, result.PassesValidation)
	assert.Contains(t, result.GapAnalysis, "flow")
}

func TestValidateEnergyProgressionBoundaries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		bpms []float64
		want model.EnergyProgression
	}{
		{"smooth below ten", []float64{100, 105}, model.ProgressionSmooth},
		{"moderate at ten", []float64{100, 110}, model.ProgressionModerate},
		{"moderate at twenty", []float64{100, 120}, model.ProgressionModerate},
		{"choppy above twenty", []float64{100, 121}, model.ProgressionChoppy},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tracks := make([]model.SelectedTrack, len(tt.bpms))
			for i, bpm := range tt.bpms {
				tracks[i] = track("t", bpm, "Alternative", 2015, "AU")
			}

			criteria := model.TrackSelectionCriteria{UnconstrainedTempo: true, UnconstrainedGenre: true}
			result := Validate(tracks, criteria, DefaultThresholds())
			assert.Equal(t, tt.want, result.EnergyProgression)
		})
	}
}

func TestValidateUnconstrainedDimensionsScoreFull(t *testing.T) {
	t.Parallel()

	criteria := model.TrackSelectionCriteria{
		UnconstrainedTempo: true,
		UnconstrainedGenre: true,
		GenreMix: map[string]model.Band{
			"Alternative": {Min: 0.90, Max: 1.0},
		},
	}

	tracks := []model.SelectedTrack{
		track("t1", 60, "Jazz", 1964, "US"),
		track("t2", 62, "Blues", 1955, "US"),
	}

	result := Validate(tracks, criteria, DefaultThresholds())

	assert.InDelta(t, 1.0, result.TempoSatisfaction, 0.001)
	assert.InDelta(t, 1.0, result.GenreSatisfaction, 0.001)
	assert.InDelta(t, 1.0, result.EraSatisfaction, 0.001)
	assert.InDelta(t, 1.0, result.RegionalSatisfaction, 0.001)
	assert.True(t, result.PassesValidation)
}

func TestValidateGapAnalysisClearedOnPass(t *testing.T) {
	t.Parallel()

	// One genre band of three missed keeps the constraint mean at
	// roughly 0.92, above the 0.80 pass line, so the gaps are wiped.
	criteria := passingCriteria()
	criteria.GenreMix["Jazz"] = model.Band{Min: 0.10, Max: 0.20}

	tracks := []model.SelectedTrack{
		track("t1", 100, "Alternative", 1994, "AU"),
		track("t2", 102, "Indie Rock", 2015, "AU"),
		track("t3", 104, "Alternative", 2016, "AU"),
		track("t4", 106, "Indie Rock", 1997, "AU"),
	}

	result := Validate(tracks, criteria, DefaultThresholds())

	require.True(t, result.PassesValidation)
	assert.Empty(t, result.GapAnalysis)
}

func TestValidateDeterministic(t *testing.T) {
	t.Parallel()

	criteria := passingCriteria()
	tracks := []model.SelectedTrack{
		track("t1", 100, "Alternative", 1994, "AU"),
		track("t2", 118, "Indie Rock", 2015, "US"),
		track("t3", 95, "Jazz", 2016, "AU"),
	}

	first := Validate(tracks, criteria, DefaultThresholds())
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Validate(tracks, criteria, DefaultThresholds()))
	}
}

func TestValidateSingleTrackHasZeroDelta(t *testing.T) {
	t.Parallel()

	tracks := []model.SelectedTrack{track("t1", 100, "Alternative", 1994, "AU")}
	criteria := model.TrackSelectionCriteria{UnconstrainedTempo: true, UnconstrainedGenre: true}

	result := Validate(tracks, criteria, DefaultThresholds())
	assert.Zero(t, result.AvgTempoDelta)
	assert.InDelta(t, 1.0, result.FlowQuality, 0.001)
}
