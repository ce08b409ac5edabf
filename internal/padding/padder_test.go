package padding

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylark-radio/playlist-cli/internal/model"
	"github.com/skylark-radio/playlist-cli/internal/relax"
	"github.com/skylark-radio/playlist-cli/internal/resilience"
	"github.com/skylark-radio/playlist-cli/internal/tools"
	"github.com/skylark-radio/playlist-cli/internal/validate"
	"github.com/skylark-radio/playlist-cli/pkg/catalog"
)

// poolCatalog serves a fixed filler pool from every search operation
// and counts calls per method.
type poolCatalog struct {
	pool          []catalog.Track
	genreCalls    int
	recentCalls   int
	genresQueried [][]string
}

func (p *poolCatalog) Search(context.Context, string, int) ([]catalog.Track, error) {
	return p.pool, nil
}

func (p *poolCatalog) SearchByGenre(_ context.Context, genres []string, _ int) ([]catalog.Track, error) {
	p.genreCalls++
	p.genresQueried = append(p.genresQueried, genres)
	return p.pool, nil
}

func (p *poolCatalog) ListGenres(context.Context) ([]catalog.Genre, error) {
	return nil, nil
}

func (p *poolCatalog) ListNewlyAdded(context.Context, int, string) ([]catalog.Track, error) {
	p.recentCalls++
	return p.pool, nil
}

func (p *poolCatalog) BrowseArtists(context.Context, string, int) ([]catalog.Artist, error) {
	return nil, nil
}

func (p *poolCatalog) ArtistTracks(context.Context, string, int) ([]catalog.Track, error) {
	return p.pool, nil
}

func fillerTrack(id string, bpm float64, seconds int) catalog.Track {
	return catalog.Track{
		ID:              id,
		Title:           "Filler " + id,
		Artist:          "Artist",
		TempoBPM:        bpm,
		Genre:           "Alternative",
		Year:            2015,
		Country:         "AU",
		DurationSeconds: seconds,
	}
}

func newTestPadder(cat catalog.Client, cfg Config) *Padder {
	adapter := tools.New(cat, tools.Config{
		CallTimeout: time.Second,
		Retry:       resilience.RetryConfig{MaxAttempts: 1},
	})
	return New(adapter, relax.DefaultLadder(), validate.DefaultThresholds(), nil, cfg)
}

// shortPlaylist is 30 minutes of tracks against a 60-minute target.
func shortPlaylist() *model.Playlist {
	pl := &model.Playlist{
		Daypart: model.DaypartSpec{
			Name:    "Evening",
			Weekday: "Thursday",
			TempoProgression: []model.TempoSegment{
				{Start: "18:00", End: "19:00", Tempo: model.TempoRange{Min: 100, Max: 120}},
			},
			GenreMix: map[string]model.Band{
				"Alternative": {Min: 0.10, Max: 1.0},
			},
			MinTracks:             5,
			MaxTracks:             20,
			TargetDurationMinutes: 60,
		},
	}
	pl.Append(
		model.SelectedTrack{TrackID: "s1", TempoBPM: 110, Genre: "Alternative", Year: 2015, Country: "AU", DurationSeconds: 900},
		model.SelectedTrack{TrackID: "s2", TempoBPM: 112, Genre: "Alternative", Year: 2016, Country: "AU", DurationSeconds: 900},
	)
	return pl
}

func TestPadSkipsFilledPlaylist(t *testing.T) {
	cat := &poolCatalog{pool: []catalog.Track{fillerTrack("f1", 110, 200)}}
	p := newTestPadder(cat, Config{})

	pl := shortPlaylist()
	pl.Append(model.SelectedTrack{TrackID: "s3", TempoBPM: 111, DurationSeconds: 1500})
	before := pl.Validation

	require.NoError(t, p.Pad(context.Background(), pl, model.TrackSelectionCriteria{}, nil))

	assert.Len(t, pl.Tracks, 3)
	assert.Zero(t, cat.genreCalls)
	assert.Zero(t, cat.recentCalls)
	assert.Equal(t, before, pl.Validation, "validation is untouched when nothing was added")
}

func TestPadFillsToMinimumRatio(t *testing.T) {
	// 1800s present, 3240s required (0.90 of 3600): three 500-second
	// fillers close the gap.
	cat := &poolCatalog{pool: []catalog.Track{
		fillerTrack("f1", 108, 500),
		fillerTrack("f2", 112, 500),
		fillerTrack("f3", 115, 500),
		fillerTrack("f4", 118, 500),
	}}
	p := newTestPadder(cat, Config{})

	pl := shortPlaylist()
	criteria := relax.BuildCriteria(pl.Daypart, relax.DefaultLadder()[0])
	require.NoError(t, p.Pad(context.Background(), pl, criteria, nil))

	assert.GreaterOrEqual(t, pl.TotalDurationSeconds(), 3240)
	require.Len(t, pl.Tracks, 5)
	assert.Equal(t, "f1", pl.Tracks[2].TrackID)
	assert.Equal(t, 3, pl.Tracks[2].Position)
	assert.Contains(t, pl.Tracks[2].Rationale, "duration fill at")
	// The fourth filler was never needed.
	assert.NotContains(t, pl.TrackIDSet(), "f4")
}

func TestPadQueriesByGenreWhileBandsRemain(t *testing.T) {
	cat := &poolCatalog{pool: []catalog.Track{
		fillerTrack("f1", 108, 2000),
	}}
	p := newTestPadder(cat, Config{})

	pl := shortPlaylist()
	criteria := relax.BuildCriteria(pl.Daypart, relax.DefaultLadder()[0])
	require.NoError(t, p.Pad(context.Background(), pl, criteria, nil))

	assert.GreaterOrEqual(t, cat.genreCalls, 1)
	require.NotEmpty(t, cat.genresQueried)
	assert.Contains(t, cat.genresQueried[0], "Alternative")
}

func TestPadFallsBackToRecentTracksWithoutGenres(t *testing.T) {
	cat := &poolCatalog{pool: []catalog.Track{fillerTrack("f1", 108, 2000)}}
	p := newTestPadder(cat, Config{StartLevel: 5})

	pl := shortPlaylist()
	pl.Daypart.GenreMix = nil

	criteria := relax.BuildCriteria(pl.Daypart, relax.DefaultLadder()[5])
	require.NoError(t, p.Pad(context.Background(), pl, criteria, nil))

	assert.GreaterOrEqual(t, cat.recentCalls, 1)
	assert.Zero(t, cat.genreCalls)
}

func TestPadDeduplicatesAgainstPlaylistAndExclusions(t *testing.T) {
	cat := &poolCatalog{pool: []catalog.Track{
		fillerTrack("s1", 110, 500),  // already in the playlist
		fillerTrack("x1", 110, 500),  // excluded by the caller
		fillerTrack("f1", 110, 2000), // usable
	}}
	p := newTestPadder(cat, Config{})

	pl := shortPlaylist()
	criteria := relax.BuildCriteria(pl.Daypart, relax.DefaultLadder()[0])
	require.NoError(t, p.Pad(context.Background(), pl, criteria, map[string]bool{"x1": true}))

	ids := pl.TrackIDSet()
	assert.NotContains(t, ids, "x1")
	assert.Contains(t, ids, "f1")
	assert.Len(t, pl.Tracks, 3)
}

func TestPadFiltersTempoOutliers(t *testing.T) {
	// Start level 2 widens the window to 90-130; the 190 BPM filler
	// never qualifies.
	cat := &poolCatalog{pool: []catalog.Track{
		fillerTrack("fast", 190, 500),
		fillerTrack("f1", 110, 2000),
	}}
	p := newTestPadder(cat, Config{})

	pl := shortPlaylist()
	criteria := relax.BuildCriteria(pl.Daypart, relax.DefaultLadder()[0])
	require.NoError(t, p.Pad(context.Background(), pl, criteria, nil))

	assert.NotContains(t, pl.TrackIDSet(), "fast")
	assert.Contains(t, pl.TrackIDSet(), "f1")
}

func TestPadStopsAfterAttemptCeiling(t *testing.T) {
	// An empty pool can never close the gap; the padder must give up
	// after MaxAttempts queries and leave the playlist under-filled.
	cat := &poolCatalog{}
	p := newTestPadder(cat, Config{MaxAttempts: 3})

	pl := shortPlaylist()
	criteria := relax.BuildCriteria(pl.Daypart, relax.DefaultLadder()[0])
	require.NoError(t, p.Pad(context.Background(), pl, criteria, nil))

	assert.Len(t, pl.Tracks, 2)
	assert.Equal(t, 3, cat.genreCalls)
}

func TestPadRecomputesValidation(t *testing.T) {
	cat := &poolCatalog{pool: []catalog.Track{fillerTrack("f1", 110, 2000)}}
	p := newTestPadder(cat, Config{})

	pl := shortPlaylist()
	criteria := relax.BuildCriteria(pl.Daypart, relax.DefaultLadder()[0])
	require.NoError(t, p.Pad(context.Background(), pl, criteria, nil))

	// Three smooth in-band regional tracks pass cleanly, and the stored
	// result reflects the padded list.
	assert.True(t, pl.Validation.PassesValidation)
	assert.InDelta(t, 1.0, pl.Validation.TempoSatisfaction, 0.001)
}

func TestPadIgnoresZeroTarget(t *testing.T) {
	cat := &poolCatalog{pool: []catalog.Track{fillerTrack("f1", 110, 500)}}
	p := newTestPadder(cat, Config{})

	pl := &model.Playlist{Daypart: model.DaypartSpec{Name: "Untimed", Weekday: "Monday"}}
	require.NoError(t, p.Pad(context.Background(), pl, model.TrackSelectionCriteria{}, nil))
	assert.Empty(t, pl.Tracks)
}
