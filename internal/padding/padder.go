// Package padding tops up under-filled playlists with catalog filler
// tracks without touching hard constraints.
package padding

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/skylark-radio/playlist-cli/internal/decision"
	"github.com/skylark-radio/playlist-cli/internal/model"
	"github.com/skylark-radio/playlist-cli/internal/relax"
	"github.com/skylark-radio/playlist-cli/internal/tools"
	"github.com/skylark-radio/playlist-cli/internal/validate"
	"github.com/skylark-radio/playlist-cli/pkg/catalog"
)

// Config controls padding behavior.
type Config struct {
	// MinFillRatio is the minimum acceptable total-duration /
	// target-duration ratio before padding triggers. Default 0.90.
	MinFillRatio float64 `mapstructure:"min_fill_ratio"`
	// MaxAttempts caps relaxation attempts while padding. Default 5.
	MaxAttempts int `mapstructure:"max_attempts"`
	// StartLevel is the ladder index padding starts from; padding is
	// explicitly best-effort, so it begins looser than selection did.
	// Default 2.
	StartLevel int `mapstructure:"start_level"`
	// AvgTrackSeconds is the heuristic used to estimate how many
	// filler tracks a shortfall needs. Default 210.
	AvgTrackSeconds int `mapstructure:"avg_track_seconds"`
	// QueryLimit is the catalog page size per padding query.
	QueryLimit int `mapstructure:"query_limit"`
}

func (c Config) withDefaults() Config {
	if c.MinFillRatio <= 0 {
		c.MinFillRatio = 0.90
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.StartLevel <= 0 {
		c.StartLevel = 2
	}
	if c.AvgTrackSeconds <= 0 {
		c.AvgTrackSeconds = 210
	}
	if c.QueryLimit <= 0 {
		c.QueryLimit = 50
	}
	return c
}

// Padder repairs playlist duration shortfalls through the catalog
// tool adapter, walking the relaxation ladder from a loose level.
type Padder struct {
	adapter    *tools.Adapter
	ladder     []relax.Level
	thresholds validate.Thresholds
	logger     *decision.Logger
	cfg        Config
}

// New creates a padder. logger may be nil.
func New(adapter *tools.Adapter, ladder []relax.Level, th validate.Thresholds, logger *decision.Logger, cfg Config) *Padder {
	if len(ladder) == 0 {
		ladder = relax.DefaultLadder()
	}
	return &Padder{
		adapter:    adapter,
		ladder:     ladder,
		thresholds: th,
		logger:     logger,
		cfg:        cfg.withDefaults(),
	}
}

// Pad appends filler tracks until the minimum fill ratio is met or
// the attempt ceiling is reached, then recomputes validation with the
// padded tracks counted as full playlist members. exclude lists track
// ids that must not be reused beyond the playlist's own.
func (p *Padder) Pad(ctx context.Context, pl *model.Playlist, criteria model.TrackSelectionCriteria, exclude map[string]bool) error {
	spec := pl.Daypart
	log := zap.L().With(zap.String("daypart", spec.ID()))

	targetSeconds := spec.TargetDurationMinutes * 60
	if targetSeconds == 0 {
		return nil
	}
	required := int(float64(targetSeconds) * p.cfg.MinFillRatio)
	if pl.TotalDurationSeconds() >= required {
		return nil
	}

	used := pl.TrackIDSet()
	for id := range exclude {
		used[id] = true
	}

	shortfall := required - pl.TotalDurationSeconds()
	estTracks := (shortfall + p.cfg.AvgTrackSeconds - 1) / p.cfg.AvgTrackSeconds
	log.Info("padding playlist",
		zap.Int("shortfall_seconds", shortfall),
		zap.Int("estimated_tracks", estTracks),
	)

	added := 0
	level := p.cfg.StartLevel
	if level >= len(p.ladder) {
		level = len(p.ladder) - 1
	}

	for attempt := 0; attempt < p.cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			break
		}
		if pl.TotalDurationSeconds() >= required {
			break
		}

		lvl := p.ladder[level]
		padCriteria := relax.BuildCriteria(spec, lvl)

		tracks := p.query(ctx, padCriteria)
		for _, t := range tracks {
			if used[t.ID] {
				continue
			}
			if !padCriteria.UnconstrainedTempo && !padCriteria.Tempo.Contains(t.TempoBPM) {
				continue
			}
			used[t.ID] = true
			pl.Append(model.SelectedTrack{
				TrackID:         t.ID,
				Title:           t.Title,
				Artist:          t.Artist,
				Album:           t.Album,
				TempoBPM:        t.TempoBPM,
				Genre:           t.Genre,
				Year:            t.Year,
				Country:         t.Country,
				DurationSeconds: t.DurationSeconds,
				Rationale:       fmt.Sprintf("duration fill at %s", lvl.Name),
			})
			added++
			if pl.TotalDurationSeconds() >= required {
				break
			}
		}

		p.logRecord(spec, lvl.Name, attempt, added, pl.TotalDurationSeconds(), required)

		if level < len(p.ladder)-1 {
			level++
		}
	}

	if pl.TotalDurationSeconds() < required {
		log.Warn("padding ceiling exhausted; playlist remains under-filled",
			zap.Int("total_seconds", pl.TotalDurationSeconds()),
			zap.Int("required_seconds", required),
			zap.Int("attempts", p.cfg.MaxAttempts),
		)
	}

	if added > 0 {
		// Padding tracks count as full members for validation.
		pl.Validation = validate.Validate(pl.Tracks, criteria, p.thresholds)
	}
	return nil
}

// query fetches filler candidates via the tool adapter: by genre when
// the criteria still carry genre bands, newly-added tracks otherwise.
func (p *Padder) query(ctx context.Context, c model.TrackSelectionCriteria) []catalog.Track {
	var (
		out     any
		toolErr *tools.Error
	)

	if !c.UnconstrainedGenre && len(c.GenreMix) > 0 {
		args, _ := json.Marshal(map[string]any{
			"genres": c.Genres(),
			"limit":  p.cfg.QueryLimit,
		})
		out, toolErr = p.adapter.Execute(ctx, tools.OpSearchByGenre, args)
	} else {
		args, _ := json.Marshal(map[string]any{"limit": p.cfg.QueryLimit})
		out, toolErr = p.adapter.Execute(ctx, tools.OpListNewTracks, args)
	}

	if toolErr != nil {
		zap.L().Warn("padding query failed",
			zap.String("code", toolErr.Code),
			zap.String("message", toolErr.Message),
		)
		return nil
	}
	tracks, _ := out.([]catalog.Track)
	return tracks
}

func (p *Padder) logRecord(spec model.DaypartSpec, level string, attempt, added, total, required int) {
	if p.logger == nil {
		return
	}
	err := p.logger.Append(decision.Record{
		Daypart: spec.ID(),
		Stage:   decision.StagePadding,
		Inputs: map[string]any{
			"level":   level,
			"attempt": attempt,
		},
		Outcome: map[string]any{
			"tracks_added":     added,
			"total_seconds":    total,
			"required_seconds": required,
		},
	})
	if err != nil {
		zap.L().Warn("decision log append failed", zap.Error(err))
	}
}
