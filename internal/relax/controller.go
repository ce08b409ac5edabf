package relax

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/skylark-radio/playlist-cli/internal/cost"
	"github.com/skylark-radio/playlist-cli/internal/decision"
	"github.com/skylark-radio/playlist-cli/internal/model"
	"github.com/skylark-radio/playlist-cli/internal/selection"
	"github.com/skylark-radio/playlist-cli/internal/validate"
)

// Selector runs one bounded selection conversation. Implemented by
// selection.Engine; faked in tests.
type Selector interface {
	Select(ctx context.Context, criteria model.TrackSelectionCriteria, exclude map[string]bool, maxCostUSD float64) (*selection.Result, error)
}

// Controller retries selection across the relaxation ladder until
// validation passes or the ladder is exhausted. The caller always
// gets a playlist back: when no level passes, the best-scoring
// attempt is returned with passes_validation=false.
type Controller struct {
	selector   Selector
	ladder     []Level
	thresholds validate.Thresholds
	logger     *decision.Logger
	ledger     *cost.Ledger
	maxLevels  int
}

// NewController builds a controller over the given selector. logger
// and ledger may be nil. maxLevels <= 0 means the whole ladder.
func NewController(sel Selector, ladder []Level, th validate.Thresholds, logger *decision.Logger, ledger *cost.Ledger, maxLevels int) *Controller {
	if len(ladder) == 0 {
		ladder = DefaultLadder()
	}
	if maxLevels <= 0 || maxLevels > len(ladder) {
		maxLevels = len(ladder)
	}
	return &Controller{
		selector:   sel,
		ladder:     ladder,
		thresholds: th,
		logger:     logger,
		ledger:     ledger,
		maxLevels:  maxLevels,
	}
}

// SelectWithRelaxation generates a playlist for spec, widening
// tolerances level by level. It returns the playlist together with
// the criteria snapshot of the accepted (or best) attempt.
func (c *Controller) SelectWithRelaxation(ctx context.Context, spec model.DaypartSpec) (*model.Playlist, model.TrackSelectionCriteria, error) {
	log := zap.L().With(zap.String("daypart", spec.ID()))
	start := time.Now()

	var (
		levelsTried  []string
		totalCost    float64
		best         *model.Playlist
		bestCriteria model.TrackSelectionCriteria
		bestScore    = -1.0
	)

	allocation := 0.0
	if c.ledger != nil {
		allocation = c.ledger.Allocation()
	}

	for i := 0; i < c.maxLevels; i++ {
		lvl := c.ladder[i]

		if ctx.Err() != nil {
			break
		}
		if c.ledger != nil && c.ledger.Mode() == cost.BudgetHard && allocation > 0 && totalCost >= allocation {
			log.Warn("relaxation stopped: slot allocation spent",
				zap.String("level", lvl.Name),
				zap.Float64("spent", totalCost),
				zap.Float64("allocation", allocation),
			)
			break
		}

		criteria := BuildCriteria(spec, lvl)
		levelsTried = append(levelsTried, lvl.Name)

		maxCost := 0.0
		if allocation > 0 {
			maxCost = allocation - totalCost
		}

		res, err := c.selector.Select(ctx, criteria, nil, maxCost)
		if err != nil {
			log.Warn("selection failed at level", zap.String("level", lvl.Name), zap.Error(err))
			c.logRecord(spec, decision.StageSelection, lvl, map[string]any{"error": err.Error()}, 0)
			continue
		}
		totalCost += res.CostUSD

		c.logRecord(spec, decision.StageSelection, lvl, map[string]any{
			"tracks":      len(res.Tracks),
			"tool_calls":  res.ToolCalls,
			"stop_reason": res.Stopped,
			"timed_out":   res.TimedOut,
			"selections":  rationaleSummary(res.Tracks),
		}, res.CostUSD)

		result := validate.Validate(res.Tracks, criteria, c.thresholds)
		score := result.ConstraintSatisfaction + result.FlowQuality

		c.logRecord(spec, decision.StageValidation, lvl, map[string]any{
			"constraint_satisfaction": result.ConstraintSatisfaction,
			"flow_quality":            result.FlowQuality,
			"energy_progression":      string(result.EnergyProgression),
			"gaps":                    len(result.GapAnalysis),
			"passes":                  result.PassesValidation,
		}, 0)

		c.logRecord(spec, decision.StageRelaxation, lvl, map[string]any{
			"tracks": len(res.Tracks),
			"score":  score,
			"passes": result.PassesValidation,
		}, 0)

		if score > bestScore {
			bestScore = score
			bestCriteria = criteria
			best = &model.Playlist{
				Daypart:    spec,
				Tracks:     res.Tracks,
				Validation: result,
			}
		}

		if result.PassesValidation {
			log.Info("validation passed",
				zap.String("level", lvl.Name),
				zap.Float64("constraint_satisfaction", result.ConstraintSatisfaction),
				zap.Float64("flow_quality", result.FlowQuality),
			)
			break
		}
	}

	if best == nil {
		// Every level errored out; still hand back an (empty) playlist
		// so the caller has one entry per daypart.
		criteria := BuildCriteria(spec, c.ladder[0])
		best = &model.Playlist{
			Daypart:    spec,
			Validation: validate.Validate(nil, criteria, c.thresholds),
		}
		bestCriteria = criteria
	}

	best.CostUSD = totalCost
	best.GenerationTime = time.Since(start)
	best.RelaxationLevels = levelsTried

	if !best.Validation.PassesValidation {
		log.Warn("relaxation ladder exhausted without passing",
			zap.Strings("levels", levelsTried),
			zap.Float64("best_score", bestScore),
		)
	}

	return best, bestCriteria, nil
}

// rationaleSummary compacts per-track selection reasoning for the
// audit log.
func rationaleSummary(tracks []model.SelectedTrack) []string {
	out := make([]string, 0, len(tracks))
	for _, t := range tracks {
		s := t.Title + " - " + t.Artist
		if t.Rationale != "" {
			s += ": " + t.Rationale
		}
		out = append(out, s)
	}
	return out
}

func (c *Controller) logRecord(spec model.DaypartSpec, stage decision.Stage, lvl Level, outcome map[string]any, costDelta float64) {
	if c.logger == nil {
		return
	}
	err := c.logger.Append(decision.Record{
		Daypart: spec.ID(),
		Stage:   stage,
		Inputs: map[string]any{
			"level":            lvl.Name,
			"tempo_tolerance":  lvl.TempoTolerance,
			"cross_genre":      lvl.CrossGenre,
			"regional_minimum": spec.RegionalMinimum,
		},
		Outcome:   outcome,
		CostDelta: costDelta,
	})
	if err != nil {
		zap.L().Warn("decision log append failed", zap.Error(err))
	}
}
