// Package orchestrator fans a parsed schedule out across concurrent
// per-daypart generation pipelines under one shared cost ledger.
package orchestrator

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/skylark-radio/playlist-cli/internal/cost"
	"github.com/skylark-radio/playlist-cli/internal/decision"
	"github.com/skylark-radio/playlist-cli/internal/model"
	"github.com/skylark-radio/playlist-cli/internal/padding"
)

// Generator produces one playlist for one daypart spec. Implemented
// by relax.Controller; faked in tests.
type Generator interface {
	SelectWithRelaxation(ctx context.Context, spec model.DaypartSpec) (*model.Playlist, model.TrackSelectionCriteria, error)
}

// Config bounds the batch run.
type Config struct {
	// Concurrency caps simultaneous pipelines. Default 4.
	Concurrency int
	// EstimatedSlotCostUSD is the up-front per-slot cost estimate used
	// for the hard-mode skip decision. Default 0.25.
	EstimatedSlotCostUSD float64
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.EstimatedSlotCostUSD <= 0 {
		c.EstimatedSlotCostUSD = 0.25
	}
	return c
}

// Orchestrator runs every daypart of a schedule, isolating per-slot
// failures so one bad daypart never aborts the batch.
type Orchestrator struct {
	gen    Generator
	padder *padding.Padder
	ledger *cost.Ledger
	logger *decision.Logger
	cfg    Config
}

// New creates an orchestrator. padder and logger may be nil; ledger
// must not be.
func New(gen Generator, padder *padding.Padder, ledger *cost.Ledger, logger *decision.Logger, cfg Config) *Orchestrator {
	return &Orchestrator{
		gen:    gen,
		padder: padder,
		ledger: ledger,
		logger: logger,
		cfg:    cfg.withDefaults(),
	}
}

// BatchResult is the outcome of one full schedule run.
type BatchResult struct {
	Playlists    []*model.Playlist
	TotalCostUSD float64
	Elapsed      time.Duration
	Skipped      int
	Failed       int
}

// Run generates one playlist per daypart. The returned slice always
// has one entry per input spec, in input order; skipped or failed
// slots carry an empty playlist flagged accordingly.
func (o *Orchestrator) Run(ctx context.Context, specs []model.DaypartSpec) (*BatchResult, error) {
	start := time.Now()
	out := make([]*model.Playlist, len(specs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)

	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			out[i] = o.runSlot(gctx, spec)
			// Per-slot failures are recorded on the playlist, never
			// propagated; returning an error would cancel siblings.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &BatchResult{
		Playlists: out,
		Elapsed:   time.Since(start),
	}
	for _, pl := range out {
		res.TotalCostUSD += pl.CostUSD
		if pl.Skipped {
			res.Skipped++
		} else if len(pl.Tracks) == 0 {
			res.Failed++
		}
	}

	zap.L().Info("batch complete",
		zap.Int("dayparts", len(specs)),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
		zap.Float64("total_cost_usd", res.TotalCostUSD),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

func (o *Orchestrator) runSlot(ctx context.Context, spec model.DaypartSpec) *model.Playlist {
	log := zap.L().With(zap.String("daypart", spec.ID()))

	// Pending slots stop once the global ceiling is reached; in-flight
	// slots are left to finish.
	if o.ledger.Exhausted() {
		spent, budget := o.ledger.Spent(), o.ledger.Budget()
		if o.ledger.Mode() == cost.BudgetHard {
			log.Warn("skipping daypart: global budget exhausted",
				zap.Float64("spent_usd", spent),
				zap.Float64("budget_usd", budget),
			)
			o.logExhausted(spec, spent, budget, "skipped")
			o.ledger.Skip()
			return &model.Playlist{Daypart: spec, Skipped: true}
		}
		log.Warn("global budget exhausted; proceeding in suggested mode",
			zap.Float64("spent_usd", spent),
			zap.Float64("budget_usd", budget),
		)
		o.logExhausted(spec, spent, budget, "advisory_overrun")
	}

	allocation := o.ledger.Allocation()
	estimate := o.cfg.EstimatedSlotCostUSD

	if estimate > allocation {
		switch o.ledger.Mode() {
		case cost.BudgetHard:
			berr := &cost.BudgetExceededError{
				Daypart:    spec.ID(),
				Estimated:  estimate,
				Allocation: allocation,
			}
			log.Warn("skipping daypart: estimated cost exceeds allocation",
				zap.Float64("estimated_usd", estimate),
				zap.Float64("allocation_usd", allocation),
			)
			o.logBudget(spec, estimate, allocation, "skipped", berr.Error())
			o.ledger.Skip()
			return &model.Playlist{Daypart: spec, Skipped: true}
		default:
			log.Warn("estimated cost exceeds suggested allocation; proceeding",
				zap.Float64("estimated_usd", estimate),
				zap.Float64("allocation_usd", allocation),
			)
			o.logBudget(spec, estimate, allocation, "advisory_overrun", "")
		}
	}

	pl, criteria, err := o.gen.SelectWithRelaxation(ctx, spec)
	if err != nil {
		log.Error("daypart generation failed", zap.Error(err))
		o.ledger.Skip()
		return &model.Playlist{Daypart: spec}
	}

	if o.padder != nil && len(pl.Tracks) > 0 {
		if perr := o.padder.Pad(ctx, pl, criteria, nil); perr != nil {
			log.Warn("padding failed; keeping unpadded playlist", zap.Error(perr))
		}
	}

	// Single debit per completed slot keeps the ledger consistent
	// under concurrency.
	o.ledger.Debit(pl.CostUSD)
	return pl
}

func (o *Orchestrator) logBudget(spec model.DaypartSpec, estimate, allocation float64, outcome, detail string) {
	if o.logger == nil {
		return
	}
	rec := decision.Record{
		Daypart: spec.ID(),
		Stage:   decision.StageBudget,
		Inputs: map[string]any{
			"estimated_usd":  estimate,
			"allocation_usd": allocation,
			"mode":           string(o.ledger.Mode()),
		},
		Outcome: map[string]any{"result": outcome},
	}
	if detail != "" {
		rec.Outcome["detail"] = detail
	}
	if err := o.logger.Append(rec); err != nil {
		zap.L().Warn("decision log append failed", zap.Error(err))
	}
}

func (o *Orchestrator) logExhausted(spec model.DaypartSpec, spent, budget float64, outcome string) {
	if o.logger == nil {
		return
	}
	rec := decision.Record{
		Daypart: spec.ID(),
		Stage:   decision.StageBudget,
		Inputs: map[string]any{
			"spent_usd":  spent,
			"budget_usd": budget,
			"mode":       string(o.ledger.Mode()),
		},
		Outcome: map[string]any{"result": outcome},
	}
	if err := o.logger.Append(rec); err != nil {
		zap.L().Warn("decision log append failed", zap.Error(err))
	}
}

var weekdayOrder = map[string]int{
	"monday": 0, "tuesday": 1, "wednesday": 2, "thursday": 3,
	"friday": 4, "saturday": 5, "sunday": 6,
}

// SortSpecs orders dayparts by weekday then start time so batch output
// is stable regardless of document ordering.
func SortSpecs(specs []model.DaypartSpec) {
	sort.SliceStable(specs, func(i, j int) bool {
		wi := weekdayOrder[strings.ToLower(specs[i].Weekday)]
		wj := weekdayOrder[strings.ToLower(specs[j].Weekday)]
		if wi != wj {
			return wi < wj
		}
		return specs[i].StartTime < specs[j].StartTime
	})
}
