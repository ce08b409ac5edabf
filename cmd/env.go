package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/skylark-radio/playlist-cli/internal/cost"
	"github.com/skylark-radio/playlist-cli/internal/decision"
	"github.com/skylark-radio/playlist-cli/internal/model"
	"github.com/skylark-radio/playlist-cli/internal/orchestrator"
	"github.com/skylark-radio/playlist-cli/internal/padding"
	"github.com/skylark-radio/playlist-cli/internal/relax"
	"github.com/skylark-radio/playlist-cli/internal/schedule"
	"github.com/skylark-radio/playlist-cli/internal/selection"
	"github.com/skylark-radio/playlist-cli/internal/store"
	"github.com/skylark-radio/playlist-cli/internal/tools"
	"github.com/skylark-radio/playlist-cli/internal/validate"
	"github.com/skylark-radio/playlist-cli/pkg/catalog"
	"github.com/skylark-radio/playlist-cli/pkg/llm"
)

// generatorEnv holds all initialized clients and pipeline components
// needed by the generate/batch/serve commands.
type generatorEnv struct {
	Store        store.Store
	Orchestrator *orchestrator.Orchestrator
	Controller   *relax.Controller
	Padder       *padding.Padder
	Ledger       *cost.Ledger
	Decisions    *decision.Logger
}

// Close releases resources held by the generator environment.
func (ge *generatorEnv) Close() {
	if ge.Decisions != nil {
		_ = ge.Decisions.Close()
	}
	if ge.Store != nil {
		_ = ge.Store.Close()
	}
}

// initStore opens the configured store backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initGenerator sets up the store, catalog and LLM clients, the
// relaxation ladder, and the full generation pipeline sized for the
// given number of slots. Callers should defer env.Close().
func initGenerator(ctx context.Context, slots int) (*generatorEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	decisions, err := decision.Open(cfg.Decisions.Path)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	catalogClient := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.Key,
		catalog.WithRateLimit(cfg.Catalog.RatePerSecond),
		catalog.WithTimeout(time.Duration(cfg.Catalog.TimeoutSecs)*time.Second),
	)

	adapter := tools.New(catalogClient, tools.Config{
		CallTimeout: time.Duration(cfg.Catalog.CallTimeoutSec) * time.Second,
	})

	llmClient := llm.NewClient(cfg.Anthropic.Key)

	rates := cost.DefaultRates()
	for m, p := range cfg.Pricing.Anthropic {
		rates.Anthropic[m] = rates.Anthropic[m].WithTokenPrices(p.Input, p.Output)
	}
	if cfg.Pricing.Catalog.PerQuery > 0 {
		rates.Catalog.PerQuery = cfg.Pricing.Catalog.PerQuery
	}
	calc := cost.NewCalculator(rates)

	engine := selection.NewEngine(llmClient, adapter, calc, selection.Config{
		Model:               cfg.Anthropic.Model,
		MaxTokens:           cfg.Anthropic.MaxTokens,
		MaxIterations:       cfg.Conversation.MaxIterations,
		ConversationTimeout: time.Duration(cfg.Conversation.TimeoutSecs) * time.Second,
		EarlyStopWindow:     cfg.Conversation.EarlyStopWindow,
	})

	ladder := relax.DefaultLadder()
	if cfg.Relaxation.LadderPath != "" {
		ladder, err = relax.LoadLadder(cfg.Relaxation.LadderPath)
		if err != nil {
			_ = decisions.Close()
			_ = st.Close()
			return nil, err
		}
		zap.L().Info("relaxation ladder loaded",
			zap.String("path", cfg.Relaxation.LadderPath),
			zap.Int("levels", len(ladder)),
		)
	}

	thresholds := validate.Thresholds{
		ConstraintPass: cfg.Validation.ConstraintPass,
		FlowPass:       cfg.Validation.FlowPass,
		SmoothDelta:    cfg.Validation.SmoothDelta,
		ChoppyDelta:    cfg.Validation.ChoppyDelta,
		FlowScale:      cfg.Validation.FlowScale,
	}

	ledger := cost.NewLedger(
		cfg.Budget.TotalUSD,
		cost.BudgetMode(cfg.Budget.Mode),
		cost.AllocationStrategy(cfg.Budget.Allocation),
		slots,
	)

	controller := relax.NewController(engine, ladder, thresholds, decisions, ledger, cfg.Relaxation.MaxLevels)

	padder := padding.New(adapter, ladder, thresholds, decisions, padding.Config{
		MinFillRatio:    cfg.Padding.MinFillRatio,
		MaxAttempts:     cfg.Padding.MaxAttempts,
		StartLevel:      cfg.Padding.StartLevel,
		AvgTrackSeconds: cfg.Padding.AvgTrackSeconds,
	})

	orch := orchestrator.New(controller, padder, ledger, decisions, orchestrator.Config{
		Concurrency:          cfg.Batch.Concurrency,
		EstimatedSlotCostUSD: cfg.Budget.EstimatedSlotCostUSD,
	})

	return &generatorEnv{
		Store:        st,
		Orchestrator: orch,
		Controller:   controller,
		Padder:       padder,
		Ledger:       ledger,
		Decisions:    decisions,
	}, nil
}

// loadSchedule reads and parses a programming document.
func loadSchedule(path string) ([]model.DaypartSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read schedule %s", path)
	}
	return schedule.Parse(string(data))
}
