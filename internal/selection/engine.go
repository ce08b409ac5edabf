// Package selection runs the bounded tool-calling conversation that
// picks catalog tracks for one criteria snapshot.
package selection

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/skylark-radio/playlist-cli/internal/cost"
	"github.com/skylark-radio/playlist-cli/internal/model"
	"github.com/skylark-radio/playlist-cli/internal/tools"
	"github.com/skylark-radio/playlist-cli/pkg/catalog"
	"github.com/skylark-radio/playlist-cli/pkg/llm"
)

// Stop reasons recorded on a Result.
const (
	StopFinal        = "final"
	StopIterations   = "iterations"
	StopTimeout      = "timeout"
	StopEarly        = "early_stop"
	StopBudget       = "budget"
	StopParseFailure = "parse_failure"
)

// Config bounds the conversation loop.
type Config struct {
	Model     string
	MaxTokens int64
	// MaxIterations caps assistant turns. Default 15.
	MaxIterations int
	// ConversationTimeout bounds the whole conversation. Default 120s.
	ConversationTimeout time.Duration
	// EarlyStopWindow stops the loop after this many consecutive tool
	// calls with no net-new candidate tracks. Default 3.
	EarlyStopWindow int
}

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 15
	}
	if c.ConversationTimeout <= 0 {
		c.ConversationTimeout = 120 * time.Second
	}
	if c.EarlyStopWindow <= 0 {
		c.EarlyStopWindow = 3
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 4096
	}
	return c
}

// Result is the outcome of one selection conversation.
type Result struct {
	Tracks     []model.SelectedTrack
	Transcript []llm.Message
	CostUSD    float64
	ToolCalls  int
	Usage      llm.TokenUsage
	TimedOut   bool
	Stopped    string
}

// Engine drives the LLM through the catalog tools until it produces a
// final structured track list or a budget runs out. A timed-out or
// over-budget conversation yields a best-effort partial result, never
// a hard failure.
type Engine struct {
	llm     llm.Client
	adapter *tools.Adapter
	calc    *cost.Calculator
	cfg     Config
}

// NewEngine creates a selection engine.
func NewEngine(client llm.Client, adapter *tools.Adapter, calc *cost.Calculator, cfg Config) *Engine {
	return &Engine{
		llm:     client,
		adapter: adapter,
		calc:    calc,
		cfg:     cfg.withDefaults(),
	}
}

// Select runs the conversation for one criteria snapshot.
// maxCostUSD <= 0 disables the per-conversation cost ceiling.
func (e *Engine) Select(ctx context.Context, criteria model.TrackSelectionCriteria, exclude map[string]bool, maxCostUSD float64) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.ConversationTimeout)
	defer cancel()

	log := zap.L().With(zap.String("level", criteria.Level))

	res := &Result{}
	messages := []llm.Message{
		llm.TextMessage("user", buildUserPrompt(criteria, exclude)),
	}
	defs := e.adapter.Definitions()

	// Candidate pool assembled from tool results, insertion-ordered,
	// used for best-effort assembly on timeout or early stop.
	seen := make(map[string]bool)
	var candidates []catalog.Track
	var recentGains []int

	reprompted := false

	for iter := 0; iter < e.cfg.MaxIterations; iter++ {
		resp, err := e.llm.CreateMessage(ctx, llm.MessageRequest{
			Model:     e.cfg.Model,
			MaxTokens: e.cfg.MaxTokens,
			System:    systemPrompt,
			Messages:  messages,
			Tools:     defs,
		})
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				res.TimedOut = true
				res.Stopped = StopTimeout
				log.Warn("conversation timed out; returning partial selection",
					zap.Int("candidates", len(candidates)))
				e.assembleFromCandidates(res, criteria, exclude, candidates)
				res.Transcript = messages
				return res, nil
			}
			res.Transcript = messages
			return res, err
		}

		res.Usage.Add(resp.Usage)
		res.CostUSD = e.calc.Claude(e.cfg.Model, res.Usage) + e.calc.CatalogQueries(res.ToolCalls)

		messages = append(messages, llm.Message{Role: "assistant", Blocks: resp.Blocks})

		if maxCostUSD > 0 && res.CostUSD >= maxCostUSD {
			res.Stopped = StopBudget
			log.Warn("conversation cost ceiling reached",
				zap.Float64("cost_usd", res.CostUSD),
				zap.Float64("ceiling_usd", maxCostUSD))
			e.assembleFromCandidates(res, criteria, exclude, candidates)
			res.Transcript = messages
			return res, nil
		}

		uses := resp.ToolUses()
		if resp.StopReason != "tool_use" || len(uses) == 0 {
			tracks, perr := parseFinalSelection(resp.Text())
			if perr != nil {
				if !reprompted {
					reprompted = true
					log.Warn("final response failed structural parsing; re-prompting once", zap.Error(perr))
					messages = append(messages, llm.TextMessage("user", repromptText))
					continue
				}
				res.Stopped = StopParseFailure
				log.Warn("re-prompt also failed structural parsing; assembling from candidates", zap.Error(perr))
				e.assembleFromCandidates(res, criteria, exclude, candidates)
				res.Transcript = messages
				return res, nil
			}
			res.Tracks = filterAndNumber(tracks, exclude)
			res.Stopped = StopFinal
			res.Transcript = messages
			return res, nil
		}

		// Execute the requested tools and feed results back.
		var resultBlocks []llm.Block
		for _, use := range uses {
			gained := 0
			out, toolErr := e.adapter.Execute(ctx, use.ToolName, use.ToolInput)
			res.ToolCalls++

			var content []byte
			isErr := false
			if toolErr != nil {
				content, _ = json.Marshal(toolErr)
				isErr = true
			} else {
				if ts, ok := out.([]catalog.Track); ok {
					for _, t := range ts {
						if !seen[t.ID] && !exclude[t.ID] {
							seen[t.ID] = true
							candidates = append(candidates, t)
							gained++
						}
					}
				}
				content, _ = json.Marshal(out)
			}

			resultBlocks = append(resultBlocks, llm.Block{
				Type:      "tool_result",
				ToolUseID: use.ToolUseID,
				Content:   string(content),
				IsError:   isErr,
			})
			recentGains = append(recentGains, gained)
		}
		res.CostUSD = e.calc.Claude(e.cfg.Model, res.Usage) + e.calc.CatalogQueries(res.ToolCalls)

		messages = append(messages, llm.ToolResultMessage(resultBlocks...))

		if stalled(recentGains, e.cfg.EarlyStopWindow) {
			res.Stopped = StopEarly
			log.Info("early stop: recent tool calls yielded no new candidates",
				zap.Int("tool_calls", res.ToolCalls),
				zap.Int("candidates", len(candidates)))
			e.assembleFromCandidates(res, criteria, exclude, candidates)
			res.Transcript = messages
			return res, nil
		}
	}

	res.Stopped = StopIterations
	log.Warn("iteration ceiling reached; assembling from candidates",
		zap.Int("candidates", len(candidates)))
	e.assembleFromCandidates(res, criteria, exclude, candidates)
	res.Transcript = messages
	return res, nil
}

// stalled reports whether the last window tool calls all produced
// zero net-new candidates.
func stalled(gains []int, window int) bool {
	if len(gains) < window {
		return false
	}
	for _, g := range gains[len(gains)-window:] {
		if g > 0 {
			return false
		}
	}
	return true
}

// assembleFromCandidates fills res.Tracks from the accumulated
// candidate pool when the conversation could not produce a final
// structured answer.
func (e *Engine) assembleFromCandidates(res *Result, criteria model.TrackSelectionCriteria, exclude map[string]bool, candidates []catalog.Track) {
	target := criteria.TargetTracks
	if target <= 0 {
		target = len(candidates)
	}

	for _, t := range candidates {
		if len(res.Tracks) >= target {
			break
		}
		if exclude[t.ID] {
			continue
		}
		if !criteria.UnconstrainedTempo && criteria.Tempo.Max > 0 && !criteria.Tempo.Contains(t.TempoBPM) {
			continue
		}
		res.Tracks = append(res.Tracks, model.SelectedTrack{
			TrackID:         t.ID,
			Title:           t.Title,
			Artist:          t.Artist,
			Album:           t.Album,
			TempoBPM:        t.TempoBPM,
			Genre:           t.Genre,
			Year:            t.Year,
			Country:         t.Country,
			DurationSeconds: t.DurationSeconds,
			Position:        len(res.Tracks) + 1,
			Rationale:       "best-effort fill from candidate pool (" + res.Stopped + ")",
		})
	}
}

// filterAndNumber drops excluded ids and assigns ordinal positions.
func filterAndNumber(tracks []model.SelectedTrack, exclude map[string]bool) []model.SelectedTrack {
	out := make([]model.SelectedTrack, 0, len(tracks))
	for _, t := range tracks {
		if exclude[t.TrackID] {
			continue
		}
		t.Position = len(out) + 1
		out = append(out, t)
	}
	return out
}
