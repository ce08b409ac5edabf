// Package tools adapts the catalog service into the fixed set of
// named, schema-described operations offered to the selection
// conversation.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/skylark-radio/playlist-cli/internal/resilience"
	"github.com/skylark-radio/playlist-cli/pkg/catalog"
	"github.com/skylark-radio/playlist-cli/pkg/llm"
)

// Operation names.
const (
	OpSearchTracks  = "search_tracks"
	OpSearchByGenre = "search_by_genre"
	OpListGenres    = "list_genres"
	OpListNewTracks = "list_new_tracks"
	OpBrowseArtists = "browse_artists"
	OpArtistTracks  = "artist_tracks"
)

const defaultLimit = 25

// Config controls adapter behavior.
type Config struct {
	// CallTimeout bounds each catalog call. Default 10s.
	CallTimeout time.Duration
	// Retry controls bounded retry before surfacing a structured
	// error.
	Retry resilience.RetryConfig
}

// Adapter executes tool operations against the catalog service and
// converts every downstream failure into a structured Error value.
type Adapter struct {
	catalog catalog.Client
	cfg     Config
}

// New creates an adapter over the given catalog client.
func New(c catalog.Client, cfg Config) *Adapter {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	return &Adapter{catalog: c, cfg: cfg}
}

// Definitions returns the declared tool schemas offered to the model.
func (a *Adapter) Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        OpSearchTracks,
			Description: "Full-text search over the station catalog. Returns tracks with id, title, artist, album, tempo_bpm, genre, year, country, duration_seconds.",
			InputSchema: map[string]any{
				"query": map[string]any{"type": "string", "description": "free-text search query"},
				"limit": map[string]any{"type": "integer", "description": "max results, default 25"},
			},
		},
		{
			Name:        OpSearchByGenre,
			Description: "List catalog tracks tagged with any of the given genres.",
			InputSchema: map[string]any{
				"genres": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"limit":  map[string]any{"type": "integer"},
			},
		},
		{
			Name:        OpListGenres,
			Description: "List every genre in the catalog with its track count.",
			InputSchema: map[string]any{},
		},
		{
			Name:        OpListNewTracks,
			Description: "List recently added catalog tracks, optionally filtered by genre.",
			InputSchema: map[string]any{
				"limit": map[string]any{"type": "integer"},
				"genre": map[string]any{"type": "string"},
			},
		},
		{
			Name:        OpBrowseArtists,
			Description: "Browse catalog artists, optionally filtered by genre.",
			InputSchema: map[string]any{
				"genre": map[string]any{"type": "string"},
				"limit": map[string]any{"type": "integer"},
			},
		},
		{
			Name:        OpArtistTracks,
			Description: "List a single artist's catalog tracks.",
			InputSchema: map[string]any{
				"artist_name": map[string]any{"type": "string"},
				"limit":       map[string]any{"type": "integer"},
			},
		},
	}
}

// Execute runs a named operation. It never returns a Go error for
// downstream failures: the second return value carries the structured
// error the conversation sees.
func (a *Adapter) Execute(ctx context.Context, name string, args json.RawMessage) (any, *Error) {
	callCtx, cancel := context.WithTimeout(ctx, a.cfg.CallTimeout)
	defer cancel()

	var (
		result any
		err    error
	)

	switch name {
	case OpSearchTracks:
		var in struct {
			Query string `json:"query"`
			Limit int    `json:"limit"`
		}
		if uerr := unmarshalArgs(args, &in); uerr != nil {
			return nil, uerr
		}
		result, err = a.withRetry(callCtx, name, func(ctx context.Context) (any, error) {
			return a.catalog.Search(ctx, in.Query, limitOrDefault(in.Limit))
		})

	case OpSearchByGenre:
		var in struct {
			Genres []string `json:"genres"`
			Limit  int      `json:"limit"`
		}
		if uerr := unmarshalArgs(args, &in); uerr != nil {
			return nil, uerr
		}
		if len(in.Genres) == 0 {
			return nil, &Error{Code: CodeBadArguments, Message: "genres must not be empty", FallbackSuggested: true}
		}
		result, err = a.withRetry(callCtx, name, func(ctx context.Context) (any, error) {
			return a.catalog.SearchByGenre(ctx, in.Genres, limitOrDefault(in.Limit))
		})

	case OpListGenres:
		result, err = a.withRetry(callCtx, name, func(ctx context.Context) (any, error) {
			return a.catalog.ListGenres(ctx)
		})

	case OpListNewTracks:
		var in struct {
			Limit int    `json:"limit"`
			Genre string `json:"genre"`
		}
		if uerr := unmarshalArgs(args, &in); uerr != nil {
			return nil, uerr
		}
		result, err = a.withRetry(callCtx, name, func(ctx context.Context) (any, error) {
			return a.catalog.ListNewlyAdded(ctx, limitOrDefault(in.Limit), in.Genre)
		})

	case OpBrowseArtists:
		var in struct {
			Genre string `json:"genre"`
			Limit int    `json:"limit"`
		}
		if uerr := unmarshalArgs(args, &in); uerr != nil {
			return nil, uerr
		}
		result, err = a.withRetry(callCtx, name, func(ctx context.Context) (any, error) {
			return a.catalog.BrowseArtists(ctx, in.Genre, limitOrDefault(in.Limit))
		})

	case OpArtistTracks:
		var in struct {
			ArtistName string `json:"artist_name"`
			Limit      int    `json:"limit"`
		}
		if uerr := unmarshalArgs(args, &in); uerr != nil {
			return nil, uerr
		}
		if in.ArtistName == "" {
			return nil, &Error{Code: CodeBadArguments, Message: "artist_name is required", FallbackSuggested: true}
		}
		result, err = a.withRetry(callCtx, name, func(ctx context.Context) (any, error) {
			return a.catalog.ArtistTracks(ctx, in.ArtistName, limitOrDefault(in.Limit))
		})

	default:
		return nil, &Error{Code: CodeUnknownOperation, Message: "unknown operation: " + name}
	}

	if err != nil {
		return nil, classify(name, err)
	}
	return result, nil
}

func (a *Adapter) withRetry(ctx context.Context, op string, fn func(ctx context.Context) (any, error)) (any, error) {
	cfg := a.cfg.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("catalog", op)
	}
	return resilience.DoVal(ctx, cfg, fn)
}

func unmarshalArgs(args json.RawMessage, out any) *Error {
	if len(args) == 0 {
		return nil
	}
	if err := json.Unmarshal(args, out); err != nil {
		return &Error{Code: CodeBadArguments, Message: err.Error(), FallbackSuggested: true}
	}
	return nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}

// classify converts a catalog failure into the structured error shape.
func classify(op string, err error) *Error {
	zap.L().Warn("tool call failed",
		zap.String("operation", op),
		zap.Error(err),
	)

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Code: CodeTimeout, Message: "catalog call timed out", FallbackSuggested: true}
	}

	var statusErr *catalog.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == 404:
			return &Error{Code: CodeNotFound, Message: statusErr.Body, FallbackSuggested: true}
		case statusErr.StatusCode == 429:
			return &Error{Code: CodeRateLimited, Message: "catalog rate limit exceeded", FallbackSuggested: true}
		default:
			return &Error{Code: CodeUpstream, Message: statusErr.Error(), FallbackSuggested: true}
		}
	}

	return &Error{Code: CodeUpstream, Message: err.Error(), FallbackSuggested: true}
}
