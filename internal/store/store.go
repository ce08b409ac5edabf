// Package store persists batch runs and their generated playlists.
package store

import (
	"context"

	"github.com/skylark-radio/playlist-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the generation pipeline.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, document string, slots int) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	CompleteRun(ctx context.Context, runID string, totalCostUSD float64) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Playlists
	SavePlaylist(ctx context.Context, runID string, pl *model.Playlist) error
	GetPlaylist(ctx context.Context, runID, daypart string) (*model.Playlist, error)
	ListPlaylists(ctx context.Context, runID string) ([]model.Playlist, error)
	LatestPlaylist(ctx context.Context, daypart string) (*model.Playlist, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
