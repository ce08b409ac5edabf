package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/skylark-radio/playlist-cli/internal/db"
	"github.com/skylark-radio/playlist-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool, used by tests with
// pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	document       TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'queued',
	slots          INTEGER NOT NULL DEFAULT 0,
	total_cost_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS playlists (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	daypart    TEXT NOT NULL,
	payload    JSONB NOT NULL,
	cost_usd   DOUBLE PRECISION NOT NULL DEFAULT 0,
	passes     BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_playlists_run_id ON playlists(run_id);
CREATE INDEX IF NOT EXISTS idx_playlists_daypart ON playlists(daypart, created_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, document string, slots int) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, document, status, slots, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, document, string(model.RunStatusQueued), slots, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Document:  document,
		Status:    model.RunStatusQueued,
		Slots:     slots,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, totalCostUSD float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, total_cost_usd = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusComplete), totalCostUSD, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	err := s.pool.QueryRow(ctx,
		`SELECT id, document, status, slots, total_cost_usd, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.Document, &r.Status, &r.Slots, &r.TotalCostUSD, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, document, status, slots, total_cost_usd, created_at, updated_at FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		if err := rows.Scan(&r.ID, &r.Document, &r.Status, &r.Slots, &r.TotalCostUSD, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) SavePlaylist(ctx context.Context, runID string, pl *model.Playlist) error {
	payload, err := json.Marshal(pl)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal playlist")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO playlists (id, run_id, daypart, payload, cost_usd, passes, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(), runID, pl.Daypart.ID(), payload, pl.CostUSD, pl.Validation.PassesValidation, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save playlist for run %s", runID)
}

func (s *PostgresStore) GetPlaylist(ctx context.Context, runID, daypart string) (*model.Playlist, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM playlists WHERE run_id = $1 AND daypart = $2 ORDER BY created_at DESC LIMIT 1`,
		runID, daypart,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: get playlist")
	}
	return unmarshalPlaylist(payload)
}

func (s *PostgresStore) ListPlaylists(ctx context.Context, runID string) ([]model.Playlist, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM playlists WHERE run_id = $1 ORDER BY created_at ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list playlists")
	}
	defer rows.Close()

	var out []model.Playlist
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan playlist")
		}
		pl, err := unmarshalPlaylist(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, *pl)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list playlists iterate")
}

func (s *PostgresStore) LatestPlaylist(ctx context.Context, daypart string) (*model.Playlist, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM playlists WHERE daypart = $1 ORDER BY created_at DESC LIMIT 1`,
		daypart,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: latest playlist")
	}
	return unmarshalPlaylist(payload)
}

func unmarshalPlaylist(payload []byte) (*model.Playlist, error) {
	var pl model.Playlist
	if err := json.Unmarshal(payload, &pl); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal playlist")
	}
	return &pl, nil
}
