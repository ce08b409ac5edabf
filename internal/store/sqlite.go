package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/skylark-radio/playlist-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id             TEXT PRIMARY KEY,
	document       TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'queued',
	slots          INTEGER NOT NULL DEFAULT 0,
	total_cost_usd REAL NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS playlists (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	daypart    TEXT NOT NULL,
	payload    TEXT NOT NULL,
	cost_usd   REAL NOT NULL DEFAULT 0,
	passes     INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_playlists_run_id ON playlists(run_id);
CREATE INDEX IF NOT EXISTS idx_playlists_daypart ON playlists(daypart, created_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, document string, slots int) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, document, status, slots, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, document, string(model.RunStatusQueued), slots, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
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

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, totalCostUSD float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, total_cost_usd = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), totalCostUSD, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, document, status, slots, total_cost_usd, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, document, status, slots, total_cost_usd, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SavePlaylist(ctx context.Context, runID string, pl *model.Playlist) error {
	payload, err := json.Marshal(pl)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal playlist")
	}

	passes := 0
	if pl.Validation.PassesValidation {
		passes = 1
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO playlists (id, run_id, daypart, payload, cost_usd, passes, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), runID, pl.Daypart.ID(), string(payload), pl.CostUSD, passes, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save playlist for run %s", runID)
}

func (s *SQLiteStore) GetPlaylist(ctx context.Context, runID, daypart string) (*model.Playlist, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM playlists WHERE run_id = ? AND daypart = ? ORDER BY created_at DESC LIMIT 1`,
		runID, daypart,
	)
	return scanPlaylist(row)
}

func (s *SQLiteStore) ListPlaylists(ctx context.Context, runID string) ([]model.Playlist, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM playlists WHERE run_id = ? ORDER BY created_at ASC`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list playlists")
	}
	defer rows.Close()

	var out []model.Playlist
	for rows.Next() {
		pl, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *pl)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list playlists iterate")
}

func (s *SQLiteStore) LatestPlaylist(ctx context.Context, daypart string) (*model.Playlist, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM playlists WHERE daypart = ? ORDER BY created_at DESC LIMIT 1`,
		daypart,
	)
	return scanPlaylist(row)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	err := row.Scan(&r.ID, &r.Document, &r.Status, &r.Slots, &r.TotalCostUSD, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	return &r, nil
}

func scanPlaylist(row scannable) (*model.Playlist, error) {
	var payload string
	err := row.Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan playlist")
	}
	var pl model.Playlist
	if err := json.Unmarshal([]byte(payload), &pl); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal playlist")
	}
	return &pl, nil
}
