package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skylark-radio/playlist-cli/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return NewPostgresFromPool(mock), mock
}

var runColumns = []string{"id", "document", "status", "slots", "total_cost_usd", "created_at", "updated_at"}

func TestPostgresMigrate(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS runs").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateRun(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(pgxmock.AnyArg(), "schedule doc", "queued", 3, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := st.CreateRun(context.Background(), "schedule doc", 3)
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.Equal(t, 3, run.Slots)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateRunStatus(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("UPDATE runs SET status").
		WithArgs("generating", pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, st.UpdateRunStatus(context.Background(), "run-1", model.RunStatusGenerating))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateRunStatusNotFound(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("UPDATE runs SET status").
		WithArgs("failed", pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := st.UpdateRunStatus(context.Background(), "missing", model.RunStatusFailed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCompleteRun(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectExec("UPDATE runs SET status").
		WithArgs("complete", 1.23, pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, st.CompleteRun(context.Background(), "run-1", 1.23))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetRun(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT id, document, status, slots, total_cost_usd, created_at, updated_at FROM runs WHERE id").
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow("run-1", "doc", "complete", 2, 0.42, now, now))

	run, err := st.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.InDelta(t, 0.42, run.TotalCostUSD, 0.0001)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListRunsWithStatusFilter(t *testing.T) {
	st, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT id, document, status, slots, total_cost_usd, created_at, updated_at FROM runs WHERE true AND status").
		WithArgs("complete", 10).
		WillReturnRows(pgxmock.NewRows(runColumns).
			AddRow("run-1", "doc1", "complete", 2, 0.10, now, now).
			AddRow("run-2", "doc2", "complete", 4, 0.20, now, now))

	runs, err := st.ListRuns(context.Background(), RunFilter{Status: model.RunStatusComplete, Limit: 10})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListRunsDefaultLimit(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, document, status, slots, total_cost_usd, created_at, updated_at FROM runs WHERE true").
		WithArgs(100).
		WillReturnRows(pgxmock.NewRows(runColumns))

	runs, err := st.ListRuns(context.Background(), RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSavePlaylist(t *testing.T) {
	st, mock := newMockStore(t)
	pl := samplePlaylist("Morning Drive", "Monday")

	mock.ExpectExec("INSERT INTO playlists").
		WithArgs(pgxmock.AnyArg(), "run-1", "morning-drive-monday", pgxmock.AnyArg(), 0.12, true, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, st.SavePlaylist(context.Background(), "run-1", pl))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetPlaylist(t *testing.T) {
	st, mock := newMockStore(t)

	payload, err := json.Marshal(samplePlaylist("Morning Drive", "Monday"))
	require.NoError(t, err)

	mock.ExpectQuery("SELECT payload FROM playlists WHERE run_id").
		WithArgs("run-1", "morning-drive-monday").
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(payload))

	pl, err := st.GetPlaylist(context.Background(), "run-1", "morning-drive-monday")
	require.NoError(t, err)
	require.NotNil(t, pl)
	assert.Equal(t, "Morning Drive", pl.Daypart.Name)
	assert.Len(t, pl.Tracks, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetPlaylistMissingReturnsNil(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT payload FROM playlists WHERE run_id").
		WithArgs("run-1", "absent").
		WillReturnError(pgx.ErrNoRows)

	pl, err := st.GetPlaylist(context.Background(), "run-1", "absent")
	require.NoError(t, err)
	assert.Nil(t, pl)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListPlaylists(t *testing.T) {
	st, mock := newMockStore(t)

	p1, err := json.Marshal(samplePlaylist("Morning Drive", "Monday"))
	require.NoError(t, err)
	p2, err := json.Marshal(samplePlaylist("Late Night", "Friday"))
	require.NoError(t, err)

	mock.ExpectQuery("SELECT payload FROM playlists WHERE run_id").
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"payload"}).AddRow(p1).AddRow(p2))

	playlists, err := st.ListPlaylists(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, playlists, 2)
	assert.Equal(t, "Late Night", playlists[1].Daypart.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresLatestPlaylistMissingReturnsNil(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectQuery("SELECT payload FROM playlists WHERE daypart").
		WithArgs("morning-drive-monday").
		WillReturnError(pgx.ErrNoRows)

	pl, err := st.LatestPlaylist(context.Background(), "morning-drive-monday")
	require.NoError(t, err)
	assert.Nil(t, pl)
	require.NoError(t, mock.ExpectationsWereMet())
}
