package decision

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendReadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "decisions.jsonl")
	logger, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, logger.Append(Record{
		Daypart: "morning-drive-monday",
		Stage:   StageRelaxation,
		Inputs:  map[string]any{"level": "L1-tempo-5"},
		Outcome: map[string]any{"passes": false},
	}))
	require.NoError(t, logger.Append(Record{
		Daypart:   "morning-drive-monday",
		Stage:     StagePadding,
		CostDelta: 0.002,
	}))
	require.NoError(t, logger.Close())

	records, err := Read(path)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.NotEmpty(t, records[0].ID)
	assert.False(t, records[0].Timestamp.IsZero())
	assert.Equal(t, StageRelaxation, records[0].Stage)
	assert.Equal(t, "L1-tempo-5", records[0].Inputs["level"])
	assert.Equal(t, StagePadding, records[1].Stage)
	assert.InDelta(t, 0.002, records[1].CostDelta, 0.0001)
}

func TestAppendPreservesProvidedID(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "decisions.jsonl")
	logger, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, logger.Append(Record{ID: "fixed-id", Daypart: "x", Stage: StageBudget}))
	require.NoError(t, logger.Close())

	records, err := Read(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "fixed-id", records[0].ID)
}

func TestOpenAppendsToExistingLog(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "decisions.jsonl")

	first, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, first.Append(Record{Daypart: "a", Stage: StageSelection}))
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, second.Append(Record{Daypart: "b", Stage: StageSelection}))
	require.NoError(t, second.Close())

	records, err := Read(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].Daypart)
	assert.Equal(t, "b", records[1].Daypart)
}

func TestConcurrentAppendsProduceWholeLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "decisions.jsonl")
	logger, err := Open(path)
	require.NoError(t, err)

	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = logger.Append(Record{Daypart: "load", Stage: StageValidation})
			}
		}()
	}
	wg.Wait()
	require.NoError(t, logger.Close())

	records, err := Read(path)
	require.NoError(t, err)
	assert.Len(t, records, writers*perWriter)
}

func TestTailFilterAndLimit(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "decisions.jsonl")
	logger, err := Open(path)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, logger.Append(Record{Daypart: "morning", Stage: StageRelaxation, Inputs: map[string]any{"n": i}}))
		require.NoError(t, logger.Append(Record{Daypart: "evening", Stage: StageRelaxation}))
	}
	require.NoError(t, logger.Close())

	all, err := Tail(path, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 10)

	morning, err := Tail(path, "morning", 0)
	require.NoError(t, err)
	assert.Len(t, morning, 5)

	last2, err := Tail(path, "morning", 2)
	require.NoError(t, err)
	require.Len(t, last2, 2)
	// JSON numbers decode as float64.
	assert.InDelta(t, 3, last2[0].Inputs["n"].(float64), 0.001)
	assert.InDelta(t, 4, last2[1].Inputs["n"].(float64), 0.001)
}

func TestReadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Read(filepath.Join(t.TempDir(), "absent.jsonl"))
	assert.Error(t, err)
}
