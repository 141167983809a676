package triallog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scorefuse/scorefuse/schema"
)

func newSQLiteStore(t *testing.T) *TrialStore {
	t.Helper()
	store, err := NewTrialStore(schema.SQLiteBackend, filepath.Join(t.TempDir(), "trials.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleRecord(trial int) schema.TrialRecord {
	return schema.TrialRecord{
		Trial:      trial,
		State:      schema.TrialComplete,
		Params:     map[string]float64{"w1": 0.25, "w2": 0.75},
		TermValues: []float64{0.9, 0.1},
		Value:      0.81,
		Reward:     0.81,
		Elapsed:    25 * time.Millisecond,
		Time:       time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func TestTrialStoreRoundTrip(t *testing.T) {
	store := newSQLiteStore(t)

	studyID, err := store.BeginStudy("ctr-study", schema.Maximize, map[string]any{"trials": 2})
	require.NoError(t, err)
	assert.Positive(t, studyID)

	require.NoError(t, store.AppendTrial(studyID, sampleRecord(0)))

	failed := sampleRecord(1)
	failed.State = schema.TrialFailed
	failed.Error = "metric domain error"
	failed.Reward = -1e18
	require.NoError(t, store.AppendTrial(studyID, failed))

	studies, err := store.FetchStudies()
	require.NoError(t, err)
	require.Len(t, studies, 1)
	assert.Equal(t, "ctr-study", studies[0].Name)
	assert.Equal(t, schema.Maximize, studies[0].Direction)
	assert.Contains(t, studies[0].Config, `"trials":2`)
	assert.False(t, studies[0].CreatedAt.IsZero())

	trials, err := store.FetchTrials(studyID)
	require.NoError(t, err)
	require.Len(t, trials, 2)

	got := trials[0]
	assert.Equal(t, 0, got.Trial)
	assert.Equal(t, schema.TrialComplete, got.State)
	assert.Equal(t, map[string]float64{"w1": 0.25, "w2": 0.75}, got.Params)
	assert.Equal(t, []float64{0.9, 0.1}, got.TermValues)
	assert.Equal(t, 0.81, got.Value)
	assert.Equal(t, 25*time.Millisecond, got.Elapsed)
	assert.Equal(t, sampleRecord(0).Time, got.Time.UTC())

	assert.Equal(t, schema.TrialFailed, trials[1].State)
	assert.Equal(t, "metric domain error", trials[1].Error)
}

func TestTrialStoreStatusAndClear(t *testing.T) {
	store := newSQLiteStore(t)

	studyID, err := store.BeginStudy("s1", schema.Minimize, nil)
	require.NoError(t, err)
	require.NoError(t, store.AppendTrial(studyID, sampleRecord(0)))

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, schema.SQLiteBackend, status.Backend)
	assert.Equal(t, 1, status.Studies)
	assert.Equal(t, 1, status.Trials)

	require.NoError(t, store.Clear())
	status, err = store.GetStatus()
	require.NoError(t, err)
	assert.Zero(t, status.Studies)
	assert.Zero(t, status.Trials)
}

func TestTrialStoreMultipleStudies(t *testing.T) {
	store := newSQLiteStore(t)

	first, err := store.BeginStudy("first", schema.Maximize, nil)
	require.NoError(t, err)
	second, err := store.BeginStudy("second", schema.Maximize, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	require.NoError(t, store.AppendTrial(first, sampleRecord(0)))

	trials, err := store.FetchTrials(second)
	require.NoError(t, err)
	assert.Empty(t, trials)
}

func TestTrialStoreNoneBackend(t *testing.T) {
	store, err := NewTrialStore(schema.NoneBackend, "")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	studyID, err := store.BeginStudy("ignored", schema.Maximize, nil)
	require.NoError(t, err)
	assert.Zero(t, studyID)
	assert.NoError(t, store.AppendTrial(studyID, sampleRecord(0)))

	status, err := store.GetStatus()
	require.NoError(t, err)
	assert.Equal(t, schema.NoneBackend, status.Backend)
	assert.Zero(t, status.Studies)
}

func TestTrialStoreUnsupportedBackend(t *testing.T) {
	_, err := NewTrialStore(schema.DatabaseBackend("oracle"), "")
	assert.ErrorIs(t, err, schema.ErrConfig)
}

func TestStoreSink(t *testing.T) {
	store := newSQLiteStore(t)
	studyID, err := store.BeginStudy("sink", schema.Maximize, nil)
	require.NoError(t, err)

	sink := &StoreSink{Store: store, StudyID: studyID}
	require.NoError(t, sink.Append(sampleRecord(0)))

	trials, err := store.FetchTrials(studyID)
	require.NoError(t, err)
	assert.Len(t, trials, 1)
}
