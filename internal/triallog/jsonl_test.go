package triallog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scorefuse/scorefuse/schema"
)

func TestJSONLSinkRoundTrip(t *testing.T) {
	path := StudyLogPath(filepath.Join(t.TempDir(), "studies"), "ctr")
	sink, err := NewJSONLSink(path)
	require.NoError(t, err)

	first := sampleRecord(0)
	second := sampleRecord(1)
	second.Reward = 0.95
	require.NoError(t, sink.Append(first))
	require.NoError(t, sink.Append(second))
	require.NoError(t, sink.Close())

	records, err := ReadJSONL(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, first.Params, records[0].Params)
	assert.Equal(t, 0.95, records[1].Reward)
}

func TestJSONLSinkAppendsAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.jsonl")

	for trial := 0; trial < 2; trial++ {
		sink, err := NewJSONLSink(path)
		require.NoError(t, err)
		require.NoError(t, sink.Append(sampleRecord(trial)))
		require.NoError(t, sink.Close())
	}

	records, err := ReadJSONL(path)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestReadJSONLErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := ReadJSONL(filepath.Join(t.TempDir(), "nope.jsonl"))
		assert.Error(t, err)
	})

	t.Run("corrupt line", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.jsonl")
		require.NoError(t, os.WriteFile(path, []byte("{not json}\n"), 0o644))
		_, err := ReadJSONL(path)
		assert.Error(t, err)
	})
}

func TestBestRecord(t *testing.T) {
	t.Run("picks highest reward among completed", func(t *testing.T) {
		low := sampleRecord(0)
		high := sampleRecord(1)
		high.Reward = 2.0
		failed := sampleRecord(2)
		failed.State = schema.TrialFailed
		failed.Reward = 100 // Failed trials never win

		best, ok := BestRecord([]schema.TrialRecord{low, high, failed})
		require.True(t, ok)
		assert.Equal(t, 1, best.Trial)
	})

	t.Run("no completed trials", func(t *testing.T) {
		failed := sampleRecord(0)
		failed.State = schema.TrialFailed
		_, ok := BestRecord([]schema.TrialRecord{failed})
		assert.False(t, ok)
	})
}
