package core

import (
	"context"
	"math"
	"testing"

	"github.com/scorefuse/scorefuse/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackend(t *testing.T) {
	for _, kind := range []schema.SearcherKind{schema.TPESearcher, schema.RandomSearcher} {
		b, err := NewBackend(kind, 1)
		require.NoError(t, err)
		assert.Equal(t, string(kind), b.Name())
	}

	_, err := NewBackend(schema.SearcherKind("nope"), 1)
	assert.ErrorIs(t, err, schema.ErrConfig)
}

func TestRandomBackendBounds(t *testing.T) {
	b, err := NewBackend(schema.RandomSearcher, 99)
	require.NoError(t, err)

	result, err := b.Run(context.Background(), schema.Maximize, 20, func(p Proposer) (float64, error) {
		w, err := p.SuggestFloat("w", -1, 1)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, w, -1.0)
		assert.LessOrEqual(t, w, 1.0)

		f, err := p.SuggestLogFloat("f", 1e-3, 1e3)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, f, 1e-3)
		assert.LessOrEqual(t, f, 1e3)
		return w, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 20, result.Trials)
	assert.Contains(t, result.Params, "w")
	assert.Contains(t, result.Params, "f")
	assert.Equal(t, result.Params["w"], result.Value)
}

func TestRandomBackendDeterminism(t *testing.T) {
	run := func() []float64 {
		b, err := NewBackend(schema.RandomSearcher, 1234)
		require.NoError(t, err)
		var seen []float64
		_, err = b.Run(context.Background(), schema.Maximize, 5, func(p Proposer) (float64, error) {
			v, err := p.SuggestFloat("x", 0, 10)
			require.NoError(t, err)
			seen = append(seen, v)
			return v, nil
		})
		require.NoError(t, err)
		return seen
	}
	assert.Equal(t, run(), run())
}

func TestRandomBackendMinimize(t *testing.T) {
	b, err := NewBackend(schema.RandomSearcher, 5)
	require.NoError(t, err)

	result, err := b.Run(context.Background(), schema.Minimize, 15, func(p Proposer) (float64, error) {
		x, err := p.SuggestFloat("x", -5, 5)
		require.NoError(t, err)
		return x * x, nil
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.Value, 0.0)
	assert.LessOrEqual(t, result.Value, 25.0)
	assert.InDelta(t, result.Params["x"]*result.Params["x"], result.Value, 1e-12)
}

func TestRandomBackendContextCancel(t *testing.T) {
	b, err := NewBackend(schema.RandomSearcher, 5)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.Run(ctx, schema.Maximize, 10, func(p Proposer) (float64, error) {
		t.Fatal("objective must not run after cancellation")
		return 0, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRandomBackendInvalidBounds(t *testing.T) {
	b, err := NewBackend(schema.RandomSearcher, 5)
	require.NoError(t, err)

	_, err = b.Run(context.Background(), schema.Maximize, 1, func(p Proposer) (float64, error) {
		return p.SuggestLogFloat("f", -1, 1)
	})
	assert.ErrorIs(t, err, schema.ErrBackend)
}

func TestTPEBackendOptimizes(t *testing.T) {
	b, err := NewBackend(schema.TPESearcher, 42)
	require.NoError(t, err)

	// Minimize a smooth quadratic: the best observed value after a handful
	// of trials must at least be finite and within the objective's range.
	result, err := b.Run(context.Background(), schema.Minimize, 15, func(p Proposer) (float64, error) {
		x, err := p.SuggestFloat("x", -10, 10)
		if err != nil {
			return 0, err
		}
		return (x - 2) * (x - 2), nil
	})
	require.NoError(t, err)
	assert.False(t, math.IsNaN(result.Value))
	assert.GreaterOrEqual(t, result.Value, 0.0)
	assert.LessOrEqual(t, result.Value, 144.0)
	assert.Contains(t, result.Params, "x")
}
