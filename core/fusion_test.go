package core

import (
	"math"
	"testing"

	"github.com/scorefuse/scorefuse/core/expr"
	"github.com/scorefuse/scorefuse/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDataset(t *testing.T, columns map[string][]float64) *schema.Dataset {
	t.Helper()
	ds, err := schema.NewDataset(columns)
	require.NoError(t, err)
	return ds
}

func TestFuseSum(t *testing.T) {
	ds := testDataset(t, map[string][]float64{
		"a": {1, 2, 3},
		"b": {10, 20, 30},
	})

	t.Run("weighted sum", func(t *testing.T) {
		got, err := Fuse(ds, []string{"a", "b"}, schema.EquationSum, nil, FusionParams{
			Weights: []float64{0.3, 0.7},
		})
		require.NoError(t, err)
		assert.InDelta(t, 0.3*1+0.7*10, got[0], 1e-12)
		assert.InDelta(t, 0.3*2+0.7*20, got[1], 1e-12)
		assert.InDelta(t, 0.3*3+0.7*30, got[2], 1e-12)
	})

	t.Run("mean via uniform weights", func(t *testing.T) {
		// Uniform weights 1/n reduce the sum equation to the row mean.
		got, err := Fuse(ds, []string{"a", "b"}, schema.EquationSum, nil, FusionParams{
			Weights: []float64{0.5, 0.5},
		})
		require.NoError(t, err)
		for i, want := range []float64{5.5, 11, 16.5} {
			assert.InDelta(t, want, got[i], 1e-12)
		}
	})

	t.Run("with powers", func(t *testing.T) {
		got, err := Fuse(ds, []string{"a", "b"}, schema.EquationSum, nil, FusionParams{
			Weights: []float64{1, 1},
			Powers:  []float64{2, 0.5},
		})
		require.NoError(t, err)
		assert.InDelta(t, 1+math.Sqrt(10), got[0], 1e-12)
		assert.InDelta(t, 4+math.Sqrt(20), got[1], 1e-12)
	})
}

func TestFuseProduct(t *testing.T) {
	ds := testDataset(t, map[string][]float64{
		"a": {2, 3, 4},
		"b": {4, 9, 16},
	})

	t.Run("unit weights multiply columns", func(t *testing.T) {
		got, err := Fuse(ds, []string{"a", "b"}, schema.EquationProduct, nil, FusionParams{
			Weights: []float64{1, 1},
		})
		require.NoError(t, err)
		assert.InDelta(t, 8, got[0], 1e-12)
		assert.InDelta(t, 27, got[1], 1e-12)
		assert.InDelta(t, 64, got[2], 1e-12)
	})

	t.Run("fractional weights are exponents", func(t *testing.T) {
		got, err := Fuse(ds, []string{"b"}, schema.EquationProduct, nil, FusionParams{
			Weights: []float64{0.5},
		})
		require.NoError(t, err)
		assert.InDelta(t, 2, got[0], 1e-12)
		assert.InDelta(t, 3, got[1], 1e-12)
		assert.InDelta(t, 4, got[2], 1e-12)
	})

	t.Run("first-order blend", func(t *testing.T) {
		got, err := Fuse(ds, []string{"a", "b"}, schema.EquationProduct, nil, FusionParams{
			FirstOrder: []float64{2, 3},
			Powers:     []float64{1, 2},
		})
		require.NoError(t, err)
		// (1 + 2a) * (1 + 3b)^2 per row
		assert.InDelta(t, 5*13*13, got[0], 1e-9)
		assert.InDelta(t, 7*28*28, got[1], 1e-9)
	})

	t.Run("negative base clamps for fractional exponent", func(t *testing.T) {
		neg := testDataset(t, map[string][]float64{"a": {-4}})
		got, err := Fuse(neg, []string{"a"}, schema.EquationProduct, nil, FusionParams{
			Weights: []float64{0.5},
		})
		require.NoError(t, err)
		assert.False(t, math.IsNaN(got[0]))
		assert.InDelta(t, math.Sqrt(fusionEpsilon), got[0], 1e-12)
	})
}

func TestFuseFreeForm(t *testing.T) {
	ds := testDataset(t, map[string][]float64{
		"a": {10, 20},
		"b": {3, 5},
	})
	prog, err := expr.Compile("targets[0] - 2*targets[1]")
	require.NoError(t, err)

	got, err := Fuse(ds, []string{"a", "b"}, schema.EquationFreeForm, prog, FusionParams{})
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 10}, got)

	t.Run("search variables bound through params", func(t *testing.T) {
		prog, err := expr.Compile("w1*targets[0] + w2*targets[1]")
		require.NoError(t, err)

		got, err := Fuse(ds, []string{"a", "b"}, schema.EquationFreeForm, prog, FusionParams{
			Vars: map[string]float64{"w1": 0.5, "w2": 2},
		})
		require.NoError(t, err)
		assert.Equal(t, []float64{11, 20}, got)
	})

	t.Run("unbound variable fails", func(t *testing.T) {
		prog, err := expr.Compile("w1*targets[0]")
		require.NoError(t, err)

		_, err = Fuse(ds, []string{"a"}, schema.EquationFreeForm, prog, FusionParams{})
		assert.ErrorIs(t, err, schema.ErrExpression)
	})
}

func TestFuseErrors(t *testing.T) {
	ds := testDataset(t, map[string][]float64{"a": {1, 2}, "b": {3, 4}})

	t.Run("mismatched weight length", func(t *testing.T) {
		_, err := Fuse(ds, []string{"a", "b"}, schema.EquationSum, nil, FusionParams{
			Weights: []float64{1},
		})
		assert.ErrorIs(t, err, schema.ErrConfig)
	})

	t.Run("mismatched powers length", func(t *testing.T) {
		_, err := Fuse(ds, []string{"a", "b"}, schema.EquationSum, nil, FusionParams{
			Weights: []float64{1, 1},
			Powers:  []float64{2},
		})
		assert.ErrorIs(t, err, schema.ErrConfig)
	})

	t.Run("first-order outside product", func(t *testing.T) {
		_, err := Fuse(ds, []string{"a", "b"}, schema.EquationSum, nil, FusionParams{
			Weights:    []float64{1, 1},
			FirstOrder: []float64{1, 1},
		})
		assert.ErrorIs(t, err, schema.ErrConfig)
	})

	t.Run("unknown column", func(t *testing.T) {
		_, err := Fuse(ds, []string{"missing"}, schema.EquationSum, nil, FusionParams{
			Weights: []float64{1},
		})
		assert.ErrorIs(t, err, schema.ErrConfig)
	})

	t.Run("no columns", func(t *testing.T) {
		_, err := Fuse(ds, nil, schema.EquationSum, nil, FusionParams{})
		assert.ErrorIs(t, err, schema.ErrConfig)
	})

	t.Run("free-form without expression", func(t *testing.T) {
		_, err := Fuse(ds, []string{"a"}, schema.EquationFreeForm, nil, FusionParams{})
		assert.ErrorIs(t, err, schema.ErrConfig)
	})

	t.Run("expression index beyond columns", func(t *testing.T) {
		prog, err := expr.Compile("targets[5]")
		require.NoError(t, err)
		_, err = Fuse(ds, []string{"a"}, schema.EquationFreeForm, prog, FusionParams{})
		assert.ErrorIs(t, err, schema.ErrExpression)
	})
}

func TestSafePow(t *testing.T) {
	assert.InDelta(t, 8, safePow(2, 3), 1e-12)
	assert.InDelta(t, math.Pow(-2, 2), safePow(-2, 2), 1e-12)
	// Fractional exponent on a negative base clamps instead of going NaN.
	assert.False(t, math.IsNaN(safePow(-2, 0.5)))
}

// BenchmarkFuseSum benchmarks the weighted sum fusion pass.
func BenchmarkFuseSum(b *testing.B) {
	columns := map[string][]float64{
		"a": make([]float64, 1000),
		"b": make([]float64, 1000),
	}
	for i := range 1000 {
		columns["a"][i] = float64(i)
		columns["b"][i] = float64(1000 - i)
	}
	ds, err := schema.NewDataset(columns)
	if err != nil {
		b.Fatal(err)
	}
	params := FusionParams{Weights: []float64{0.3, 0.7}}

	for b.Loop() {
		_, _ = Fuse(ds, []string{"a", "b"}, schema.EquationSum, nil, params)
	}
}
