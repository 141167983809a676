package core

import (
	"testing"

	"github.com/scorefuse/scorefuse/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCalculator(t *testing.T) {
	ds := testDataset(t, map[string][]float64{"a": {1, 2}, "b": {3, 4}})

	t.Run("valid", func(t *testing.T) {
		c, err := NewCalculator(ds, []string{"a", "b"}, schema.EquationSum, "")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, c.Columns())
		assert.Equal(t, schema.EquationSum, c.Equation())
		assert.Equal(t, 2, c.ParamCount())
	})

	t.Run("nil dataset", func(t *testing.T) {
		_, err := NewCalculator(nil, []string{"a"}, schema.EquationSum, "")
		assert.ErrorIs(t, err, schema.ErrConfig)
	})

	t.Run("unknown column", func(t *testing.T) {
		_, err := NewCalculator(ds, []string{"missing"}, schema.EquationSum, "")
		assert.ErrorIs(t, err, schema.ErrConfig)
	})

	t.Run("unknown equation", func(t *testing.T) {
		_, err := NewCalculator(ds, []string{"a"}, schema.EquationType("nope"), "")
		assert.ErrorIs(t, err, schema.ErrConfig)
	})

	t.Run("expression outside free-form", func(t *testing.T) {
		_, err := NewCalculator(ds, []string{"a"}, schema.EquationSum, "targets[0]")
		assert.ErrorIs(t, err, schema.ErrConfig)
	})

	t.Run("free-form without expression", func(t *testing.T) {
		_, err := NewCalculator(ds, []string{"a"}, schema.EquationFreeForm, "")
		assert.ErrorIs(t, err, schema.ErrConfig)
	})

	t.Run("free-form bad expression", func(t *testing.T) {
		_, err := NewCalculator(ds, []string{"a"}, schema.EquationFreeForm, "1 +")
		assert.ErrorIs(t, err, schema.ErrExpression)
	})

	t.Run("free-form index beyond columns", func(t *testing.T) {
		_, err := NewCalculator(ds, []string{"a"}, schema.EquationFreeForm, "targets[1]")
		assert.ErrorIs(t, err, schema.ErrExpression)
	})

	t.Run("free-form exposes expression variables", func(t *testing.T) {
		c, err := NewCalculator(ds, []string{"a", "b"}, schema.EquationFreeForm,
			"w1*targets[0] + w2*log(1 + targets[1])")
		require.NoError(t, err)
		assert.Equal(t, []string{"w1", "w2"}, c.ExpressionVars())

		fixed, err := NewCalculator(ds, []string{"a"}, schema.EquationSum, "")
		require.NoError(t, err)
		assert.Nil(t, fixed.ExpressionVars())
	})
}

func TestCalculatorScoreColumn(t *testing.T) {
	ds := testDataset(t, map[string][]float64{"a": {1, 2, 3}, "b": {4, 5, 6}})
	c, err := NewCalculator(ds, []string{"a", "b"}, schema.EquationSum, "")
	require.NoError(t, err)

	t.Run("score before creation", func(t *testing.T) {
		_, err := c.Score()
		assert.ErrorIs(t, err, schema.ErrConfig)
	})

	t.Run("create and overwrite", func(t *testing.T) {
		require.NoError(t, c.CreateScoreColumn(FusionParams{Weights: []float64{1, 0}}))
		score, err := c.Score()
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 2, 3}, score)

		require.NoError(t, c.CreateScoreColumn(FusionParams{Weights: []float64{0, 1}}))
		score, err = c.Score()
		require.NoError(t, err)
		assert.Equal(t, []float64{4, 5, 6}, score)
	})

	t.Run("mismatched weights", func(t *testing.T) {
		err := c.CreateScoreColumn(FusionParams{Weights: []float64{1, 2, 3}})
		assert.ErrorIs(t, err, schema.ErrConfig)
	})
}

func TestCalculatorSamplers(t *testing.T) {
	values := make([]float64, 50)
	for i := range values {
		values[i] = float64(i)
	}
	ds := testDataset(t, map[string][]float64{"a": values, "sales": values})
	c, err := NewCalculator(ds, []string{"a"}, schema.EquationSum, "")
	require.NoError(t, err)

	t.Run("idempotent for identical options", func(t *testing.T) {
		opts := FrequencyOptions{SampleSize: 3}
		require.NoError(t, c.InitializeFrequencySampler("sales", opts))
		first := c.SamplerFor("sales")
		require.NotNil(t, first)

		require.NoError(t, c.InitializeFrequencySampler("sales", opts))
		assert.Same(t, first, c.SamplerFor("sales"))
	})

	t.Run("rebuilds for different options", func(t *testing.T) {
		require.NoError(t, c.InitializeFrequencySampler("sales", FrequencyOptions{SampleSize: 5}))
		assert.Len(t, c.SamplerFor("sales").Boundaries(), 5)
	})

	t.Run("gini sampler replaces frequency", func(t *testing.T) {
		require.NoError(t, c.InitializeGiniSampler("sales", GiniOptions{SampleSize: 2}))
		assert.Equal(t, schema.GiniSampler, c.SamplerFor("sales").Kind())
	})

	t.Run("unknown column", func(t *testing.T) {
		err := c.InitializeFrequencySampler("missing", FrequencyOptions{SampleSize: 3})
		assert.ErrorIs(t, err, schema.ErrConfig)
	})
}

func TestCalculatorEvaluateTerm(t *testing.T) {
	ds := testDataset(t, map[string][]float64{
		"a":     {0.1, 0.4, 0.35, 0.8},
		"b":     {9, 1, 7, 2},
		"label": {0, 0, 1, 1},
	})
	c, err := NewCalculator(ds, []string{"a", "b"}, schema.EquationSum, "")
	require.NoError(t, err)

	t.Run("requires score column", func(t *testing.T) {
		_, err := c.EvaluateTerm(ObjectiveTerm{Kind: schema.MetricAUC, Target: "label"})
		assert.ErrorIs(t, err, schema.ErrConfig)
	})

	require.NoError(t, c.CreateScoreColumn(FusionParams{Weights: []float64{1, 0}}))

	t.Run("zero weight column drops out", func(t *testing.T) {
		// With weights [1, 0] the fused score is column a, so the term value
		// must match the metric computed on a directly.
		direct, err := WeightedOrderAUC([]float64{0.1, 0.4, 0.35, 0.8}, []float64{0, 0, 1, 1}, nil)
		require.NoError(t, err)
		got, err := c.EvaluateTerm(ObjectiveTerm{Kind: schema.MetricWeightedAUC, Target: "label"})
		require.NoError(t, err)
		assert.InDelta(t, direct, got, 1e-12)
		assert.InDelta(t, 0.75, got, 1e-12)
	})

	t.Run("auc term", func(t *testing.T) {
		got, err := c.EvaluateTerm(ObjectiveTerm{Kind: schema.MetricAUC, Target: "label"})
		require.NoError(t, err)
		assert.InDelta(t, 0.75, got, 1e-12)
	})

	t.Run("portfolio default coverage", func(t *testing.T) {
		got, err := c.EvaluateTerm(ObjectiveTerm{Kind: schema.MetricPortfolio, Target: "b"})
		require.NoError(t, err)
		// Default coverage 0.95 takes all 4 rows.
		assert.Equal(t, 1.0, got)
	})

	t.Run("portfolio custom coverage", func(t *testing.T) {
		hyper := 0.5
		got, err := c.EvaluateTerm(ObjectiveTerm{Kind: schema.MetricPortfolio, Target: "b", Hyper: &hyper})
		require.NoError(t, err)
		// Top 2 rows by score (0.8, 0.4) carry targets 2 and 1.
		assert.InDelta(t, 3.0/19.0, got, 1e-12)
	})

	t.Run("unknown target", func(t *testing.T) {
		_, err := c.EvaluateTerm(ObjectiveTerm{Kind: schema.MetricAUC, Target: "missing"})
		assert.ErrorIs(t, err, schema.ErrConfig)
	})

	t.Run("unknown metric", func(t *testing.T) {
		_, err := c.EvaluateTerm(ObjectiveTerm{Kind: schema.MetricKind("nope"), Target: "label"})
		assert.ErrorIs(t, err, schema.ErrMetric)
	})
}

func TestCalculatorOverallScore(t *testing.T) {
	ds := testDataset(t, map[string][]float64{
		"a":     {1, 2, 3, 4},
		"label": {0, 0, 1, 1},
	})
	c, err := NewCalculator(ds, []string{"a"}, schema.EquationSum, "")
	require.NoError(t, err)
	require.NoError(t, c.CreateScoreColumn(FusionParams{Weights: []float64{1}}))

	got, err := c.OverallScore([]ObjectiveTerm{
		{Kind: schema.MetricAUC, Target: "label", Weight: 2},
		{Kind: schema.MetricCorrelation, Target: "a"},
	})
	require.NoError(t, err)
	// AUC is 1 (perfect split), correlation with itself is 1.
	assert.InDelta(t, 3.0, got, 1e-12)
}
