package core

import (
	"context"
	"errors"
	"testing"

	"github.com/scorefuse/scorefuse/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	records []schema.TrialRecord
	err     error
}

func (s *memorySink) Append(rec schema.TrialRecord) error {
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

func newTestObjective(t *testing.T, direction schema.Direction, formula string, sinks ...TrialSink) (*MultipleObjective, *Calculator) {
	t.Helper()
	ds := testDataset(t, map[string][]float64{
		"a":     {0.1, 0.4, 0.35, 0.8, 0.05, 0.9},
		"b":     {0.9, 0.1, 0.2, 0.3, 0.8, 0.1},
		"label": {0, 0, 1, 1, 0, 1},
	})
	calc, err := NewCalculator(ds, []string{"a", "b"}, schema.EquationSum, "")
	require.NoError(t, err)

	backend, err := NewBackend(schema.RandomSearcher, 42)
	require.NoError(t, err)

	mo, err := NewMultipleObjective(direction, formula, DefaultSearchSpace(schema.EquationSum), backend, sinks...)
	require.NoError(t, err)
	return mo, calc
}

func TestNewMultipleObjective(t *testing.T) {
	backend, err := NewBackend(schema.RandomSearcher, 1)
	require.NoError(t, err)
	space := DefaultSearchSpace(schema.EquationSum)

	t.Run("unknown direction", func(t *testing.T) {
		_, err := NewMultipleObjective(schema.Direction("sideways"), "", space, backend)
		assert.ErrorIs(t, err, schema.ErrConfig)
	})

	t.Run("nil backend", func(t *testing.T) {
		_, err := NewMultipleObjective(schema.Maximize, "", space, nil)
		assert.ErrorIs(t, err, schema.ErrConfig)
	})

	t.Run("bad formula", func(t *testing.T) {
		_, err := NewMultipleObjective(schema.Maximize, "targets[", space, backend)
		assert.ErrorIs(t, err, schema.ErrExpression)
	})

	t.Run("formula cannot use search variables", func(t *testing.T) {
		_, err := NewMultipleObjective(schema.Maximize, "w1 * targets[0]", space, backend)
		assert.ErrorIs(t, err, schema.ErrExpression)
	})

	t.Run("bad bounds", func(t *testing.T) {
		bad := space
		bad.WeightLow, bad.WeightHigh = 1, 0
		_, err := NewMultipleObjective(schema.Maximize, "", bad, backend)
		assert.ErrorIs(t, err, schema.ErrConfig)
	})

	t.Run("dirichlet needs non-negative weights", func(t *testing.T) {
		bad := DefaultSearchSpace(schema.EquationProduct)
		bad.Dirichlet = true
		_, err := NewMultipleObjective(schema.Maximize, "", bad, backend)
		assert.ErrorIs(t, err, schema.ErrConfig)
	})
}

func TestAddCalculator(t *testing.T) {
	mo, calc := newTestObjective(t, schema.Maximize, "")

	t.Run("nil calculator", func(t *testing.T) {
		err := mo.AddCalculator(nil, ObjectiveTerm{Kind: schema.MetricAUC, Target: "label"})
		assert.ErrorIs(t, err, schema.ErrConfig)
	})

	t.Run("no terms", func(t *testing.T) {
		err := mo.AddCalculator(calc)
		assert.ErrorIs(t, err, schema.ErrConfig)
	})

	t.Run("unknown metric kind", func(t *testing.T) {
		err := mo.AddCalculator(calc, ObjectiveTerm{Kind: schema.MetricKind("nope"), Target: "label"})
		assert.ErrorIs(t, err, schema.ErrConfig)
	})

	t.Run("missing target column", func(t *testing.T) {
		err := mo.AddCalculator(calc, ObjectiveTerm{Kind: schema.MetricAUC, Target: "missing"})
		assert.ErrorIs(t, err, schema.ErrConfig)
	})

	t.Run("valid", func(t *testing.T) {
		err := mo.AddCalculator(calc, ObjectiveTerm{Kind: schema.MetricAUC, Target: "label"})
		require.NoError(t, err)
		assert.Equal(t, schema.StudyConfiguring, mo.State())
	})
}

func TestOptimizeLifecycle(t *testing.T) {
	sink := &memorySink{}
	mo, calc := newTestObjective(t, schema.Maximize, "", sink)
	require.NoError(t, mo.AddCalculator(calc, ObjectiveTerm{Kind: schema.MetricAUC, Target: "label"}))

	const trials = 7
	result, err := mo.Optimize(context.Background(), trials)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, schema.StudyCompleted, mo.State())
	assert.Equal(t, trials, result.Trials)
	assert.Len(t, mo.Records(), trials)
	assert.Len(t, sink.records, trials)

	// Best trial is the maximum reward among completed trials.
	var bestReward float64 = -1
	for _, rec := range mo.Records() {
		assert.Equal(t, schema.TrialComplete, rec.State)
		assert.NotEmpty(t, rec.Params)
		if rec.Reward > bestReward {
			bestReward = rec.Reward
		}
	}
	assert.Equal(t, bestReward, result.BestValue)
	assert.GreaterOrEqual(t, result.BestValue, 0.0)
	assert.LessOrEqual(t, result.BestValue, 1.0)
	assert.Zero(t, result.Failed)

	t.Run("add after optimize", func(t *testing.T) {
		err := mo.AddCalculator(calc, ObjectiveTerm{Kind: schema.MetricAUC, Target: "label"})
		assert.ErrorIs(t, err, schema.ErrConfig)
	})

	t.Run("optimize twice", func(t *testing.T) {
		_, err := mo.Optimize(context.Background(), 1)
		assert.ErrorIs(t, err, schema.ErrConfig)
	})
}

func TestOptimizeMinimize(t *testing.T) {
	mo, calc := newTestObjective(t, schema.Minimize, "")
	require.NoError(t, mo.AddCalculator(calc, ObjectiveTerm{Kind: schema.MetricNegRankRatio, Target: "label"}))

	result, err := mo.Optimize(context.Background(), 5)
	require.NoError(t, err)

	// For minimize, the reward is the negated value and the best trial has
	// the smallest value.
	for _, rec := range mo.Records() {
		assert.Equal(t, -rec.Value, rec.Reward)
		assert.GreaterOrEqual(t, rec.Value, result.BestValue)
	}
}

func TestOptimizeFormula(t *testing.T) {
	mo, calc := newTestObjective(t, schema.Maximize, "targets[0] - 2*targets[1]")
	require.NoError(t, mo.AddCalculator(calc,
		ObjectiveTerm{Kind: schema.MetricAUC, Target: "label"},
		ObjectiveTerm{Kind: schema.MetricNegRankRatio, Target: "label"},
	))

	_, err := mo.Optimize(context.Background(), 4)
	require.NoError(t, err)

	for _, rec := range mo.Records() {
		require.Len(t, rec.TermValues, 2)
		assert.InDelta(t, rec.TermValues[0]-2*rec.TermValues[1], rec.Value, 1e-12)
	}
}

func TestOptimizeFormulaArity(t *testing.T) {
	mo, calc := newTestObjective(t, schema.Maximize, "targets[5]")
	require.NoError(t, mo.AddCalculator(calc, ObjectiveTerm{Kind: schema.MetricAUC, Target: "label"}))

	_, err := mo.Optimize(context.Background(), 2)
	assert.ErrorIs(t, err, schema.ErrExpression)
}

func TestOptimizeValidation(t *testing.T) {
	mo, calc := newTestObjective(t, schema.Maximize, "")

	t.Run("no terms", func(t *testing.T) {
		_, err := mo.Optimize(context.Background(), 3)
		assert.ErrorIs(t, err, schema.ErrConfig)
	})

	require.NoError(t, mo.AddCalculator(calc, ObjectiveTerm{Kind: schema.MetricAUC, Target: "label"}))

	t.Run("zero trials", func(t *testing.T) {
		_, err := mo.Optimize(context.Background(), 0)
		assert.ErrorIs(t, err, schema.ErrConfig)
	})
}

func TestOptimizeAllTrialsFailed(t *testing.T) {
	ds := testDataset(t, map[string][]float64{
		"a":   {1, 2, 3},
		"bad": {-1, -2, -3}, // negative targets break logmse on every trial
	})
	calc, err := NewCalculator(ds, []string{"a"}, schema.EquationSum, "")
	require.NoError(t, err)
	backend, err := NewBackend(schema.RandomSearcher, 7)
	require.NoError(t, err)
	mo, err := NewMultipleObjective(schema.Minimize, "", DefaultSearchSpace(schema.EquationSum), backend)
	require.NoError(t, err)
	require.NoError(t, mo.AddCalculator(calc, ObjectiveTerm{Kind: schema.MetricLogMSE, Target: "bad"}))

	_, err = mo.Optimize(context.Background(), 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrDomain)
	assert.Equal(t, schema.StudyFailed, mo.State())

	// Failures are still recorded with the sentinel reward.
	records := mo.Records()
	assert.Len(t, records, 3)
	for _, rec := range records {
		assert.Equal(t, schema.TrialFailed, rec.State)
		assert.NotEmpty(t, rec.Error)
	}
}

func TestOptimizeSinkFailure(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}
	mo, calc := newTestObjective(t, schema.Maximize, "", sink)
	require.NoError(t, mo.AddCalculator(calc, ObjectiveTerm{Kind: schema.MetricAUC, Target: "label"}))

	_, err := mo.Optimize(context.Background(), 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrBackend)
	assert.Equal(t, schema.StudyFailed, mo.State())
}

func TestProposeParamsModes(t *testing.T) {
	ds := testDataset(t, map[string][]float64{
		"a":     {1, 2, 3, 4},
		"b":     {4, 3, 2, 1},
		"c":     {2, 2, 3, 3},
		"label": {0, 1, 0, 1},
	})
	backend, err := NewBackend(schema.RandomSearcher, 11)
	require.NoError(t, err)

	t.Run("dirichlet weights stay on the simplex", func(t *testing.T) {
		calc, err := NewCalculator(ds, []string{"a", "b", "c"}, schema.EquationSum, "")
		require.NoError(t, err)
		space := DefaultSearchSpace(schema.EquationSum)
		space.Dirichlet = true
		mo, err := NewMultipleObjective(schema.Maximize, "", space, backend)
		require.NoError(t, err)
		require.NoError(t, mo.AddCalculator(calc, ObjectiveTerm{Kind: schema.MetricAUC, Target: "label"}))

		_, err = mo.Optimize(context.Background(), 5)
		require.NoError(t, err)
		for _, rec := range mo.Records() {
			sum := rec.Params["w1"] + rec.Params["w2"]
			assert.LessOrEqual(t, sum, 1.0+1e-9)
			assert.GreaterOrEqual(t, rec.Params["w1"], 0.0)
			assert.GreaterOrEqual(t, rec.Params["w2"], 0.0)
		}
	})

	t.Run("first-order and power parameters", func(t *testing.T) {
		calc, err := NewCalculator(ds, []string{"a", "b"}, schema.EquationProduct, "")
		require.NoError(t, err)
		space := DefaultSearchSpace(schema.EquationProduct)
		space.FirstOrder = true
		space.Power = true
		mo, err := NewMultipleObjective(schema.Maximize, "", space, backend)
		require.NoError(t, err)
		require.NoError(t, mo.AddCalculator(calc, ObjectiveTerm{Kind: schema.MetricAUC, Target: "label"}))

		_, err = mo.Optimize(context.Background(), 5)
		require.NoError(t, err)
		for _, rec := range mo.Records() {
			for _, name := range []string{"f1", "f2", "p1", "p2"} {
				assert.Contains(t, rec.Params, name)
			}
			assert.GreaterOrEqual(t, rec.Params["f1"], space.FirstOrderLow)
			assert.LessOrEqual(t, rec.Params["f1"], space.FirstOrderHigh)
			assert.Greater(t, rec.Params["p1"], 0.0)
			assert.LessOrEqual(t, rec.Params["p1"], space.PowerHigh)
		}
	})

	t.Run("free-form searches expression variables", func(t *testing.T) {
		calc, err := NewCalculator(ds, []string{"a", "b"}, schema.EquationFreeForm,
			"w1*targets[0] + w2*log1p(targets[1]) + targets[0]^p1")
		require.NoError(t, err)
		space := DefaultSearchSpace(schema.EquationFreeForm)
		mo, err := NewMultipleObjective(schema.Maximize, "", space, backend)
		require.NoError(t, err)
		require.NoError(t, mo.AddCalculator(calc, ObjectiveTerm{Kind: schema.MetricAUC, Target: "label"}))

		_, err = mo.Optimize(context.Background(), 5)
		require.NoError(t, err)

		seen := make(map[float64]bool)
		for _, rec := range mo.Records() {
			for _, name := range []string{"w1", "w2", "p1"} {
				require.Contains(t, rec.Params, name)
			}
			assert.GreaterOrEqual(t, rec.Params["w1"], space.WeightLow)
			assert.LessOrEqual(t, rec.Params["w1"], space.WeightHigh)
			// p-named variables draw from the power bounds.
			assert.Greater(t, rec.Params["p1"], 0.0)
			assert.LessOrEqual(t, rec.Params["p1"], space.PowerHigh)
			seen[rec.Params["w1"]] = true
		}
		assert.Greater(t, len(seen), 1, "trials should explore distinct weights")
	})

	t.Run("two calculators get prefixed names", func(t *testing.T) {
		calcA, err := NewCalculator(ds, []string{"a"}, schema.EquationSum, "")
		require.NoError(t, err)
		calcB, err := NewCalculator(ds, []string{"b"}, schema.EquationSum, "")
		require.NoError(t, err)
		mo, err := NewMultipleObjective(schema.Maximize, "", DefaultSearchSpace(schema.EquationSum), backend)
		require.NoError(t, err)
		require.NoError(t, mo.AddCalculator(calcA, ObjectiveTerm{Kind: schema.MetricAUC, Target: "label"}))
		require.NoError(t, mo.AddCalculator(calcB, ObjectiveTerm{Kind: schema.MetricAUC, Target: "label"}))

		_, err = mo.Optimize(context.Background(), 3)
		require.NoError(t, err)
		for _, rec := range mo.Records() {
			assert.Contains(t, rec.Params, "c1_w1")
			assert.Contains(t, rec.Params, "c2_w1")
		}
	})
}
