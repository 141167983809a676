package core

import (
	"fmt"
	"reflect"

	"github.com/scorefuse/scorefuse/core/expr"
	"github.com/scorefuse/scorefuse/schema"
)

// Calculator binds a dataset to a fusion recipe: the selected columns, the
// equation type and an optional free-form expression. It owns the fused
// score column and the samplers attached to target columns.
//
// A Calculator is not safe for concurrent use: the search loop mutates the
// score column on every trial.
type Calculator struct {
	ds       *schema.Dataset
	columns  []string
	equation schema.EquationType
	program  *expr.Program

	score       []float64
	samplers    map[string]Sampler
	samplerOpts map[string]any
}

// NewCalculator validates the fusion recipe against the dataset and returns
// a ready calculator. For the free-form equation, expression is compiled
// once here; for sum and product, expression must be empty.
func NewCalculator(ds *schema.Dataset, columns []string, equation schema.EquationType, expression string) (*Calculator, error) {
	if ds == nil {
		return nil, fmt.Errorf("%w: nil dataset", schema.ErrConfig)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no columns selected", schema.ErrConfig)
	}
	if _, ok := schema.ValidEquationTypes[equation]; !ok {
		return nil, fmt.Errorf("%w: unknown equation type %q", schema.ErrConfig, equation)
	}
	for _, name := range columns {
		if !ds.HasColumn(name) {
			return nil, fmt.Errorf("%w: unknown column %q", schema.ErrConfig, name)
		}
	}

	var program *expr.Program
	if equation == schema.EquationFreeForm {
		if expression == "" {
			return nil, fmt.Errorf("%w: free-form equation requires an expression", schema.ErrConfig)
		}
		var err error
		program, err = expr.Compile(expression)
		if err != nil {
			return nil, err
		}
		if program.MaxIndex() >= len(columns) {
			return nil, fmt.Errorf("%w: expression references targets[%d] but only %d columns are selected",
				schema.ErrExpression, program.MaxIndex(), len(columns))
		}
	} else if expression != "" {
		return nil, fmt.Errorf("%w: expression is only valid with the free-form equation", schema.ErrConfig)
	}

	return &Calculator{
		ds:          ds,
		columns:     append([]string(nil), columns...),
		equation:    equation,
		program:     program,
		samplers:    make(map[string]Sampler),
		samplerOpts: make(map[string]any),
	}, nil
}

// Columns returns the selected column names in fusion order.
func (c *Calculator) Columns() []string {
	return append([]string(nil), c.columns...)
}

// Equation returns the fusion equation type.
func (c *Calculator) Equation() schema.EquationType { return c.equation }

// ParamCount returns the number of per-column parameters one weight vector
// needs for this calculator.
func (c *Calculator) ParamCount() int { return len(c.columns) }

// ExpressionVars returns the search variables a free-form expression
// declares, in first appearance order. Nil for sum and product.
func (c *Calculator) ExpressionVars() []string {
	if c.program == nil {
		return nil
	}
	return c.program.Vars()
}

// CreateScoreColumn fuses the selected columns with the given parameters,
// replacing any previously fused score.
func (c *Calculator) CreateScoreColumn(params FusionParams) error {
	score, err := Fuse(c.ds, c.columns, c.equation, c.program, params)
	if err != nil {
		return err
	}
	c.score = score
	return nil
}

// Score returns a copy of the fused score column.
func (c *Calculator) Score() ([]float64, error) {
	if c.score == nil {
		return nil, fmt.Errorf("%w: score column not created yet", schema.ErrConfig)
	}
	out := make([]float64, len(c.score))
	copy(out, c.score)
	return out, nil
}

// InitializeFrequencySampler attaches a frequency sampler to a target
// column. Calling it again with identical options is a no-op; different
// options rebuild the sampler.
func (c *Calculator) InitializeFrequencySampler(column string, opts FrequencyOptions) error {
	if prev, ok := c.samplerOpts[column]; ok && reflect.DeepEqual(prev, opts) {
		return nil
	}
	values, ok := c.ds.View(column)
	if !ok {
		return fmt.Errorf("%w: unknown column %q", schema.ErrConfig, column)
	}
	s, err := NewFrequencySampler(values, opts)
	if err != nil {
		return err
	}
	c.samplers[column] = s
	c.samplerOpts[column] = opts
	return nil
}

// InitializeGiniSampler attaches a Gini-stratified sampler to a target
// column, with the same idempotency contract as the frequency variant.
func (c *Calculator) InitializeGiniSampler(column string, opts GiniOptions) error {
	if prev, ok := c.samplerOpts[column]; ok && reflect.DeepEqual(prev, opts) {
		return nil
	}
	values, ok := c.ds.View(column)
	if !ok {
		return fmt.Errorf("%w: unknown column %q", schema.ErrConfig, column)
	}
	s, err := NewGiniSampler(values, opts)
	if err != nil {
		return err
	}
	c.samplers[column] = s
	c.samplerOpts[column] = opts
	return nil
}

// SamplerFor returns the sampler attached to a column, or nil.
func (c *Calculator) SamplerFor(column string) Sampler {
	return c.samplers[column]
}

// EvaluateTerm computes one objective term against the current score column.
func (c *Calculator) EvaluateTerm(term ObjectiveTerm) (float64, error) {
	if c.score == nil {
		return 0, fmt.Errorf("%w: score column not created yet", schema.ErrConfig)
	}
	target, ok := c.ds.View(term.Target)
	if !ok {
		return 0, fmt.Errorf("%w: unknown target column %q", schema.ErrConfig, term.Target)
	}

	switch term.Kind {
	case schema.MetricAUC:
		return AUC(c.score, target)
	case schema.MetricWeightedAUC:
		var bounds []Boundary
		if s := c.samplers[term.Target]; s != nil {
			bounds = s.Boundaries()
		}
		return WeightedOrderAUC(c.score, target, bounds)
	case schema.MetricPortfolio:
		return PortfolioConcentration(c.score, target, term.hyperOr(0.95))
	case schema.MetricDistinctPortfolio:
		return DistinctPortfolioConcentration(c.score, target, term.hyperOr(0.95))
	case schema.MetricLogMSE:
		return LogMSE(c.score, target)
	case schema.MetricTau:
		return KendallTau(c.score, target, int(term.hyperOr(100)))
	case schema.MetricInversePairs:
		return InversePairs(c.score, target, term.Weighting)
	case schema.MetricNegRankRatio:
		return NegativeRankRatio(c.score, target)
	case schema.MetricCorrelation:
		return Correlation(c.score, target)
	default:
		return 0, fmt.Errorf("%w: unknown metric kind %q", schema.ErrMetric, term.Kind)
	}
}

// OverallScore combines term values as a weighted sum using each term's
// combination weight.
func (c *Calculator) OverallScore(terms []ObjectiveTerm) (float64, error) {
	var acc float64
	for _, term := range terms {
		v, err := c.EvaluateTerm(term)
		if err != nil {
			return 0, err
		}
		acc += term.combineWeight() * v
	}
	return acc, nil
}
