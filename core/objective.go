package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/scorefuse/scorefuse/core/expr"
	"github.com/scorefuse/scorefuse/schema"
)

// sentinelWorst is the objective value reported for failed trials so the
// search can continue without ever preferring them.
const sentinelWorst = 1e18

// ObjectiveTerm is one evaluation objective: a metric applied to a target
// column, with an optional metric hyperparameter and a combination weight.
type ObjectiveTerm struct {
	Kind      schema.MetricKind
	Target    string
	Hyper     *float64             // Metric hyperparameter (coverage, bins), nil for default
	Weighting schema.PairWeighting // Inverse-pairs weighting, empty for count
	Weight    float64              // Combination weight, zero means 1
}

func (t ObjectiveTerm) hyperOr(def float64) float64 {
	if t.Hyper == nil {
		return def
	}
	return *t.Hyper
}

func (t ObjectiveTerm) combineWeight() float64 {
	if t.Weight == 0 {
		return 1
	}
	return t.Weight
}

// SearchSpace describes the fusion parameters proposed per trial and their
// bounds.
type SearchSpace struct {
	Power      bool // Propose per-column exponents
	FirstOrder bool // Product only: propose first-order weights on a log scale
	Dirichlet  bool // Constrain weights to sum to 1 via stick-breaking

	WeightLow, WeightHigh         float64
	PowerLow, PowerHigh           float64
	FirstOrderLow, FirstOrderHigh float64
}

// DefaultSearchSpace returns the conventional bounds for an equation type:
// weights in [0, 1] for sum, [-1, 1] for product, powers in (0, 3] and
// first-order weights log-uniform in [1e-3, 1e6].
func DefaultSearchSpace(equation schema.EquationType) SearchSpace {
	space := SearchSpace{
		WeightLow: 0, WeightHigh: 1,
		PowerLow: 1e-3, PowerHigh: 3,
		FirstOrderLow: 1e-3, FirstOrderHigh: 1e6,
	}
	if equation == schema.EquationProduct {
		space.WeightLow = -1
	}
	return space
}

func (s SearchSpace) validate() error {
	if s.WeightLow >= s.WeightHigh {
		return fmt.Errorf("%w: weight bounds [%v, %v] are empty", schema.ErrConfig, s.WeightLow, s.WeightHigh)
	}
	if s.Power && (s.PowerLow <= 0 || s.PowerLow >= s.PowerHigh) {
		return fmt.Errorf("%w: power bounds (%v, %v] must be positive and ordered", schema.ErrConfig, s.PowerLow, s.PowerHigh)
	}
	if s.FirstOrder && (s.FirstOrderLow <= 0 || s.FirstOrderLow >= s.FirstOrderHigh) {
		return fmt.Errorf("%w: first-order bounds [%v, %v] must be positive and ordered", schema.ErrConfig, s.FirstOrderLow, s.FirstOrderHigh)
	}
	if s.Dirichlet && s.WeightLow < 0 {
		return fmt.Errorf("%w: dirichlet weights require a non-negative lower bound", schema.ErrConfig)
	}
	return nil
}

// TrialSink receives every finished trial record. Implementations persist
// trials to a log file or a database.
type TrialSink interface {
	Append(rec schema.TrialRecord) error
}

type boundTerm struct {
	term ObjectiveTerm
	calc int // index into calcs
}

// MultipleObjective drives the search: it owns the calculators, the
// objective terms, the combination formula and the trial history, and runs
// the configured backend over the fusion parameter space.
type MultipleObjective struct {
	direction schema.Direction
	formula   *expr.Program // nil means weighted sum of term values
	space     SearchSpace
	backend   Backend
	sinks     []TrialSink

	state   schema.StudyState
	calcs   []*Calculator
	terms   []boundTerm
	records []schema.TrialRecord
	errs    []error
}

// NewMultipleObjective creates a study in the Configuring state. formula,
// when non-empty, combines term values via targets[i]; otherwise term values
// are combined as a weighted sum.
func NewMultipleObjective(direction schema.Direction, formula string, space SearchSpace, backend Backend, sinks ...TrialSink) (*MultipleObjective, error) {
	if _, ok := schema.ValidDirections[direction]; !ok {
		return nil, fmt.Errorf("%w: unknown direction %q", schema.ErrConfig, direction)
	}
	if backend == nil {
		return nil, fmt.Errorf("%w: nil search backend", schema.ErrConfig)
	}
	if err := space.validate(); err != nil {
		return nil, err
	}
	var program *expr.Program
	if formula != "" {
		var err error
		program, err = expr.Compile(formula)
		if err != nil {
			return nil, err
		}
		// Search variables only make sense inside a fusion expression; the
		// combination formula has nothing to bind them.
		if vars := program.Vars(); len(vars) > 0 {
			return nil, fmt.Errorf("%w: formula cannot reference search variable %q", schema.ErrExpression, vars[0])
		}
	}
	return &MultipleObjective{
		direction: direction,
		formula:   program,
		space:     space,
		backend:   backend,
		sinks:     sinks,
		state:     schema.StudyConfiguring,
	}, nil
}

// State returns the current lifecycle state.
func (m *MultipleObjective) State() schema.StudyState { return m.state }

// Records returns the trial history accumulated so far.
func (m *MultipleObjective) Records() []schema.TrialRecord {
	out := make([]schema.TrialRecord, len(m.records))
	copy(out, m.records)
	return out
}

// AddCalculator registers a calculator with its objective terms. Only legal
// while the study is Configuring. Terms are validated eagerly so that bad
// metric kinds or missing target columns fail before any trial runs.
func (m *MultipleObjective) AddCalculator(c *Calculator, terms ...ObjectiveTerm) error {
	if m.state != schema.StudyConfiguring {
		return fmt.Errorf("%w: cannot add calculators in state %q", schema.ErrConfig, m.state)
	}
	if c == nil {
		return fmt.Errorf("%w: nil calculator", schema.ErrConfig)
	}
	if len(terms) == 0 {
		return fmt.Errorf("%w: calculator needs at least one objective term", schema.ErrConfig)
	}
	for _, term := range terms {
		if _, ok := schema.ValidMetricKinds[term.Kind]; !ok {
			return fmt.Errorf("%w: unknown metric kind %q", schema.ErrConfig, term.Kind)
		}
		if !c.ds.HasColumn(term.Target) {
			return fmt.Errorf("%w: unknown target column %q", schema.ErrConfig, term.Target)
		}
		if term.Weighting != "" {
			if _, ok := schema.ValidPairWeightings[term.Weighting]; !ok {
				return fmt.Errorf("%w: unknown pair weighting %q", schema.ErrConfig, term.Weighting)
			}
		}
	}

	ci := -1
	for i, existing := range m.calcs {
		if existing == c {
			ci = i
			break
		}
	}
	if ci < 0 {
		m.calcs = append(m.calcs, c)
		ci = len(m.calcs) - 1
	}
	for _, term := range terms {
		m.terms = append(m.terms, boundTerm{term: term, calc: ci})
	}
	return nil
}

// Optimize runs nTrials trials and returns the study summary. Individual
// trial failures are recorded and the search continues; the study only fails
// when every trial fails or the backend itself breaks.
func (m *MultipleObjective) Optimize(ctx context.Context, nTrials int) (*schema.StudyResult, error) {
	if m.state != schema.StudyConfiguring {
		return nil, fmt.Errorf("%w: optimize called in state %q", schema.ErrConfig, m.state)
	}
	if len(m.terms) == 0 {
		return nil, fmt.Errorf("%w: no objective terms configured", schema.ErrConfig)
	}
	if nTrials < 1 {
		return nil, fmt.Errorf("%w: trial count must be >= 1, got %d", schema.ErrConfig, nTrials)
	}
	if m.formula != nil && m.formula.MaxIndex() >= len(m.terms) {
		return nil, fmt.Errorf("%w: formula references targets[%d] but only %d terms are configured",
			schema.ErrExpression, m.formula.MaxIndex(), len(m.terms))
	}

	m.state = schema.StudySearching
	started := time.Now()

	trial := 0
	_, err := m.backend.Run(ctx, m.direction, nTrials, func(p Proposer) (float64, error) {
		rec, err := m.runTrial(trial, p)
		trial++
		if err != nil {
			// Infrastructure failure: abort the whole search.
			return 0, err
		}
		m.records = append(m.records, rec)
		for _, sink := range m.sinks {
			if sinkErr := sink.Append(rec); sinkErr != nil {
				return 0, fmt.Errorf("trial sink: %w", sinkErr)
			}
		}
		if rec.State == schema.TrialFailed {
			if m.direction == schema.Minimize {
				return sentinelWorst, nil
			}
			return -sentinelWorst, nil
		}
		return rec.Value, nil
	})
	if err != nil {
		m.state = schema.StudyFailed
		return nil, fmt.Errorf("%w: %w", schema.ErrBackend, err)
	}

	result := m.summarize(started)
	if result == nil {
		m.state = schema.StudyFailed
		return nil, fmt.Errorf("all %d trials failed: %w", len(m.records), errors.Join(m.errs...))
	}
	m.state = schema.StudyCompleted
	return result, nil
}

// runTrial proposes parameters, fuses and evaluates every term, then
// combines the term values. Evaluation failures return a failed record with
// a nil error; only proposal failures propagate.
func (m *MultipleObjective) runTrial(trial int, p Proposer) (schema.TrialRecord, error) {
	started := time.Now()
	rp := &recordingProposer{inner: p, params: make(map[string]float64)}

	rec := schema.TrialRecord{
		Trial:  trial,
		State:  schema.TrialComplete,
		Params: rp.params,
	}
	fail := func(err error) (schema.TrialRecord, error) {
		m.errs = append(m.errs, fmt.Errorf("trial %d: %w", trial, err))
		rec.State = schema.TrialFailed
		rec.Error = err.Error()
		rec.Reward = -sentinelWorst
		rec.Elapsed = time.Since(started)
		rec.Time = time.Now()
		return rec, nil
	}

	for ci, calc := range m.calcs {
		params, err := m.proposeParams(rp, ci, calc)
		if err != nil {
			return rec, err // proposal failure is infrastructural
		}
		if err := calc.CreateScoreColumn(params); err != nil {
			return fail(err)
		}
	}

	termValues := make([]float64, len(m.terms))
	for i, bt := range m.terms {
		v, err := m.calcs[bt.calc].EvaluateTerm(bt.term)
		if err != nil {
			return fail(err)
		}
		termValues[i] = v
	}
	rec.TermValues = termValues

	var value float64
	if m.formula != nil {
		v, err := m.formula.Eval(termValues)
		if err != nil {
			return fail(err)
		}
		value = v
	} else {
		for i, bt := range m.terms {
			value += bt.term.combineWeight() * termValues[i]
		}
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fail(fmt.Errorf("%w: non-finite objective value", schema.ErrMetric))
	}

	rec.Value = value
	rec.Reward = value
	if m.direction == schema.Minimize {
		rec.Reward = -value
	}
	rec.Elapsed = time.Since(started)
	rec.Time = time.Now()
	return rec, nil
}

// proposeParams draws one calculator's fusion parameters from the proposer.
// Parameter names are prefixed with the calculator ordinal when the study
// holds more than one calculator.
func (m *MultipleObjective) proposeParams(p Proposer, ci int, calc *Calculator) (FusionParams, error) {
	var prefix string
	if len(m.calcs) > 1 {
		prefix = fmt.Sprintf("c%d_", ci+1)
	}
	n := calc.ParamCount()
	var params FusionParams

	// Free-form fusion searches the variables the expression declares: p*
	// names draw from the power bounds, w* names from the weight bounds.
	if calc.Equation() == schema.EquationFreeForm {
		vars := calc.ExpressionVars()
		if len(vars) == 0 {
			return params, nil
		}
		params.Vars = make(map[string]float64, len(vars))
		for _, name := range vars {
			low, high := m.space.WeightLow, m.space.WeightHigh
			if name[0] == 'p' {
				low, high = m.space.PowerLow, m.space.PowerHigh
			}
			v, err := p.SuggestFloat(prefix+name, low, high)
			if err != nil {
				return params, err
			}
			params.Vars[name] = v
		}
		return params, nil
	}

	if m.space.FirstOrder && calc.Equation() == schema.EquationProduct {
		params.FirstOrder = make([]float64, n)
		for j := range n {
			v, err := p.SuggestLogFloat(fmt.Sprintf("%sf%d", prefix, j+1), m.space.FirstOrderLow, m.space.FirstOrderHigh)
			if err != nil {
				return params, err
			}
			params.FirstOrder[j] = v
		}
	} else if m.space.Dirichlet {
		// Stick-breaking keeps the proposed weights on the simplex.
		params.Weights = make([]float64, n)
		remaining := 1.0
		for j := range n - 1 {
			v, err := p.SuggestFloat(fmt.Sprintf("%sw%d", prefix, j+1), 0, remaining)
			if err != nil {
				return params, err
			}
			params.Weights[j] = v
			remaining -= v
		}
		params.Weights[n-1] = remaining
	} else {
		params.Weights = make([]float64, n)
		for j := range n {
			v, err := p.SuggestFloat(fmt.Sprintf("%sw%d", prefix, j+1), m.space.WeightLow, m.space.WeightHigh)
			if err != nil {
				return params, err
			}
			params.Weights[j] = v
		}
	}

	if m.space.Power {
		params.Powers = make([]float64, n)
		for j := range n {
			v, err := p.SuggestFloat(fmt.Sprintf("%sp%d", prefix, j+1), m.space.PowerLow, m.space.PowerHigh)
			if err != nil {
				return params, err
			}
			params.Powers[j] = v
		}
	}
	return params, nil
}

// summarize picks the best completed trial, or nil when none completed.
func (m *MultipleObjective) summarize(started time.Time) *schema.StudyResult {
	best := -1
	for i, rec := range m.records {
		if rec.State != schema.TrialComplete {
			continue
		}
		if best < 0 || rec.Reward > m.records[best].Reward {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	var failed int
	for _, rec := range m.records {
		if rec.State == schema.TrialFailed {
			failed++
		}
	}
	return &schema.StudyResult{
		Direction:  m.direction,
		BestTrial:  m.records[best].Trial,
		BestValue:  m.records[best].Value,
		BestParams: m.records[best].Params,
		Trials:     len(m.records),
		Failed:     failed,
		Elapsed:    time.Since(started),
	}
}

// recordingProposer captures every suggested parameter by name so trial
// records carry the full parameter set.
type recordingProposer struct {
	inner  Proposer
	params map[string]float64
}

func (r *recordingProposer) SuggestFloat(name string, low, high float64) (float64, error) {
	v, err := r.inner.SuggestFloat(name, low, high)
	if err == nil {
		r.params[name] = v
	}
	return v, err
}

func (r *recordingProposer) SuggestLogFloat(name string, low, high float64) (float64, error) {
	v, err := r.inner.SuggestLogFloat(name, low, high)
	if err == nil {
		r.params[name] = v
	}
	return v, err
}
