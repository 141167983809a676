package core

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/c-bata/goptuna"
	"github.com/c-bata/goptuna/tpe"
	"github.com/scorefuse/scorefuse/schema"
)

// Proposer hands out parameter values for one trial. Implementations are
// provided by search backends; names identify parameters across trials.
type Proposer interface {
	SuggestFloat(name string, low, high float64) (float64, error)
	SuggestLogFloat(name string, low, high float64) (float64, error)
}

// BestResult is the backend's view of the best trial it observed.
type BestResult struct {
	Params map[string]float64
	Value  float64
	Trials int
}

// Backend runs a study: it repeatedly calls the objective with a Proposer
// and steers future proposals from past results.
type Backend interface {
	Name() string
	Run(ctx context.Context, direction schema.Direction, nTrials int, objective func(Proposer) (float64, error)) (BestResult, error)
}

// NewBackend constructs a search backend by kind. Seed makes the random
// backend fully deterministic and seeds the TPE sampler.
func NewBackend(kind schema.SearcherKind, seed int64) (Backend, error) {
	switch kind {
	case schema.TPESearcher:
		return &tpeBackend{seed: seed}, nil
	case schema.RandomSearcher:
		return &randomBackend{seed: seed}, nil
	default:
		return nil, fmt.Errorf("%w: unknown search backend %q", schema.ErrConfig, kind)
	}
}

// tpeBackend adapts a goptuna TPE study: random warmup trials followed by
// tree-structured Parzen estimator proposals.
type tpeBackend struct {
	seed int64
}

func (b *tpeBackend) Name() string { return string(schema.TPESearcher) }

func (b *tpeBackend) Run(ctx context.Context, direction schema.Direction, nTrials int, objective func(Proposer) (float64, error)) (BestResult, error) {
	dir := goptuna.StudyDirectionMaximize
	if direction == schema.Minimize {
		dir = goptuna.StudyDirectionMinimize
	}
	study, err := goptuna.CreateStudy(
		"scorefuse",
		goptuna.StudyOptionDirection(dir),
		goptuna.StudyOptionSampler(tpe.NewSampler(tpe.SamplerOptionSeed(b.seed))),
		goptuna.StudyOptionLogger(nil),
	)
	if err != nil {
		return BestResult{}, err
	}
	if ctx != nil {
		study.WithContext(ctx)
	}

	err = study.Optimize(func(trial goptuna.Trial) (float64, error) {
		return objective(&goptunaProposer{trial: &trial})
	}, nTrials)
	if err != nil {
		return BestResult{}, err
	}

	value, err := study.GetBestValue()
	if err != nil {
		return BestResult{}, err
	}
	rawParams, err := study.GetBestParams()
	if err != nil {
		return BestResult{}, err
	}
	params := make(map[string]float64, len(rawParams))
	for name, raw := range rawParams {
		if v, ok := raw.(float64); ok {
			params[name] = v
		}
	}
	return BestResult{Params: params, Value: value, Trials: nTrials}, nil
}

type goptunaProposer struct {
	trial *goptuna.Trial
}

func (p *goptunaProposer) SuggestFloat(name string, low, high float64) (float64, error) {
	return p.trial.SuggestFloat(name, low, high)
}

func (p *goptunaProposer) SuggestLogFloat(name string, low, high float64) (float64, error) {
	return p.trial.SuggestLogFloat(name, low, high)
}

// randomBackend draws every parameter uniformly at random. It never learns,
// which makes it the reproducible baseline for tests and sanity checks.
type randomBackend struct {
	seed int64
}

func (b *randomBackend) Name() string { return string(schema.RandomSearcher) }

func (b *randomBackend) Run(ctx context.Context, direction schema.Direction, nTrials int, objective func(Proposer) (float64, error)) (BestResult, error) {
	rng := rand.New(rand.NewSource(b.seed))
	best := BestResult{Value: math.Inf(-1)}
	if direction == schema.Minimize {
		best.Value = math.Inf(1)
	}
	for t := 0; t < nTrials; t++ {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return best, ctx.Err()
			default:
			}
		}
		p := &randomProposer{rng: rng, params: make(map[string]float64)}
		value, err := objective(p)
		if err != nil {
			return best, err
		}
		improved := value > best.Value
		if direction == schema.Minimize {
			improved = value < best.Value
		}
		if improved || best.Params == nil {
			best.Value = value
			best.Params = p.params
		}
		best.Trials++
	}
	return best, nil
}

type randomProposer struct {
	rng    *rand.Rand
	params map[string]float64
}

func (p *randomProposer) SuggestFloat(name string, low, high float64) (float64, error) {
	if low > high {
		return 0, fmt.Errorf("%w: bounds [%v, %v] are inverted for %q", schema.ErrBackend, low, high, name)
	}
	v := low + p.rng.Float64()*(high-low)
	p.params[name] = v
	return v, nil
}

func (p *randomProposer) SuggestLogFloat(name string, low, high float64) (float64, error) {
	if low <= 0 || low > high {
		return 0, fmt.Errorf("%w: log bounds [%v, %v] are invalid for %q", schema.ErrBackend, low, high, name)
	}
	v := math.Exp(math.Log(low) + p.rng.Float64()*(math.Log(high)-math.Log(low)))
	p.params[name] = v
	return v, nil
}
