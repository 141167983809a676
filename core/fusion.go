// Package core implements score fusion, the evaluation metric library and
// the multi-objective search loop.
package core

import (
	"fmt"
	"math"

	"github.com/scorefuse/scorefuse/core/expr"
	"github.com/scorefuse/scorefuse/schema"
)

// fusionEpsilon guards power terms: a base below this with a fractional
// exponent is clamped so the fused score stays real-valued.
const fusionEpsilon = 1e-9

// FusionParams holds the per-column parameters proposed for one fusion pass.
// Weights is required; Powers and FirstOrder are optional and, when present,
// must match Weights in length. FirstOrder switches the product equation to
// the blended form (1 + F_j*v)^P_j. Vars binds the search variables of a
// free-form expression and is ignored by the closed-form equations.
type FusionParams struct {
	Weights    []float64
	Powers     []float64
	FirstOrder []float64
	Vars       map[string]float64
}

func (p FusionParams) validate(columns int, equation schema.EquationType) error {
	// The blended product form draws its per-column weights from FirstOrder,
	// so plain weights are optional there.
	if p.FirstOrder == nil || p.Weights != nil {
		if len(p.Weights) != columns {
			return fmt.Errorf("%w: got %d weights for %d columns", schema.ErrConfig, len(p.Weights), columns)
		}
	}
	if p.Powers != nil && len(p.Powers) != columns {
		return fmt.Errorf("%w: got %d powers for %d columns", schema.ErrConfig, len(p.Powers), columns)
	}
	if p.FirstOrder != nil {
		if equation != schema.EquationProduct {
			return fmt.Errorf("%w: first-order weights require the product equation", schema.ErrConfig)
		}
		if len(p.FirstOrder) != columns {
			return fmt.Errorf("%w: got %d first-order weights for %d columns", schema.ErrConfig, len(p.FirstOrder), columns)
		}
	}
	return nil
}

// Fuse combines the selected columns of ds into one fused score per row.
//
//   - sum:      score_i = sum_j w_j * v_ij^p_j
//   - product:  score_i = prod_j v_ij^(w_j*p_j)
//   - product with first-order weights F:
//     score_i = prod_j (1 + F_j*v_ij)^P_j
//   - free-form: the compiled expression evaluated per row with
//     targets[j] bound to column j and params.Vars binding any w*/p*
//     variables the expression declares
//
// Powers default to 1 when absent. For free-form, program must be non-nil
// and only params.Vars is consulted.
func Fuse(ds *schema.Dataset, columns []string, equation schema.EquationType, program *expr.Program, params FusionParams) ([]float64, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no columns selected for fusion", schema.ErrConfig)
	}
	views := make([][]float64, len(columns))
	for j, name := range columns {
		col, ok := ds.View(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown column %q", schema.ErrConfig, name)
		}
		views[j] = col
	}

	switch equation {
	case schema.EquationSum:
		if err := params.validate(len(columns), equation); err != nil {
			return nil, err
		}
		return fuseSum(views, params), nil
	case schema.EquationProduct:
		if err := params.validate(len(columns), equation); err != nil {
			return nil, err
		}
		return fuseProduct(views, params), nil
	case schema.EquationFreeForm:
		if program == nil {
			return nil, fmt.Errorf("%w: free-form equation requires an expression", schema.ErrConfig)
		}
		if program.MaxIndex() >= len(columns) {
			return nil, fmt.Errorf("%w: expression references targets[%d] but only %d columns are selected",
				schema.ErrExpression, program.MaxIndex(), len(columns))
		}
		return fuseFreeForm(views, program, params.Vars)
	default:
		return nil, fmt.Errorf("%w: unknown equation type %q", schema.ErrConfig, equation)
	}
}

func fuseSum(views [][]float64, params FusionParams) []float64 {
	rows := len(views[0])
	out := make([]float64, rows)
	for i := range rows {
		var acc float64
		for j, col := range views {
			v := col[i]
			if params.Powers != nil {
				v = safePow(v, params.Powers[j])
			}
			acc += params.Weights[j] * v
		}
		out[i] = acc
	}
	return out
}

func fuseProduct(views [][]float64, params FusionParams) []float64 {
	rows := len(views[0])
	out := make([]float64, rows)
	for i := range rows {
		acc := 1.0
		for j, col := range views {
			v := col[i]
			if params.FirstOrder != nil {
				// Blended form: the first-order weight shifts the base
				// and the power weight alone drives the exponent.
				p := 1.0
				if params.Powers != nil {
					p = params.Powers[j]
				}
				acc *= safePow(1+params.FirstOrder[j]*v, p)
				continue
			}
			e := params.Weights[j]
			if params.Powers != nil {
				e *= params.Powers[j]
			}
			acc *= safePow(v, e)
		}
		out[i] = acc
	}
	return out
}

func fuseFreeForm(views [][]float64, program *expr.Program, vars map[string]float64) ([]float64, error) {
	rows := len(views[0])
	out := make([]float64, rows)
	targets := make([]float64, len(views))
	for i := range rows {
		for j, col := range views {
			targets[j] = col[i]
		}
		v, err := program.EvalWith(targets, vars)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// safePow is math.Pow with the base clamped to fusionEpsilon when it is too
// small for a fractional exponent to stay real-valued.
func safePow(base, exp float64) float64 {
	if base < fusionEpsilon && exp != math.Trunc(exp) {
		base = fusionEpsilon
	}
	return math.Pow(base, exp)
}
