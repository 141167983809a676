package schema

import "errors"

// Sentinel errors shared across packages. Callers classify failures with
// errors.Is and wrap them with fmt.Errorf("%w: ...") for detail.
var (
	// ErrConfig indicates an invalid configuration or construction argument.
	ErrConfig = errors.New("invalid configuration")

	// ErrExpression indicates a free-form expression that failed to parse
	// or evaluate.
	ErrExpression = errors.New("invalid expression")

	// ErrDomain indicates input values outside a metric's numeric domain.
	ErrDomain = errors.New("value outside domain")

	// ErrMetric indicates a metric that cannot be computed on the given
	// inputs, such as mismatched lengths or degenerate data.
	ErrMetric = errors.New("metric not computable")

	// ErrInvalidTarget indicates a target column that violates a metric's
	// label contract, such as non-binary labels for AUC.
	ErrInvalidTarget = errors.New("invalid target column")

	// ErrBackend indicates a search or storage backend failure.
	ErrBackend = errors.New("backend failure")
)
