package schema

// Custom string types for type safety.
type (
	// MetricKind identifies an evaluation metric.
	MetricKind string

	// EquationType represents how selected columns are fused into a score.
	EquationType string

	// Direction represents the optimization direction of a study.
	Direction string

	// OutputMode represents the format of the output.
	OutputMode string

	// DatabaseBackend represents the database backend for trial storage.
	DatabaseBackend string

	// SearcherKind identifies a search backend.
	SearcherKind string

	// SamplerKind identifies a boundary sampler.
	SamplerKind string

	// TrialState represents the terminal state of a single trial.
	TrialState string

	// StudyState represents the lifecycle state of an optimization study.
	StudyState string

	// PairWeighting represents how rank inversions are weighted.
	PairWeighting string
)

// All metric kinds supported.
const (
	MetricAUC               MetricKind = "auc"
	MetricWeightedAUC       MetricKind = "wuauc"
	MetricPortfolio         MetricKind = "portfolio"
	MetricDistinctPortfolio MetricKind = "distinct_portfolio"
	MetricLogMSE            MetricKind = "logmse"
	MetricTau               MetricKind = "tau"
	MetricInversePairs      MetricKind = "inverse_pairs"
	MetricNegRankRatio      MetricKind = "neg_rank_ratio"
	MetricCorrelation       MetricKind = "corr"
)

// All equation types supported.
const (
	EquationSum      EquationType = "sum" // default
	EquationProduct  EquationType = "product"
	EquationFreeForm EquationType = "free-form"
)

// All optimization directions supported.
const (
	Maximize Direction = "maximize" // default
	Minimize Direction = "minimize"
)

// All output modes supported.
const (
	TextOut OutputMode = "text" // default
	CSVOut  OutputMode = "csv"
	JSONOut OutputMode = "json"
)

// All store backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// All search backends supported.
const (
	TPESearcher    SearcherKind = "tpe" // default
	RandomSearcher SearcherKind = "random"
)

// All sampler kinds supported.
const (
	NoSampler        SamplerKind = "none" // default
	FrequencySampler SamplerKind = "frequency"
	GiniSampler      SamplerKind = "gini"
)

// All trial states.
const (
	TrialComplete TrialState = "complete"
	TrialFailed   TrialState = "failed"
)

// All study states. A study moves Configuring -> Searching -> Completed,
// or to Failed when every trial fails.
const (
	StudyConfiguring StudyState = "configuring"
	StudySearching   StudyState = "searching"
	StudyCompleted   StudyState = "completed"
	StudyFailed      StudyState = "failed"
)

// All inverse-pair weighting schemes supported.
const (
	CountWeighting       PairWeighting = "count" // default
	LinearWeighting      PairWeighting = "linear"
	ExponentialWeighting PairWeighting = "exponential"
)

// MetricInfo documents a metric's contract: its value range, its monotonic
// direction and whether it requires a binary target column.
type MetricInfo struct {
	Kind           MetricKind
	Description    string
	Range          string
	HigherIsBetter bool
	BinaryTarget   bool
	Hyperparameter string // Name of the optional hyperparameter, empty if none
}

// AllMetricInfos lists every supported metric in display order.
var AllMetricInfos = []MetricInfo{
	{MetricAUC, "Area under the ROC curve of score against a binary target", "[0, 1]", true, true, ""},
	{MetricWeightedAUC, "Weighted-order AUC: sampler-bucketed partial AUCs averaged with boundary weights", "[0, 1]", true, false, ""},
	{MetricPortfolio, "Fraction of total target mass captured by the top coverage fraction of rows", "[0, 1]", true, false, "coverage"},
	{MetricDistinctPortfolio, "Fraction of distinct target values captured by the top coverage fraction of rows", "[0, 1]", true, false, "coverage"},
	{MetricLogMSE, "Mean squared error between log1p(target) and log1p(score)", "[0, +inf)", false, false, ""},
	{MetricTau, "Kendall rank correlation over equal-frequency bins, normalized to [0, 1]", "[0, 1]", true, false, "bins"},
	{MetricInversePairs, "Weighted count of rank inversions between score order and target order", "[0, +inf)", false, false, ""},
	{MetricNegRankRatio, "Mean normalized rank of positive labels under descending score", "(0, 1]", false, true, ""},
	{MetricCorrelation, "Pearson correlation coefficient between score and target", "[-1, 1]", true, false, ""},
}

// ValidMetricKinds lists all valid metric kinds.
var ValidMetricKinds = func() map[MetricKind]struct{} {
	m := make(map[MetricKind]struct{}, len(AllMetricInfos))
	for _, info := range AllMetricInfos {
		m[info.Kind] = struct{}{}
	}
	return m
}()

// ValidEquationTypes lists all valid equation types.
var ValidEquationTypes = map[EquationType]struct{}{
	EquationSum:      {},
	EquationProduct:  {},
	EquationFreeForm: {},
}

// ValidDirections lists all valid optimization directions.
var ValidDirections = map[Direction]struct{}{
	Maximize: {},
	Minimize: {},
}

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	TextOut: {},
	CSVOut:  {},
	JSONOut: {},
}

// ValidStoreBackends lists all valid store backends.
var ValidStoreBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// ValidSearcherKinds lists all valid search backends.
var ValidSearcherKinds = map[SearcherKind]struct{}{
	TPESearcher:    {},
	RandomSearcher: {},
}

// ValidSamplerKinds lists all valid sampler kinds.
var ValidSamplerKinds = map[SamplerKind]struct{}{
	NoSampler:        {},
	FrequencySampler: {},
	GiniSampler:      {},
}

// ValidPairWeightings lists all valid inverse-pair weighting schemes.
var ValidPairWeightings = map[PairWeighting]struct{}{
	CountWeighting:       {},
	LinearWeighting:      {},
	ExponentialWeighting: {},
}

// GetMetricInfo returns the documented contract for a metric kind.
func GetMetricInfo(kind MetricKind) (MetricInfo, bool) {
	for _, info := range AllMetricInfos {
		if info.Kind == kind {
			return info, true
		}
	}
	return MetricInfo{}, false
}
