// Package contract holds the validated runtime configuration and the shared
// helpers that commands and writers agree on.
package contract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/scorefuse/scorefuse/schema"
)

// Default values for configuration.
const (
	DefaultTrials      = 100
	MaxTrials          = 1_000_000
	DefaultResultLimit = 10
	MaxResultLimit     = 1000
	DefaultPrecision   = 4
	DefaultSamplerSize = 10
	DefaultSeed        = 42
)

// Default search-space bounds. Weight bounds depend on the equation type and
// are resolved during validation.
const (
	DefaultWeightLowSum     = 0.0
	DefaultWeightLowProduct = -1.0
	DefaultWeightHigh       = 1.0
	DefaultPowerLow         = 1e-3
	DefaultPowerHigh        = 3.0
	DefaultFirstOrderLow    = 1e-3
	DefaultFirstOrderHigh   = 1e6
)

// ObjectiveSpec is one parsed --objective term.
type ObjectiveSpec struct {
	Kind      schema.MetricKind
	Target    string
	Hyper     *float64
	Weighting schema.PairWeighting
	Weight    float64
}

// Config holds the runtime configuration for a study.
// This struct remains the "final, validated" config.
type Config struct {
	DataPath   string
	Columns    []string
	Equation   schema.EquationType
	Expression string // Row-level fusion expression for free-form
	Formula    string // Term-combination formula, empty means weighted sum
	Direction  schema.Direction
	Trials     int
	Seed       int64
	Searcher   schema.SearcherKind
	Objectives []ObjectiveSpec

	Power      bool
	FirstOrder bool
	Dirichlet  bool

	WeightLow, WeightHigh         float64
	PowerLow, PowerHigh           float64
	FirstOrderLow, FirstOrderHigh float64

	Sampler        schema.SamplerKind
	SamplerColumn  string
	SamplerSize    int
	SamplerLog     bool
	SamplerLaplace bool

	StudyName string
	StudyDir  string

	StoreBackend   schema.DatabaseBackend
	StoreDBConnect string // Please use env var as this is plaintext

	Precision   int
	Output      schema.OutputMode
	OutputFile  string
	ResultLimit int
	Width       int // Terminal width override (0 = auto-detect)

	UseEmojis bool // Enable emojis in output headers
	UseColors bool // Enable colored labels in table output
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// This is set manually from positional args, so no tag
	DataPathStr string

	// --- Fields from rootCmd.PersistentFlags() ---
	Columns        string `mapstructure:"columns"`
	Equation       string `mapstructure:"equation"`
	Expression     string `mapstructure:"expression"`
	Formula        string `mapstructure:"formula"`
	Direction      string `mapstructure:"direction"`
	Trials         int    `mapstructure:"trials"`
	Seed           int64  `mapstructure:"seed"`
	Searcher       string `mapstructure:"searcher"`
	Precision      int    `mapstructure:"precision"`
	Output         string `mapstructure:"output"`
	OutputFile     string `mapstructure:"output-file"`
	Limit          int    `mapstructure:"limit"`
	Width          int    `mapstructure:"width"`
	StoreBackend   string `mapstructure:"store-backend"`
	StoreDBConnect string `mapstructure:"store-db-connect"`
	Emoji          string `mapstructure:"emoji"`
	Color          string `mapstructure:"color"`

	// --- Fields from optimizeCmd.Flags() ---
	Objectives       []string `mapstructure:"objective"`
	Power            bool     `mapstructure:"power"`
	FirstOrder       bool     `mapstructure:"first-order"`
	Dirichlet        bool     `mapstructure:"dirichlet"`
	WeightBounds     string   `mapstructure:"weight-bounds"`
	PowerBounds      string   `mapstructure:"power-bounds"`
	FirstOrderBounds string   `mapstructure:"first-order-bounds"`
	Sampler          string   `mapstructure:"sampler"`
	SamplerColumn    string   `mapstructure:"sampler-column"`
	SamplerSize      int      `mapstructure:"sampler-size"`
	SamplerLog       bool     `mapstructure:"sampler-log"`
	SamplerLaplace   bool     `mapstructure:"sampler-laplace"`
	StudyName        string   `mapstructure:"study-name"`
	StudyDir         string   `mapstructure:"study-dir"`

	// --- Fields from study migrate flags ---
	MigrateVersion int `mapstructure:"migrate-version"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	if c.Columns != nil {
		clone.Columns = make([]string, len(c.Columns))
		copy(clone.Columns, c.Columns)
	}
	if c.Objectives != nil {
		clone.Objectives = make([]ObjectiveSpec, len(c.Objectives))
		copy(clone.Objectives, c.Objectives)
		for i, spec := range c.Objectives {
			if spec.Hyper != nil {
				h := *spec.Hyper
				clone.Objectives[i].Hyper = &h
			}
		}
	}
	return &clone
}

// ProcessAndValidate performs all complex parsing and validation on the raw
// inputs and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	// All validation functions read from 'input' and populate 'cfg'.
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processFusion(cfg, input); err != nil {
		return err
	}
	if err := processSearchSpace(cfg, input); err != nil {
		return err
	}
	if err := processObjectives(cfg, input); err != nil {
		return err
	}
	if err := processSampler(cfg, input); err != nil {
		return err
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of database
// connection strings for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("store-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("store-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateSimpleInputs processes and validates all non-fusion fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	// --- 0. Transfer simple non-validated fields from input -> cfg ---
	cfg.DataPath = input.DataPathStr
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.StudyName = strings.TrimSpace(input.StudyName)
	cfg.StudyDir = strings.TrimSpace(input.StudyDir)

	// Parse emoji flag
	emojis, err := ParseBoolString(input.Emoji)
	if err != nil {
		return fmt.Errorf("invalid --emoji value: %w", err)
	}
	cfg.UseEmojis = emojis

	// Parse color flag
	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	// --- 1. Trials Validation ---
	if input.Trials <= 0 || input.Trials > MaxTrials {
		return fmt.Errorf("trials must be greater than 0 and cannot exceed %d (received %d)", MaxTrials, input.Trials)
	}
	cfg.Trials = input.Trials
	cfg.Seed = input.Seed

	// --- 2. ResultLimit Validation ---
	if input.Limit <= 0 || input.Limit > MaxResultLimit {
		return fmt.Errorf("limit must be greater than 0 and cannot exceed %d (received %d)", MaxResultLimit, input.Limit)
	}
	cfg.ResultLimit = input.Limit

	// --- 3. Direction and Searcher Validation ---
	cfg.Direction = schema.Direction(strings.ToLower(input.Direction))
	if _, ok := schema.ValidDirections[cfg.Direction]; !ok {
		return fmt.Errorf("invalid direction '%s'. must be maximize, minimize", input.Direction)
	}
	cfg.Searcher = schema.SearcherKind(strings.ToLower(input.Searcher))
	if _, ok := schema.ValidSearcherKinds[cfg.Searcher]; !ok {
		return fmt.Errorf("invalid searcher '%s'. must be tpe, random", input.Searcher)
	}

	// --- 4. Precision and Output Validation ---
	if input.Precision < 1 || input.Precision > 8 {
		return fmt.Errorf("precision must be between 1 and 8 (received %d)", input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json", cfg.Output)
	}

	// --- 5. Store Backend Validation ---
	cfg.StoreBackend = schema.DatabaseBackend(strings.ToLower(input.StoreBackend))
	if _, ok := schema.ValidStoreBackends[cfg.StoreBackend]; !ok {
		return fmt.Errorf("invalid store backend '%s'. must be sqlite, mysql, postgresql, none", input.StoreBackend)
	}
	cfg.StoreDBConnect = input.StoreDBConnect
	if err := ValidateDatabaseConnectionString(cfg.StoreBackend, cfg.StoreDBConnect); err != nil {
		return err
	}

	return nil
}

// processFusion validates the column selection and the fusion equation.
func processFusion(cfg *Config, input *ConfigRawInput) error {
	cfg.Columns = nil
	for _, part := range strings.Split(input.Columns, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			cfg.Columns = append(cfg.Columns, trimmed)
		}
	}

	cfg.Equation = schema.EquationType(strings.ToLower(input.Equation))
	if _, ok := schema.ValidEquationTypes[cfg.Equation]; !ok {
		return fmt.Errorf("invalid equation '%s'. must be sum, product, free-form", input.Equation)
	}

	cfg.Expression = strings.TrimSpace(input.Expression)
	if cfg.Equation == schema.EquationFreeForm && cfg.Expression == "" {
		return fmt.Errorf("--expression is required with the free-form equation")
	}
	if cfg.Equation != schema.EquationFreeForm && cfg.Expression != "" {
		return fmt.Errorf("--expression is only valid with the free-form equation")
	}

	cfg.Formula = strings.TrimSpace(input.Formula)
	return nil
}

// processSearchSpace resolves the parameter bounds, falling back to the
// conventional defaults per equation type.
func processSearchSpace(cfg *Config, input *ConfigRawInput) error {
	cfg.Power = input.Power
	cfg.FirstOrder = input.FirstOrder
	cfg.Dirichlet = input.Dirichlet

	low := DefaultWeightLowSum
	if cfg.Equation == schema.EquationProduct {
		low = DefaultWeightLowProduct
	}
	var err error
	cfg.WeightLow, cfg.WeightHigh, err = parseBounds(input.WeightBounds, low, DefaultWeightHigh)
	if err != nil {
		return fmt.Errorf("invalid --weight-bounds: %w", err)
	}
	cfg.PowerLow, cfg.PowerHigh, err = parseBounds(input.PowerBounds, DefaultPowerLow, DefaultPowerHigh)
	if err != nil {
		return fmt.Errorf("invalid --power-bounds: %w", err)
	}
	cfg.FirstOrderLow, cfg.FirstOrderHigh, err = parseBounds(input.FirstOrderBounds, DefaultFirstOrderLow, DefaultFirstOrderHigh)
	if err != nil {
		return fmt.Errorf("invalid --first-order-bounds: %w", err)
	}

	if cfg.WeightLow >= cfg.WeightHigh {
		return fmt.Errorf("weight bounds [%v, %v] are empty", cfg.WeightLow, cfg.WeightHigh)
	}
	if cfg.Dirichlet && cfg.WeightLow < 0 {
		return fmt.Errorf("--dirichlet requires a non-negative weight lower bound (received %v)", cfg.WeightLow)
	}
	if cfg.FirstOrder && cfg.Equation != schema.EquationProduct {
		return fmt.Errorf("--first-order is only valid with the product equation")
	}
	return nil
}

// processObjectives parses the repeatable --objective terms. Each spec is
// "kind:target" with optional suffix parts: a weighting name for
// inverse_pairs, and up to two numbers read as hyperparameter then weight.
func processObjectives(cfg *Config, input *ConfigRawInput) error {
	cfg.Objectives = nil
	for _, raw := range input.Objectives {
		spec, err := ParseObjectiveSpec(raw)
		if err != nil {
			return err
		}
		cfg.Objectives = append(cfg.Objectives, spec)
	}
	return nil
}

// ParseObjectiveSpec parses a single objective term string like
// "wuauc:conversions", "portfolio:sales:0.9", "inverse_pairs:rank:linear"
// or "auc:label:0.95:2" (hyperparameter then combination weight).
func ParseObjectiveSpec(raw string) (ObjectiveSpec, error) {
	var spec ObjectiveSpec
	parts := strings.Split(raw, ":")
	if len(parts) < 2 {
		return spec, fmt.Errorf("invalid objective '%s', expected 'metric:target[:options]'", raw)
	}

	spec.Kind = schema.MetricKind(strings.ToLower(strings.TrimSpace(parts[0])))
	if _, ok := schema.ValidMetricKinds[spec.Kind]; !ok {
		return spec, fmt.Errorf("invalid metric '%s' in objective '%s'", parts[0], raw)
	}
	spec.Target = strings.TrimSpace(parts[1])
	if spec.Target == "" {
		return spec, fmt.Errorf("missing target column in objective '%s'", raw)
	}

	var numbers []float64
	for _, part := range parts[2:] {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if v, err := strconv.ParseFloat(part, 64); err == nil {
			numbers = append(numbers, v)
			continue
		}
		weighting := schema.PairWeighting(strings.ToLower(part))
		if _, ok := schema.ValidPairWeightings[weighting]; !ok {
			return spec, fmt.Errorf("invalid option '%s' in objective '%s'", part, raw)
		}
		if spec.Weighting != "" {
			return spec, fmt.Errorf("duplicate weighting in objective '%s'", raw)
		}
		spec.Weighting = weighting
	}
	switch len(numbers) {
	case 0:
	case 1:
		spec.Hyper = &numbers[0]
	case 2:
		spec.Hyper = &numbers[0]
		spec.Weight = numbers[1]
	default:
		return spec, fmt.Errorf("too many numeric options in objective '%s'", raw)
	}
	if spec.Weighting != "" && spec.Kind != schema.MetricInversePairs {
		return spec, fmt.Errorf("weighting option is only valid for inverse_pairs (objective '%s')", raw)
	}
	return spec, nil
}

// processSampler validates the sampler settings for weighted-order AUC.
func processSampler(cfg *Config, input *ConfigRawInput) error {
	cfg.Sampler = schema.SamplerKind(strings.ToLower(input.Sampler))
	if _, ok := schema.ValidSamplerKinds[cfg.Sampler]; !ok {
		return fmt.Errorf("invalid sampler '%s'. must be none, frequency, gini", input.Sampler)
	}
	cfg.SamplerColumn = strings.TrimSpace(input.SamplerColumn)
	cfg.SamplerSize = input.SamplerSize
	cfg.SamplerLog = input.SamplerLog
	cfg.SamplerLaplace = input.SamplerLaplace

	if cfg.Sampler == schema.NoSampler {
		return nil
	}
	if cfg.SamplerSize < 1 {
		return fmt.Errorf("--sampler-size must be at least 1 (received %d)", cfg.SamplerSize)
	}
	if cfg.SamplerColumn == "" {
		// Default to the first weighted-order AUC target.
		for _, spec := range cfg.Objectives {
			if spec.Kind == schema.MetricWeightedAUC {
				cfg.SamplerColumn = spec.Target
				break
			}
		}
		if cfg.SamplerColumn == "" {
			return fmt.Errorf("--sampler-column is required when no wuauc objective sets a target")
		}
	}
	return nil
}

// parseBounds parses a "low,high" pair, returning the defaults for an empty
// string.
func parseBounds(s string, defLow, defHigh float64) (float64, float64, error) {
	if strings.TrimSpace(s) == "" {
		return defLow, defHigh, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected 'low,high', got '%s'", s)
	}
	low, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad lower bound in '%s': %w", s, err)
	}
	high, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad upper bound in '%s': %w", s, err)
	}
	if low >= high {
		return 0, 0, fmt.Errorf("bounds [%v, %v] are empty", low, high)
	}
	return low, high, nil
}
