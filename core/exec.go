package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/scorefuse/scorefuse/internal/contract"
	"github.com/scorefuse/scorefuse/internal/loader"
	"github.com/scorefuse/scorefuse/internal/outwriter"
	"github.com/scorefuse/scorefuse/internal/triallog"
	"github.com/scorefuse/scorefuse/schema"
)

// ExecuteOptimize runs a full optimization study from a validated config:
// load the dataset, search the fusion parameters against the configured
// objectives, persist the trial history and print the summary.
// It serves as the main entry point for the 'optimize' command.
func ExecuteOptimize(ctx context.Context, cfg *contract.Config) error {
	result, records, err := GetOptimizeResults(ctx, cfg)
	if err != nil {
		return err
	}
	return outwriter.WriteStudyResult(*result, records, cfg)
}

// GetOptimizeResults runs the optimization study and returns the summary with
// the full trial history instead of printing it.
func GetOptimizeResults(ctx context.Context, cfg *contract.Config) (*schema.StudyResult, []schema.TrialRecord, error) {
	start := time.Now()

	ds, err := loader.LoadDataset(cfg.DataPath)
	if err != nil {
		return nil, nil, err
	}

	columns := cfg.Columns
	if len(columns) == 0 {
		columns = ds.ColumnNames()
	}
	calc, err := NewCalculator(ds, columns, cfg.Equation, cfg.Expression)
	if err != nil {
		return nil, nil, err
	}
	if err := initializeSampler(calc, cfg); err != nil {
		return nil, nil, err
	}

	backend, err := NewBackend(cfg.Searcher, cfg.Seed)
	if err != nil {
		return nil, nil, err
	}

	sinks, studyName, cleanup, err := buildSinks(cfg)
	if err != nil {
		return nil, nil, err
	}
	defer cleanup()

	objective, err := NewMultipleObjective(cfg.Direction, cfg.Formula, searchSpaceFromConfig(cfg), backend, sinks...)
	if err != nil {
		return nil, nil, err
	}
	if err := objective.AddCalculator(calc, termsFromConfig(cfg)...); err != nil {
		return nil, nil, err
	}

	result, err := objective.Optimize(ctx, cfg.Trials)
	if err != nil {
		return nil, nil, err
	}
	result.StudyName = studyName
	result.Elapsed = time.Since(start)
	return result, objective.Records(), nil
}

// ExecuteMetrics prints the definitions of every supported metric.
// It serves as the main entry point for the 'metrics' command.
func ExecuteMetrics(cfg *contract.Config) error {
	return outwriter.PrintMetricsDefinitions(cfg)
}

// searchSpaceFromConfig maps validated bounds onto a search space.
func searchSpaceFromConfig(cfg *contract.Config) SearchSpace {
	return SearchSpace{
		Power:          cfg.Power,
		FirstOrder:     cfg.FirstOrder,
		Dirichlet:      cfg.Dirichlet,
		WeightLow:      cfg.WeightLow,
		WeightHigh:     cfg.WeightHigh,
		PowerLow:       cfg.PowerLow,
		PowerHigh:      cfg.PowerHigh,
		FirstOrderLow:  cfg.FirstOrderLow,
		FirstOrderHigh: cfg.FirstOrderHigh,
	}
}

// termsFromConfig converts parsed objective specs into objective terms.
func termsFromConfig(cfg *contract.Config) []ObjectiveTerm {
	terms := make([]ObjectiveTerm, len(cfg.Objectives))
	for i, spec := range cfg.Objectives {
		terms[i] = ObjectiveTerm{
			Kind:      spec.Kind,
			Target:    spec.Target,
			Hyper:     spec.Hyper,
			Weighting: spec.Weighting,
			Weight:    spec.Weight,
		}
	}
	return terms
}

// initializeSampler wires the configured boundary sampler into the calculator.
func initializeSampler(calc *Calculator, cfg *contract.Config) error {
	switch cfg.Sampler {
	case schema.FrequencySampler:
		return calc.InitializeFrequencySampler(cfg.SamplerColumn, FrequencyOptions{
			SampleSize: cfg.SamplerSize,
			LogScale:   cfg.SamplerLog,
			Laplace:    cfg.SamplerLaplace,
		})
	case schema.GiniSampler:
		return calc.InitializeGiniSampler(cfg.SamplerColumn, GiniOptions{
			SampleSize: cfg.SamplerSize,
		})
	default:
		return nil
	}
}

// buildSinks assembles the trial sinks: the SQL trial store and, when a study
// directory is set, a JSONL log. The returned cleanup closes everything.
func buildSinks(cfg *contract.Config) ([]TrialSink, string, func(), error) {
	studyName := cfg.StudyName
	if studyName == "" {
		studyName = "study-" + time.Now().Format("20060102-150405")
	}

	var sinks []TrialSink
	var closers []func()
	cleanup := func() {
		for _, fn := range closers {
			fn()
		}
	}

	store, err := triallog.NewTrialStore(cfg.StoreBackend, cfg.StoreDBConnect)
	if err != nil {
		return nil, "", nil, err
	}
	closers = append(closers, func() { _ = store.Close() })

	if cfg.StoreBackend != schema.NoneBackend {
		studyID, err := store.BeginStudy(studyName, cfg.Direction, configSummary(cfg))
		if err != nil {
			cleanup()
			return nil, "", nil, err
		}
		sinks = append(sinks, &triallog.StoreSink{Store: store, StudyID: studyID})
	}

	if cfg.StudyDir != "" {
		jsonl, err := triallog.NewJSONLSink(triallog.StudyLogPath(cfg.StudyDir, studyName))
		if err != nil {
			cleanup()
			return nil, "", nil, err
		}
		closers = append(closers, func() { _ = jsonl.Close() })
		sinks = append(sinks, jsonl)
	}

	return sinks, studyName, cleanup, nil
}

// configSummary flattens the study configuration for persistence.
func configSummary(cfg *contract.Config) map[string]any {
	objectives := make([]string, len(cfg.Objectives))
	for i, spec := range cfg.Objectives {
		objectives[i] = fmt.Sprintf("%s:%s", spec.Kind, spec.Target)
	}
	return map[string]any{
		"data":       cfg.DataPath,
		"columns":    strings.Join(cfg.Columns, ","),
		"equation":   string(cfg.Equation),
		"direction":  string(cfg.Direction),
		"searcher":   string(cfg.Searcher),
		"trials":     cfg.Trials,
		"seed":       cfg.Seed,
		"objectives": strings.Join(objectives, " "),
	}
}
