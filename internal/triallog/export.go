package triallog

import (
	"errors"
	"fmt"

	"github.com/scorefuse/scorefuse/internal/parquet"
)

// ExecuteStudyExport exports all stored studies and trials to Parquet files.
func ExecuteStudyExport(store *TrialStore, outputFile string) error {
	// Validate that output file is specified
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}

	// Check if there's any data to export
	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get store status: %w", err)
	}
	if status.Studies == 0 {
		return errors.New("no study data found to export")
	}

	fmt.Printf("Exporting data from %s backend...\n", status.Backend)
	fmt.Printf("Total studies: %d\n", status.Studies)
	fmt.Printf("Total trials: %d\n", status.Trials)

	studies, err := store.FetchStudies()
	if err != nil {
		return fmt.Errorf("failed to retrieve studies: %w", err)
	}

	var trialRows []parquet.TrialRow
	for _, study := range studies {
		records, err := store.FetchTrials(study.ID)
		if err != nil {
			return fmt.Errorf("failed to retrieve trials for study %d: %w", study.ID, err)
		}
		trialRows = append(trialRows, parquet.ConvertTrialRecords(study.ID, records)...)
	}

	// Write studies to Parquet
	studiesFile := outputFile + ".studies.parquet"
	if err := parquet.WriteStudiesParquet(parquet.ConvertStudyRows(studies), studiesFile); err != nil {
		return fmt.Errorf("failed to write studies: %w", err)
	}
	fmt.Printf("Exported %d studies to: %s\n", len(studies), studiesFile)

	// Write trials to Parquet
	trialsFile := outputFile + ".trials.parquet"
	if err := parquet.WriteTrialsParquet(trialRows, trialsFile); err != nil {
		return fmt.Errorf("failed to write trials: %w", err)
	}
	fmt.Printf("Exported %d trial records to: %s\n", len(trialRows), trialsFile)

	return nil
}
