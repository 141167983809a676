// Package parquet provides data structures and functions for exporting study
// and trial history to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/scorefuse/scorefuse/schema"
)

// StudyRecord represents a single study with metadata.
// This struct maps to the scorefuse_studies database table.
type StudyRecord struct {
	// StudyID is the unique identifier for the study
	StudyID int64 `parquet:"study_id,snappy"`

	// StudyName is the human-readable study name
	StudyName string `parquet:"study_name,snappy"`

	// Direction is the optimization direction (maximize or minimize)
	Direction string `parquet:"direction,snappy"`

	// ConfigParams contains the JSON-encoded configuration parameters (nullable)
	ConfigParams *string `parquet:"config_params,optional,snappy"`

	// CreatedAt is when the study started (stored as TIMESTAMP with nanosecond precision)
	CreatedAt time.Time `parquet:"created_at,snappy"`
}

// TrialRow represents the outcome of one trial within a study.
// This struct maps to the scorefuse_trials database table.
type TrialRow struct {
	// StudyID references the parent study
	StudyID int64 `parquet:"study_id,snappy"`

	// TrialNumber is the zero-based trial index within the study
	TrialNumber int32 `parquet:"trial_number,snappy"`

	// State records whether the trial completed or failed
	State string `parquet:"state,snappy"`

	// Params contains the JSON-encoded parameter proposals for this trial
	Params string `parquet:"params,snappy"`

	// TermValues contains the JSON-encoded per-term metric values (nullable)
	TermValues *string `parquet:"term_values,optional,snappy"`

	// Value is the combined objective value
	Value float64 `parquet:"value,snappy"`

	// Reward is the value adjusted so that higher is always better
	Reward float64 `parquet:"reward,snappy"`

	// Error is the failure reason for failed trials (nullable)
	Error *string `parquet:"error,optional,snappy"`

	// ElapsedMs is the trial wall time in milliseconds
	ElapsedMs int64 `parquet:"elapsed_ms,snappy"`

	// TrialTime is when the trial finished
	TrialTime time.Time `parquet:"trial_time,snappy"`
}

// WriteStudiesParquet writes a slice of StudyRecord structs to a Parquet file.
func WriteStudiesParquet(data []StudyRecord, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// The schema is derived from the StudyRecord struct tags
	writer := parquet.NewGenericWriter[StudyRecord](file)
	defer func() { _ = writer.Close() }()

	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}

	return nil
}

// WriteTrialsParquet writes a slice of TrialRow structs to a Parquet file.
func WriteTrialsParquet(data []TrialRow, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// The schema is derived from the TrialRow struct tags
	writer := parquet.NewGenericWriter[TrialRow](file)
	defer func() { _ = writer.Close() }()

	if _, err := writer.Write(data); err != nil {
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}

	return nil
}

// ConvertStudyRows converts schema.StudyRow to StudyRecord for Parquet export.
func ConvertStudyRows(rows []schema.StudyRow) []StudyRecord {
	result := make([]StudyRecord, len(rows))
	for i, row := range rows {
		record := StudyRecord{
			StudyID:   row.ID,
			StudyName: row.Name,
			Direction: string(row.Direction),
			CreatedAt: row.CreatedAt,
		}
		if row.Config != "" {
			config := row.Config
			record.ConfigParams = &config
		}
		result[i] = record
	}
	return result
}

// ConvertTrialRecords converts schema.TrialRecord to TrialRow for Parquet export.
func ConvertTrialRecords(studyID int64, records []schema.TrialRecord) []TrialRow {
	result := make([]TrialRow, len(records))
	for i, record := range records {
		row := TrialRow{
			StudyID:     studyID,
			TrialNumber: int32(record.Trial),
			State:       string(record.State),
			Value:       record.Value,
			Reward:      record.Reward,
			ElapsedMs:   record.Elapsed.Milliseconds(),
			TrialTime:   record.Time,
		}
		if data, err := json.Marshal(record.Params); err == nil {
			row.Params = string(data)
		}
		if len(record.TermValues) > 0 {
			if data, err := json.Marshal(record.TermValues); err == nil {
				terms := string(data)
				row.TermValues = &terms
			}
		}
		if record.Error != "" {
			errText := record.Error
			row.Error = &errText
		}
		result[i] = row
	}
	return result
}
