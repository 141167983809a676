package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/scorefuse/scorefuse/internal/contract"
	"github.com/scorefuse/scorefuse/schema"
)

// WriteStudyResult outputs an optimization study summary and its best trials,
// dispatching based on the output format configured.
func WriteStudyResult(result schema.StudyResult, records []schema.TrialRecord, cfg *contract.Config) error {
	fmtFloat := createFloatFormatter(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		if err := writeStudyJSONResults(result, records, cfg); err != nil {
			return fmt.Errorf("error writing JSON output: %w", err)
		}
	case schema.CSVOut:
		if err := writeStudyCSVResults(records, cfg, fmtFloat); err != nil {
			return fmt.Errorf("error writing CSV output: %w", err)
		}
	default:
		// Default to human-readable table
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeStudyTable(result, records, cfg, fmtFloat, w)
		}, "Wrote table")
	}
	return nil
}

// writeStudyJSONResults handles opening the file and calling the JSON writer.
func writeStudyJSONResults(result schema.StudyResult, records []schema.TrialRecord, cfg *contract.Config) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		return writeJSON(w, struct {
			Study  schema.StudyResult   `json:"study"`
			Trials []schema.TrialRecord `json:"trials"`
		}{Study: result, Trials: records})
	}, "Wrote JSON")
}

// writeStudyCSVResults handles opening the file and calling the CSV writer.
func writeStudyCSVResults(records []schema.TrialRecord, cfg *contract.Config, fmtFloat func(float64) string) error {
	return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
		header := []string{"trial", "state", "value", "reward", "params", "term_values", "elapsed_ms", "error"}
		return writeCSVWithHeader(w, header, func(csvWriter *csv.Writer) error {
			return writeCSVResultsForTrials(csvWriter, records, fmtFloat)
		})
	}, "Wrote CSV")
}

// writeStudyTable generates and writes the human-readable table.
func writeStudyTable(result schema.StudyResult, records []schema.TrialRecord, cfg *contract.Config, fmtFloat func(float64) string, writer io.Writer) error {
	title := headerPrefix("🎯", fmt.Sprintf("Study %s (%s)", result.StudyName, result.Direction), cfg)
	if _, err := fmt.Fprintf(writer, "%s\n\n", title); err != nil {
		return err
	}

	table := tablewriter.NewWriter(writer)
	table.Header([]string{"Rank", "Trial", "State", "Value", "Reward", "Params"})
	table.Configure(func(tableCfg *tablewriter.Config) {
		tableCfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for i, record := range topTrials(records, cfg.ResultLimit) {
		row := []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(record.Trial),
			trialLabel(record.State, cfg),
			fmtFloat(record.Value),
			fmtFloat(record.Reward),
			formatParams(record.Params, fmtFloat, getTerminalWidth(cfg)),
		}
		data = append(data, row)
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(writer, "Best trial %d with value %s\n",
		result.BestTrial, fmtFloat(result.BestValue)); err != nil {
		return err
	}
	for _, name := range sortedParamNames(result.BestParams) {
		if _, err := fmt.Fprintf(writer, "  %s = %s\n", name, fmtFloat(result.BestParams[name])); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(writer, "Completed %d trials (%d failed) in %v. Store backend: %s\n",
		result.Trials, result.Failed, result.Elapsed.Round(time.Millisecond), cfg.StoreBackend); err != nil {
		return err
	}
	return nil
}

// writeCSVResultsForTrials writes the trial history in CSV format.
func writeCSVResultsForTrials(w *csv.Writer, records []schema.TrialRecord, fmtFloat func(float64) string) error {
	for _, record := range records {
		rec := []string{
			strconv.Itoa(record.Trial),
			string(record.State),
			fmtFloat(record.Value),
			fmtFloat(record.Reward),
			formatParams(record.Params, fmtFloat, 0),
			formatTermValues(record.TermValues, fmtFloat),
			strconv.FormatInt(record.Elapsed.Milliseconds(), 10),
			record.Error,
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

// formatParams renders parameter assignments as "name=value" pairs. When
// maxWidth is positive the result is truncated to keep table rows readable.
func formatParams(params map[string]float64, fmtFloat func(float64) string, maxWidth int) string {
	var parts []string
	for _, name := range sortedParamNames(params) {
		parts = append(parts, fmt.Sprintf("%s=%s", name, fmtFloat(params[name])))
	}
	joined := strings.Join(parts, " ")

	// Reserve space for the fixed columns with borders and padding.
	if maxWidth > 0 {
		available := maxWidth - 45
		if available < 20 {
			available = 20
		}
		if len(joined) > available {
			joined = joined[:available-3] + "..."
		}
	}
	return joined
}

// formatTermValues renders per-term metric values as a pipe-separated list.
func formatTermValues(values []float64, fmtFloat func(float64) string) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmtFloat(v)
	}
	return strings.Join(parts, "|")
}
