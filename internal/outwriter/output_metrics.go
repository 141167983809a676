package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/scorefuse/scorefuse/internal/contract"
	"github.com/scorefuse/scorefuse/schema"
)

// PrintMetricsDefinitions displays the formal definitions of all supported
// metrics. This is a static display that does not require any dataset.
func PrintMetricsDefinitions(cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, schema.AllMetricInfos)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			header := []string{"metric", "description", "range", "direction", "binary_target", "hyperparameter"}
			return writeCSVWithHeader(w, header, writeCSVMetrics)
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return printMetricsText(w, cfg)
		}, "Wrote text")
	}
}

// printMetricsText displays metrics in human-readable table format.
func printMetricsText(w io.Writer, cfg *contract.Config) error {
	title := headerPrefix("📐", "Evaluation Metrics", cfg)
	if _, err := fmt.Fprintf(w, "%s\n\n", title); err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Metric", "Range", "Better", "Binary", "Hyper", "Description"})
	table.Configure(func(tableCfg *tablewriter.Config) {
		tableCfg.Row.Alignment.Global = tw.AlignLeft
	})

	var data [][]string
	for _, info := range schema.AllMetricInfos {
		direction := contract.GetPlainDirectionLabel(info.HigherIsBetter)
		if cfg.UseColors {
			direction = contract.GetColorDirectionLabel(info.HigherIsBetter)
		}
		binary := "no"
		if info.BinaryTarget {
			binary = "yes"
		}
		hyper := info.Hyperparameter
		if hyper == "" {
			hyper = "-"
		}
		data = append(data, []string{
			string(info.Kind),
			info.Range,
			direction,
			binary,
			hyper,
			info.Description,
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// writeCSVMetrics writes the metric definitions in CSV format.
func writeCSVMetrics(w *csv.Writer) error {
	for _, info := range schema.AllMetricInfos {
		record := []string{
			string(info.Kind),
			info.Description,
			info.Range,
			contract.GetPlainDirectionLabel(info.HigherIsBetter),
			fmt.Sprintf("%t", info.BinaryTarget),
			info.Hyperparameter,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	return nil
}
