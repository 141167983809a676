package cmd

import (
	"github.com/spf13/cobra"

	"github.com/scorefuse/scorefuse/core"
	"github.com/scorefuse/scorefuse/internal/contract"
)

// metricsCmd displays the formal definitions of all evaluation metrics.
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display definitions and ranges for all evaluation metrics",
	Long: `Show the formal definitions for every supported evaluation metric.

Provides complete transparency into how trials are scored, including:
- Metric purpose and value range
- Whether higher or lower values are better
- Whether the target column must be binary
- The optional hyperparameter each metric accepts

No dataset is loaded - this is purely informational.

Examples:
  # Show metric definitions
  scorefuse metrics

  # Export definitions as CSV
  scorefuse metrics --output csv --output-file metrics.csv`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteMetrics(cfg); err != nil {
			contract.LogFatal("Cannot display metrics", err)
		}
	},
}
