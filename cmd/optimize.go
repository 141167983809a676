package cmd

import (
	"github.com/spf13/cobra"

	"github.com/scorefuse/scorefuse/core"
	"github.com/scorefuse/scorefuse/internal/contract"
)

// optimizeCmd runs a fusion parameter search over a dataset.
var optimizeCmd = &cobra.Command{
	Use:   "optimize <data-path>",
	Short: "Search fusion parameters against the configured objectives.",
	Long: `Load a tabular dataset, fuse the selected score columns into a composite
score and search the fusion parameters against one or more ranking objectives.

Each trial samples a parameter set, rebuilds the composite score column and
evaluates every objective term. The best trial and the full trial history are
reported at the end, and every trial is persisted to the trial store.

Objectives are 'metric:target[:options]' terms, where options are an optional
hyperparameter, an optional combination weight, and for inverse_pairs an
optional weighting name (count, linear, exponential).

Examples:
  # Maximize AUC of the fused score against a binary label
  scorefuse optimize data.csv --objective auc:label

  # Combine two objectives with a product equation and power exponents
  scorefuse optimize data.parquet --equation product --power \
    --objective wuauc:sales:0.9 --objective corr:baseline

  # Free-form fusion with a custom row expression
  scorefuse optimize data.csv --equation free-form \
    --expression 'w1*targets[0] + w2*log(1 + targets[1])' \
    --objective auc:label

  # Keep a JSONL log per study alongside the SQL store
  scorefuse optimize data.csv --objective auc:label \
    --study-name launch-ranker --study-dir ./studies`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteOptimize(rootCtx, cfg); err != nil {
			contract.LogFatal("Cannot run optimization", err)
		}
	},
}
