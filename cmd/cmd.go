// Package cmd defines the command-line interface for scorefuse.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/scorefuse/scorefuse/internal/contract"
	"github.com/scorefuse/scorefuse/schema"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(optimizeCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(studyCmd)

	// Add the study subcommands to the parent study command
	studyCmd.AddCommand(studyStatusCmd)
	studyCmd.AddCommand(studyExportCmd)
	studyCmd.AddCommand(studyClearCmd)
	studyCmd.AddCommand(studyMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().StringP("columns", "c", "", "Comma-separated score columns to fuse (defaults to every numeric column)")
	rootCmd.PersistentFlags().String("equation", string(schema.EquationSum), "Fusion equation: sum or product or free-form")
	rootCmd.PersistentFlags().String("expression", "", "Row fusion expression over targets[i], required for free-form")
	rootCmd.PersistentFlags().String("formula", "", "Term-combination formula over targets[i] (default: weighted sum)")
	rootCmd.PersistentFlags().StringP("direction", "d", string(schema.Maximize), "Optimization direction: maximize or minimize")
	rootCmd.PersistentFlags().IntP("trials", "t", contract.DefaultTrials, "Number of trials to run")
	rootCmd.PersistentFlags().Int64("seed", contract.DefaultSeed, "Random seed for the searcher")
	rootCmd.PersistentFlags().String("searcher", string(schema.TPESearcher), "Search backend: tpe or random")
	rootCmd.PersistentFlags().Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().IntP("limit", "l", contract.DefaultResultLimit, "Number of trials to display")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("store-backend", string(schema.SQLiteBackend), "Trial store backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("store-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("emoji", "yes", "Enable emojis in output headers (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of optimizeCmd to Viper
	optimizeCmd.Flags().StringArrayP("objective", "o", nil, "Objective term 'metric:target[:options]' (repeatable)")
	optimizeCmd.Flags().Bool("power", false, "Search per-column power exponents")
	optimizeCmd.Flags().Bool("first-order", false, "Search per-column first-order offsets (product equation only)")
	optimizeCmd.Flags().Bool("dirichlet", false, "Normalize sampled weights onto the simplex")
	optimizeCmd.Flags().String("weight-bounds", "", "Weight bounds as 'low,high' (default depends on equation)")
	optimizeCmd.Flags().String("power-bounds", "", "Power bounds as 'low,high'")
	optimizeCmd.Flags().String("first-order-bounds", "", "First-order bounds as 'low,high'")
	optimizeCmd.Flags().String("sampler", string(schema.NoSampler), "Boundary sampler for wuauc: none or frequency or gini")
	optimizeCmd.Flags().String("sampler-column", "", "Column the boundary sampler draws from (defaults to the first wuauc target)")
	optimizeCmd.Flags().Int("sampler-size", contract.DefaultSamplerSize, "Number of boundaries to sample")
	optimizeCmd.Flags().Bool("sampler-log", false, "Place frequency boundaries on a log scale")
	optimizeCmd.Flags().Bool("sampler-laplace", false, "Apply Laplace smoothing to frequency boundaries")
	optimizeCmd.Flags().String("study-name", "", "Study name for persistence (default: timestamped)")
	optimizeCmd.Flags().String("study-dir", "", "Directory for JSONL trial logs (empty = disabled)")
	if err := viper.BindPFlags(optimizeCmd.Flags()); err != nil {
		contract.LogFatal("Error binding optimize flags", err)
	}

	// Bind all flags of studyMigrateCmd to Viper
	studyMigrateCmd.Flags().Int("migrate-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(studyMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding study migrate flags", err)
	}
}
