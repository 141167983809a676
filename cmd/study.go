package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/scorefuse/scorefuse/internal/contract"
	"github.com/scorefuse/scorefuse/internal/triallog"
	"github.com/scorefuse/scorefuse/schema"
)

// studySetup loads minimal configuration needed for study store operations.
// This is used by commands that need store access without full shared setup.
func studySetup() error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	// Get store-related config values
	backendStr := viper.GetString("store-backend")
	connStr := viper.GetString("store-db-connect")

	// Handle empty backend as the SQLite default
	var backend schema.DatabaseBackend
	if backendStr == "" {
		backend = schema.SQLiteBackend
	} else {
		backend = schema.DatabaseBackend(backendStr)
	}

	// Basic validation for database backends
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return err
	}

	cfg.StoreBackend = backend
	cfg.StoreDBConnect = connStr

	// Get output-related config values (used by export command)
	cfg.OutputFile = viper.GetString("output-file")

	return nil
}

// studySetupWrapper wraps studySetup to provide PreRunE for study commands.
func studySetupWrapper(_ *cobra.Command, _ []string) error {
	return studySetup()
}

// studyMigrateSetup loads minimal configuration needed for migrate operations.
// This is a specialized setup that does NOT open the store or create tables,
// allowing migrations to run on a fresh database.
func studyMigrateSetup() error {
	if err := studySetup(); err != nil {
		return err
	}

	// For SQLite backend with empty connection string, use default path
	if cfg.StoreBackend == schema.SQLiteBackend && cfg.StoreDBConnect == "" {
		cfg.StoreDBConnect = contract.GetStudyDBFilePath()
	}

	return nil
}

// studyMigrateSetupWrapper wraps studyMigrateSetup to provide PreRunE for migrate command.
func studyMigrateSetupWrapper(_ *cobra.Command, _ []string) error {
	return studyMigrateSetup()
}

// withStore opens the trial store, runs fn and closes the store again.
func withStore(fn func(*triallog.TrialStore) error) error {
	store, err := triallog.NewTrialStore(cfg.StoreBackend, cfg.StoreDBConnect)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return fn(store)
}

// studyCmd focused on trial history management.
//
// Note: Study subcommands use minimal initialization (studySetup) instead of
// the full sharedSetup used by the optimize command. This avoids dataset
// validation and search-space processing for simple store operations.
var studyCmd = &cobra.Command{
	Use:   "study",
	Short: "Manage persisted studies and trial history",
	Long: `Manage the study and trial history kept by the trial store.

Every optimization run records:
- Study metadata (name, direction, configuration)
- Every trial with its parameters, term values, reward and timing

This enables comparing parameter searches over time and exporting trial
history for offline analysis.

Supported backends: SQLite (default), MySQL, PostgreSQL, or None (disabled)

Subcommands:
  status  - Show trial store statistics
  export  - Export studies and trials to Parquet for analytics
  clear   - Remove all studies and trials
  migrate - Run database schema migrations

Examples:
  # Check store status
  scorefuse study status

  # Export for analysis in pandas/DuckDB
  scorefuse study export --output-file study-data.parquet`,
}

// studyStatusCmd shows trial store status.
var studyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display trial store statistics",
	Long: `Show detailed information about the trial store.

Displays:
- Backend type
- Total number of studies stored
- Total number of trials stored

Use this to:
- Verify trial persistence is enabled and working
- Monitor data accumulation over time
- Check database connection health

Examples:
  # Check trial store status
  scorefuse study status`,
	PreRunE: studySetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		err := withStore(func(store *triallog.TrialStore) error {
			status, err := store.GetStatus()
			if err != nil {
				return err
			}
			triallog.PrintStoreStatus(status)
			return nil
		})
		if err != nil {
			contract.LogFatal("Failed to get study status", err)
		}
	},
}

// studyExportCmd exports studies and trials to Parquet files.
var studyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export studies and trials to Parquet for BI tools and analytics",
	Long: `Export all stored study data to Parquet format for use with analytics tools.

Exports two datasets:
- Studies - metadata about each optimization run
- Trials - parameters, term values and rewards per trial

Parquet format enables:
- Fast querying with DuckDB, Apache Spark, pandas
- Efficient storage with columnar compression
- Direct import into BI tools (Tableau, Metabase, etc.)

Requires: --output-file parameter

Examples:
  # Export all data
  scorefuse study export --output-file study-data

  # Use with DuckDB for analysis
  scorefuse study export --output-file data
  duckdb -c "SELECT * FROM read_parquet('data.trials.parquet') LIMIT 10"`,
	PreRunE: studySetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		err := withStore(func(store *triallog.TrialStore) error {
			return triallog.ExecuteStudyExport(store, cfg.OutputFile)
		})
		if err != nil {
			contract.LogFatal("Failed to export study data", err)
		}
	},
}

// studyClearCmd clears the trial history.
var studyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all studies and trial history",
	Long: `Delete all stored studies and their trial history.

WARNING: This action cannot be undone. Consider exporting data first.

Use this when:
- Resetting the trial history
- Database storage is full
- Starting a fresh round of experiments

Examples:
  # Export before clearing
  scorefuse study export --output-file backup
  scorefuse study clear`,
	PreRunE: studySetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		err := withStore(func(store *triallog.TrialStore) error {
			return store.Clear()
		})
		if err != nil {
			contract.LogFatal("Failed to clear study data", err)
		}
		fmt.Println("Study data cleared successfully.")
	},
}

// studyMigrateCmd runs database migrations for the trial store.
var studyMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions for the trial store.

Migrations allow:
- Upgrading to new schema versions when scorefuse is updated
- Safely modifying database structure without data loss
- Rolling back schema changes if needed

By default, migrates to the latest version. Use --migrate-version for specific versions.

Examples:
  # Migrate to latest version (default)
  scorefuse study migrate

  # Migrate to specific version
  scorefuse study migrate --migrate-version 1

  # Rollback to initial state
  scorefuse study migrate --migrate-version 0`,
	PreRunE: studyMigrateSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("migrate-version")
		if err := triallog.MigrateStore(cfg.StoreBackend, cfg.StoreDBConnect, targetVersion); err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
	},
}
