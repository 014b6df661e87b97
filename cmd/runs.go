package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/huangsam/issuetrend/internal/contract"
	"github.com/huangsam/issuetrend/internal/iocache"
	"github.com/huangsam/issuetrend/internal/outwriter"
	"github.com/huangsam/issuetrend/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// defaultRunsLimit is how many runs "runs list" prints by default.
const defaultRunsLimit = 20

// runsSetup loads minimal configuration needed for run history operations.
// This is used by commands that need the run store without full shared setup.
func runsSetup() error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	backend, connStr, err := backendFromViper("runs-backend", "runs-db-connect")
	if err != nil {
		return err
	}

	// Get output-related config values (used by list and export)
	cfg.OutputFile = viper.GetString("output-file")
	cfg.Output = schema.OutputMode(strings.ToLower(viper.GetString("output")))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", cfg.Output)
	}
	if colors, err := contract.ParseBoolString(viper.GetString("color")); err == nil {
		cfg.UseColors = colors
	}

	// Initialize the run store only (no event cache for runs commands)
	if err := iocache.InitStores("", "", backend, connStr); err != nil {
		return fmt.Errorf("failed to initialize run store: %w", err)
	}

	cfg.RunsBackend = backend
	cfg.RunsDBConnect = connStr
	return nil
}

// runsSetupWrapper wraps runsSetup to provide PreRunE for runs commands.
func runsSetupWrapper(_ *cobra.Command, _ []string) error {
	return runsSetup()
}

// runsMigrateSetup loads minimal configuration needed for migrate operations.
// This does NOT initialize stores or create tables, allowing migrations to run
// on a fresh database.
func runsMigrateSetup() error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	backend, connStr, err := backendFromViper("runs-backend", "runs-db-connect")
	if err != nil {
		return err
	}
	if backend == schema.SQLiteBackend {
		connStr = sqliteFile(connStr, contract.GetRunsDBFilePath())
	}

	cfg.RunsBackend = backend
	cfg.RunsDBConnect = connStr
	return nil
}

// runsMigrateSetupWrapper wraps runsMigrateSetup to provide PreRunE for migrate command.
func runsMigrateSetupWrapper(_ *cobra.Command, _ []string) error {
	return runsMigrateSetup()
}

// runsCmd focused on run history management.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage the history of update runs",
	Long: `Manage the run history recorded by every update.

Each repository update stores one row with its start and end time, outcome,
error kind and the number of events, items, days and labels it processed.

Supported backends: SQLite (default), MySQL, PostgreSQL, or None (disabled)

Subcommands:
  status  - Show run history statistics
  list    - Print the most recent runs
  export  - Export the history to Parquet
  clear   - Remove all runs
  migrate - Run database schema migrations

Examples:
  # Which repositories failed recently?
  issuetrend runs list --limit 50

  # Export for analysis in pandas/DuckDB
  issuetrend runs export --output-file runs.parquet`,
}

// runsClearCmd clears the run history.
var runsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all recorded runs",
	Long: `Delete the whole run history. Stored timelines are not affected.

WARNING: This action cannot be undone. Consider exporting data first.

Examples:
  # Export before clearing
  issuetrend runs export --output-file backup.parquet
  issuetrend runs clear`,
	PreRunE: runsSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		iocache.CloseStores()
		if err := iocache.ClearRuns(cfg.RunsBackend, sqliteFile(cfg.RunsDBConnect, contract.GetRunsDBFilePath()), cfg.RunsDBConnect); err != nil {
			return fmt.Errorf("failed to clear run history: %w", err)
		}
		fmt.Println("Run history cleared successfully.")
		return nil
	},
}

// runsStatusCmd shows run history status.
var runsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display run history statistics and connection details",
	Long: `Show the backend, number of runs, repositories tracked, failures and the newest
and oldest run of the history.

Examples:
  # Check run history status
  issuetrend runs status`,
	PreRunE: runsSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		status, err := storeManager.GetRunStore().GetStatus()
		if err != nil {
			return fmt.Errorf("failed to get run status: %w", err)
		}
		iocache.PrintRunStatus(os.Stdout, status)
		return nil
	},
}

// runsListCmd prints recent runs.
var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the most recent runs",
	Long: `Print recent runs newest first, in any output format.

Examples:
  # Last 20 runs as a table
  issuetrend runs list

  # Every run as CSV
  issuetrend runs list --limit 0 --output csv --output-file runs.csv`,
	PreRunE: runsSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		if cfg.RunsBackend == schema.NoneBackend {
			return errors.New("cannot list runs: run history is disabled (runs-backend is none)")
		}
		runs, err := storeManager.GetRunStore().ListRuns(viper.GetInt("limit"))
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		if err := outwriter.WriteRuns(runs, cfg); err != nil {
			return fmt.Errorf("failed to print runs: %w", err)
		}
		return nil
	},
}

// runsExportCmd exports the run history to Parquet.
var runsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the run history to Parquet for BI tools and analytics",
	Long: `Export every recorded run to a Parquet file.

Requires: --output-file parameter

Examples:
  # Export all runs
  issuetrend runs export --output-file runs.parquet

  # Use with DuckDB for analysis
  duckdb -c "SELECT repo, count(*) FROM read_parquet('runs.parquet') WHERE outcome = 'failed' GROUP BY repo"`,
	PreRunE: runsSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := iocache.ExportRuns(storeManager.GetRunStore(), cfg.OutputFile, os.Stdout); err != nil {
			return fmt.Errorf("failed to export run history: %w", err)
		}
		return nil
	},
}

// runsMigrateCmd runs database migrations for the run store.
var runsMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions for the run history store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  issuetrend runs migrate

  # Rollback to the initial state
  issuetrend runs migrate --target-version 0`,
	PreRunE: runsMigrateSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		targetVersion := viper.GetInt("target-version")
		if err := iocache.MigrateRuns(cfg.RunsBackend, cfg.RunsDBConnect, targetVersion, os.Stdout); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		return nil
	},
}
