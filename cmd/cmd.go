// Package cmd defines the command-line interface for issuetrend.
package cmd

import (
	"github.com/huangsam/issuetrend/internal/contract"
	"github.com/huangsam/issuetrend/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// defaultChartFile is where chart writes its page unless --chart-file is given.
const defaultChartFile = "issuetrend.html"

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(chartCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(mcpCmd)

	// Add the cache subcommands to the parent cache command
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatusCmd)

	// Add the runs subcommands to the parent runs command
	runsCmd.AddCommand(runsClearCmd)
	runsCmd.AddCommand(runsStatusCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsExportCmd)
	runsCmd.AddCommand(runsMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("data-dir", contract.DefaultDataDir, "Directory holding one timeline document per repository")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json or parquet")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().String("cache-backend", string(schema.SQLiteBackend), "Event cache backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("cache-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("runs-backend", string(schema.SQLiteBackend), "Run history backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("runs-db-connect", "", "Database connection string for run history (must differ from cache-db-connect)")
	rootCmd.PersistentFlags().String("log-level", contract.DefaultLogLevel, "Log level: debug or info or warn or error")
	rootCmd.PersistentFlags().String("log-format", contract.DefaultLogFormat, "Log format: console or json")
	rootCmd.PersistentFlags().String("color", "auto", "Enable colored status in output (auto/yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("profile", "", "Enable profiling and write profiles to files with this prefix")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of updateCmd to Viper
	updateCmd.Flags().String("token", "", "GitHub token (prefer the GITHUB_TOKEN or ISSUETREND_TOKEN env var)")
	updateCmd.Flags().String("api-url", contract.DefaultAPIURL, "GitHub API base URL")
	updateCmd.Flags().Int("workers", contract.DefaultWorkers, "Number of repositories updated concurrently")
	updateCmd.Flags().Int("retries", contract.DefaultRetries, "Retries per request on transient failures")
	updateCmd.Flags().String("timeout", contract.DefaultTimeout.String(), "Timeout per HTTP request")
	updateCmd.Flags().Int("rate-floor", contract.DefaultRateFloor, "Wait for the rate limit reset when fewer requests remain")
	updateCmd.Flags().Bool("rebuild", false, "Recompute timelines from scratch, moving unreadable documents aside")
	updateCmd.Flags().String("metrics-file", "", "Write Prometheus metrics in textfile format to this path")
	if err := viper.BindPFlags(updateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding update flags", err)
	}

	// The viewer flags are shared by showCmd and chartCmd, so sharedSetup binds
	// them for whichever command runs
	for _, c := range []*cobra.Command{showCmd, chartCmd} {
		c.Flags().String("label", "", "Only count items carrying this label")
		c.Flags().String("since", "", "First day to include (YYYY-MM-DD)")
	}
	chartCmd.Flags().String("chart-file", defaultChartFile, "Path of the HTML chart page")

	// Bind all flags of runsListCmd to Viper
	runsListCmd.Flags().Int("limit", defaultRunsLimit, "Number of most recent runs to list (0 lists all)")
	if err := viper.BindPFlags(runsListCmd.Flags()); err != nil {
		contract.LogFatal("Error binding runs list flags", err)
	}

	// Bind all flags of runsMigrateCmd to Viper
	runsMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(runsMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding runs migrate flags", err)
	}
}
