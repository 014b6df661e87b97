package cmd

import (
	"fmt"
	"os"

	"github.com/huangsam/issuetrend/internal/contract"
	"github.com/huangsam/issuetrend/internal/iocache"
	"github.com/huangsam/issuetrend/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// backendFromViper reads a backend setting and validates its connection string.
func backendFromViper(backendKey, connectKey string) (schema.DatabaseBackend, string, error) {
	backend := schema.DatabaseBackend(viper.GetString(backendKey))
	if backend == "" {
		backend = schema.SQLiteBackend
	}
	if _, ok := schema.ValidDatabaseBackends[backend]; !ok {
		return "", "", fmt.Errorf("invalid %s '%s'. must be sqlite, mysql, postgresql, none", backendKey, backend)
	}
	connStr := viper.GetString(connectKey)
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return "", "", fmt.Errorf("%s: %w", connectKey, err)
	}
	return backend, connStr, nil
}

// sqliteFile returns the database file a SQLite backend uses.
func sqliteFile(connStr, defaultPath string) string {
	if connStr != "" {
		return connStr
	}
	return defaultPath
}

// cacheSetup loads minimal configuration needed for cache operations.
// This is used by commands that need cache access without full shared setup.
func cacheSetup() error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	backend, connStr, err := backendFromViper("cache-backend", "cache-db-connect")
	if err != nil {
		return err
	}

	// Initialize the event cache only (no run tracking for cache commands)
	if err := iocache.InitStores(backend, connStr, "", ""); err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	cfg.CacheBackend = backend
	cfg.CacheDBConnect = connStr
	return nil
}

// cacheSetupWrapper wraps cacheSetup to provide PreRunE for cache commands.
func cacheSetupWrapper(_ *cobra.Command, _ []string) error {
	return cacheSetup()
}

// cacheCmd focused on event cache management.
//
// Note: Cache subcommands use minimal initialization (cacheSetup) instead of
// the full sharedSetup used by the timeline commands.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the GitHub response cache (saves rate limit)",
	Long: `Manage the cache of GitHub API responses used for conditional requests.

Each listing page is stored with its ETag. Unchanged pages are answered by the
API with 304 Not Modified, which does not count against the rate limit.

Supported backends: SQLite (default), MySQL, PostgreSQL, or None (disabled)

Subcommands:
  status - Show cache statistics and connection info
  clear  - Remove all cached responses

Examples:
  # Check cache status
  issuetrend cache status

  # Force full refetches on the next update
  issuetrend cache clear`,
}

// cacheClearCmd clears the cache.
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached GitHub responses",
	Long: `Delete all cached GitHub API responses from the configured backend.

For SQLite: Deletes the database file
For MySQL/PostgreSQL: Drops the cache table

Examples:
  # Clear SQLite cache (default)
  issuetrend cache clear

  # Clear MySQL cache (set connection string via env variable)
  ISSUETREND_CACHE_BACKEND=mysql ISSUETREND_CACHE_DB_CONNECT="..." issuetrend cache clear`,
	PreRunE: cacheSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		// The store holds the SQLite file open, so close it first
		iocache.CloseStores()
		if err := iocache.ClearCache(cfg.CacheBackend, sqliteFile(cfg.CacheDBConnect, contract.GetCacheDBFilePath()), cfg.CacheDBConnect); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}
		fmt.Println("Cache cleared successfully.")
		return nil
	},
}

// cacheStatusCmd shows cache status.
var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display cache statistics and connection details",
	Long: `Show the backend, number of cached pages, newest and oldest entry and the size
of the GitHub response cache.

Examples:
  # Check cache status
  issuetrend cache status`,
	PreRunE: cacheSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		status, err := storeManager.GetEventCache().GetStatus()
		if err != nil {
			return fmt.Errorf("failed to get cache status: %w", err)
		}
		iocache.PrintCacheStatus(os.Stdout, status)
		return nil
	},
}
