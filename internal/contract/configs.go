package contract

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/huangsam/issuetrend/schema"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Default values for configuration.
const (
	DefaultDataDir   = "data"
	DefaultAPIURL    = "https://api.github.com"
	DefaultWorkers   = 4
	MaxWorkers       = 64
	DefaultRetries   = 3
	MaxRetries       = 10
	DefaultTimeout   = 30 * time.Second
	DefaultRateFloor = 50
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
)

// Log formats supported by NewLogger.
const (
	ConsoleLogFormat = "console"
	JSONLogFormat    = "json"
)

// DateTimeFormat is the default date time representation.
var DateTimeFormat = time.RFC3339

// stdoutIsTerminal reports whether standard output is attached to a terminal.
var stdoutIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Config holds the runtime configuration for all commands.
// This struct remains the "final, validated" config.
type Config struct {
	Repos   []schema.RepoID
	DataDir string

	Token     string // Please use env var as this is plaintext
	APIURL    string
	Workers   int
	Retries   int
	Timeout   time.Duration
	RateFloor int // Remaining requests below which the client waits for the reset
	Rebuild   bool

	Label      string
	Since      time.Time // Zero means the whole timeline
	Output     schema.OutputMode
	OutputFile string
	ChartFile  string

	CacheBackend   schema.DatabaseBackend
	CacheDBConnect string // Please use env var as this is plaintext

	RunsBackend   schema.DatabaseBackend
	RunsDBConnect string // Please use env var as this is plaintext

	LogLevel    zerolog.Level
	LogFormat   string
	MetricsFile string

	UseColors bool // Enable colored status in table output
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// This is set manually from positional args, so no tag
	RepoArgs []string

	// --- Fields from rootCmd.PersistentFlags() ---
	DataDir        string `mapstructure:"data-dir"`
	Output         string `mapstructure:"output"`
	OutputFile     string `mapstructure:"output-file"`
	CacheBackend   string `mapstructure:"cache-backend"`
	CacheDBConnect string `mapstructure:"cache-db-connect"`
	RunsBackend    string `mapstructure:"runs-backend"`
	RunsDBConnect  string `mapstructure:"runs-db-connect"`
	LogLevel       string `mapstructure:"log-level"`
	LogFormat      string `mapstructure:"log-format"`
	Color          string `mapstructure:"color"`

	// --- Fields from updateCmd.Flags() ---
	Repos       []string `mapstructure:"repos"`
	Token       string   `mapstructure:"token"`
	APIURL      string   `mapstructure:"api-url"`
	Workers     int      `mapstructure:"workers"`
	Retries     int      `mapstructure:"retries"`
	Timeout     string   `mapstructure:"timeout"`
	RateFloor   int      `mapstructure:"rate-floor"`
	Rebuild     bool     `mapstructure:"rebuild"`
	MetricsFile string   `mapstructure:"metrics-file"`

	// --- Fields from showCmd.Flags() and chartCmd.Flags() ---
	Label     string `mapstructure:"label"`
	Since     string `mapstructure:"since"`
	ChartFile string `mapstructure:"chart-file"`
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := processSourceInputs(cfg, input); err != nil {
		return err
	}
	if err := processViewerInputs(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	return resolveRepos(cfg, input)
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// parseBackend lowercases a backend name, treating empty as the SQLite default.
func parseBackend(kind, raw string) (schema.DatabaseBackend, error) {
	if raw == "" {
		return schema.SQLiteBackend, nil
	}
	backend := schema.DatabaseBackend(strings.ToLower(raw))
	if _, ok := schema.ValidDatabaseBackends[backend]; !ok {
		return "", fmt.Errorf("invalid %s backend '%s'. must be sqlite, mysql, postgresql, none", kind, raw)
	}
	return backend, nil
}

// validateBackendConfigs validates event cache and run store backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	var err error

	// --- Event Cache Backend Validation ---
	if cfg.CacheBackend, err = parseBackend("cache", input.CacheBackend); err != nil {
		return err
	}
	cfg.CacheDBConnect = input.CacheDBConnect
	if err := ValidateDatabaseConnectionString(cfg.CacheBackend, cfg.CacheDBConnect); err != nil {
		return fmt.Errorf("cache-db-connect: %w", err)
	}

	// --- Run Store Backend Validation ---
	if cfg.RunsBackend, err = parseBackend("runs", input.RunsBackend); err != nil {
		return err
	}
	cfg.RunsDBConnect = input.RunsDBConnect
	if err := ValidateDatabaseConnectionString(cfg.RunsBackend, cfg.RunsDBConnect); err != nil {
		return fmt.Errorf("runs-db-connect: %w", err)
	}

	// For SQLite, resolve to actual file paths to catch default path conflicts
	if cfg.CacheBackend == schema.SQLiteBackend && cfg.RunsBackend == schema.SQLiteBackend {
		cacheDBPath := cfg.CacheDBConnect
		if cacheDBPath == "" {
			cacheDBPath = GetCacheDBFilePath()
		}
		runsDBPath := cfg.RunsDBConnect
		if runsDBPath == "" {
			runsDBPath = GetRunsDBFilePath()
		}
		if cacheDBPath == runsDBPath {
			return fmt.Errorf("event cache and run history must use different SQLite database files. Both resolve to %q", cacheDBPath)
		}
	}
	return nil
}

// validateSimpleInputs processes and validates output and logging fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.DataDir = strings.TrimSpace(input.DataDir)
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	cfg.OutputFile = input.OutputFile
	cfg.MetricsFile = input.MetricsFile
	cfg.Rebuild = input.Rebuild

	// --- 1. Output Validation ---
	cfg.Output = schema.TextOut
	if input.Output != "" {
		cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	}
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", input.Output)
	}
	if cfg.Output == schema.ParquetOut && cfg.OutputFile == "" {
		return fmt.Errorf("parquet output requires --output-file")
	}

	// --- 2. Logging Validation ---
	levelStr := input.LogLevel
	if levelStr == "" {
		levelStr = DefaultLogLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		return fmt.Errorf("invalid log level '%s': %w", input.LogLevel, err)
	}
	cfg.LogLevel = level

	cfg.LogFormat = strings.ToLower(input.LogFormat)
	if cfg.LogFormat == "" {
		cfg.LogFormat = DefaultLogFormat
	}
	if cfg.LogFormat != ConsoleLogFormat && cfg.LogFormat != JSONLogFormat {
		return fmt.Errorf("invalid log format '%s'. must be console, json", input.LogFormat)
	}

	// --- 3. Color Parsing ---
	switch strings.ToLower(input.Color) {
	case "", "auto":
		cfg.UseColors = stdoutIsTerminal()
	default:
		colors, err := ParseBoolString(input.Color)
		if err != nil {
			return fmt.Errorf("invalid --color value: %w", err)
		}
		cfg.UseColors = colors
	}
	return nil
}

// processSourceInputs validates the GitHub adapter settings.
func processSourceInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.Token = strings.TrimSpace(input.Token)
	if cfg.Token == "" {
		cfg.Token = strings.TrimSpace(os.Getenv("GITHUB_TOKEN"))
	}

	cfg.APIURL = strings.TrimRight(strings.TrimSpace(input.APIURL), "/")
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if u, err := url.Parse(cfg.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api-url '%s'. must be an absolute URL", input.APIURL)
	}

	cfg.Workers = input.Workers
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Workers < 0 || cfg.Workers > MaxWorkers {
		return fmt.Errorf("workers must be between 1 and %d (received %d)", MaxWorkers, input.Workers)
	}

	if input.Retries < 0 || input.Retries > MaxRetries {
		return fmt.Errorf("retries must be between 0 and %d (received %d)", MaxRetries, input.Retries)
	}
	cfg.Retries = input.Retries

	cfg.Timeout = DefaultTimeout
	if input.Timeout != "" {
		timeout, err := time.ParseDuration(input.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout '%s': %w", input.Timeout, err)
		}
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive (received %s)", input.Timeout)
		}
		cfg.Timeout = timeout
	}

	if input.RateFloor < 0 {
		return fmt.Errorf("rate-floor cannot be negative (received %d)", input.RateFloor)
	}
	cfg.RateFloor = input.RateFloor
	return nil
}

// processViewerInputs handles the label, since and chart settings.
func processViewerInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.Label = strings.TrimSpace(input.Label)
	cfg.ChartFile = input.ChartFile

	cfg.Since = time.Time{}
	if s := strings.TrimSpace(input.Since); s != "" {
		since, err := schema.ParseDay(s)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		cfg.Since = since
	}
	return nil
}

// resolveRepos merges positional repositories with those from the config file.
func resolveRepos(cfg *Config, input *ConfigRawInput) error {
	all := make([]string, 0, len(input.RepoArgs)+len(input.Repos))
	all = append(all, input.RepoArgs...)
	all = append(all, input.Repos...)
	repos, err := schema.ParseRepoIDs(all)
	if err != nil {
		return err
	}
	cfg.Repos = repos
	return nil
}
