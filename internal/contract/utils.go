package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/huangsam/issuetrend/schema"
	"github.com/rs/zerolog"
)

// Outcome label constants.
const (
	OKValue     = "OK"     // Repository updated
	FailedValue = "FAILED" // Repository update failed
)

// Color variables for console output.
var (
	OKColor     = color.New(color.FgGreen, color.Bold) // OKColor represents a successful update.
	FailedColor = color.New(color.FgRed, color.Bold)   // FailedColor represents standard danger.
	MutedColor  = color.New(color.FgHiBlack)           // MutedColor is for secondary details.
)

// GetPlainOutcome returns the plain text label of a run outcome.
// This is the core logic used for CSV, JSON, and table printing.
func GetPlainOutcome(outcome schema.RunOutcome) string {
	if outcome == schema.RunSucceeded {
		return OKValue
	}
	return FailedValue
}

// GetColorOutcome returns a colored outcome label for console output (table).
func GetColorOutcome(outcome schema.RunOutcome) string {
	text := GetPlainOutcome(outcome)
	if text == OKValue {
		return OKColor.Sprint(text)
	}
	return FailedColor.Sprint(text)
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. An empty path selects os.Stdout.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// stderrLogger backs LogFatal and LogWarn, which also run before the configured logger exists.
var stderrLogger = NewLogger(zerolog.InfoLevel, DefaultLogFormat, os.Stderr)

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	stderrLogger.Fatal().Err(err).Msg(msg)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	stderrLogger.Warn().Err(err).Msg(msg)
}

// GetCacheDBFilePath returns the path to the SQLite DB file for the event cache.
func GetCacheDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".issuetrend_cache.db"
	}
	return filepath.Join(homeDir, ".issuetrend_cache.db")
}

// GetRunsDBFilePath returns the path to the SQLite DB file for run history.
func GetRunsDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".issuetrend_runs.db"
	}
	return filepath.Join(homeDir, ".issuetrend_runs.db")
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}

// TruncateText truncates s to maxWidth runes with an ellipsis suffix.
func TruncateText(s string, maxWidth int) string {
	runes := []rune(s)
	if len(runes) > maxWidth && maxWidth > 3 {
		return string(runes[:maxWidth-3]) + "..."
	}
	return s
}
