package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/parentgrade/gradecore/internal/api"
	"github.com/parentgrade/gradecore/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
)

// ParseLogLevel converts a string log level to slog.Level.
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: must be debug, info, warn, or error", level)
	}
}

// GetLogLevel resolves the configured log level: --log-level flag,
// then GRADECORE_LOG_LEVEL, then info.
func GetLogLevel() slog.Level {
	level := logLevel
	if level == "" {
		level = os.Getenv("GRADECORE_LOG_LEVEL")
	}
	if level == "" {
		level = "info"
	}

	parsed, err := ParseLogLevel(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, using info\n", err)
		return slog.LevelInfo
	}
	return parsed
}

var rootCmd = &cobra.Command{
	Use:   "gradecli",
	Short: "Dictation worksheet grading pipeline with VLM+OCR fusion",
	Long: `gradecli grades scanned dictation worksheets by fusing a vision-language
model's freeform reading against word-level OCR.

The pipeline:
  - Preprocesses each page (white balance, downscale, re-encode)
  - Prompts a VLM for the full worksheet in one multi-image call
  - Runs per-page OCR concurrently
  - Fuses VLM items against OCR answer lines (text similarity, position,
    sequential fallback)
  - Extracts and reconciles a printed worksheet identifier across pages
  - Annotates each page with grading marks and persists the result`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.gradecore/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "gradecore home directory (default: ~/.gradecore)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn, error (default: info, env: GRADECORE_LOG_LEVEL)",
	)

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(gradeCmd)
}
