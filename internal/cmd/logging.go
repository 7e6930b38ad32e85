package cmd

import (
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

var logger *slog.Logger

// initLogging installs a charmbracelet handler behind slog. --verbose
// enables debug output with caller locations.
func initLogging() {
	level := log.InfoLevel
	verbose := viper.GetBool("verbose")
	if verbose {
		level = log.DebugLevel
	}

	handler := log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		ReportCaller:    verbose,
		Prefix:          "noisesynth",
	})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}
