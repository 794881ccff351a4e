/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/moamenhredeen/apicheck/internal/config"
	"github.com/moamenhredeen/apicheck/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	cfgFile string

	// populated by the root PersistentPreRunE
	v         *viper.Viper
	cfg       config.Config
	logger    *slog.Logger
	logCloser io.Closer

	isTTY = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	// Color helpers
	green = color.New(color.FgGreen).SprintFunc()
	red   = color.New(color.FgRed).SprintFunc()
)

// errFailed reports that a checked request failed. The verdicts are already
// printed, so Execute only turns it into the exit status.
var errFailed = errors.New("request check failed")

// flagKeys maps command line flags to configuration keys
var flagKeys = map[string]string{
	"log-level":   "log.level",
	"log-format":  "log.format",
	"log-file":    "log.file",
	"specs":       "specs.dir",
	"concurrency": "batch.concurrency",
	"seed":        "batch.seed",
	"collect-all": "check.collect_all",
	"audit":       "check.audit",
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "apicheck",
	Short: "Check API requests against OpenAPI specifications",
	Long: `apicheck validates API requests against an OpenAPI or Swagger document
and answers every valid request with a mock response generated from the
declared response schema.

Use it to check single requests, or whole JSON-lines datasets of requests
against a directory of specifications, without calling a live backend.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// setup loads the configuration and builds the logger
func setup(cmd *cobra.Command, args []string) error {
	v = config.New(cfgFile)
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return err
	}

	var err error
	cfg, err = config.Load(v)
	if err != nil {
		return err
	}

	logger, logCloser, err = logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: logging.Format(cfg.Log.Format),
		Output: os.Stderr,
		File:   cfg.Log.File,
	})
	if err != nil {
		return err
	}

	if used := v.ConfigFileUsed(); used != "" {
		logger.Debug("configuration loaded", "file", used)
	}
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

func Execute() {
	err := rootCmd.Execute()
	if logCloser != nil {
		logCloser.Close()
	}
	if code := exitCode(err, os.Stderr); code != 0 {
		os.Exit(code)
	}
}

// exitCode reports the process status for err, printing it unless it is
// errFailed
func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errFailed):
		return 1
	default:
		fmt.Fprintln(stderr, red("Error:"), err)
		return 1
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./apicheck.toml or ~/.config/apicheck/apicheck.toml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text, json, logfmt")
	rootCmd.PersistentFlags().String("log-file", "", "Also write logs to this file")
}
