// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the docling-report CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/docling-report/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// configName is the base name of the config file searched in . and
// ~/.config/docling-report/.
const configName = "docling-report"

// logger carries the run_id of the current invocation once the root
// command has started.
var logger = logrus.NewEntry(logrus.StandardLogger())

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets = secrets.Set{}

// rootCmd is the base command for the docling-report CLI.
var rootCmd = &cobra.Command{
	Use:   "docling-report",
	Short: "Convert documents with docling and write Markdown reports",
	Long: `docling-report converts a PDF (local path or URL) with docling, captions its
pictures with a vision-language model, and writes a Markdown report with the
extracted images next to it.

The report command renders the whole document; the pictures command renders
only the pictures with their captions and descriptions.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := viper.GetViper()
		if err := bindFlags(v, cmd); err != nil {
			return err
		}
		if err := setupLogging(v.GetString(keyLogLevel)); err != nil {
			return err
		}
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading .env: %w", err)
		}

		s, err := secrets.Load(".secrets/", logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			logger.WithField("secrets", s.Names()).Debug("loaded secrets")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", fmt.Sprintf("config file (default: ./%[1]s.yaml or ~/.config/%[1]s/%[1]s.yaml)", configName))
	rootCmd.PersistentFlags().String("log-level", "info", "log level: trace, debug, info, warn, error")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", configName))
		}
	}

	setDefaults(viper.GetViper())
	viper.SetEnvPrefix("DOCLING_REPORT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv(keyLogLevel, "DOCLING_REPORT_LOG_LEVEL", "LOG_LEVEL")

	if err := viper.ReadInConfig(); err == nil {
		logger.WithField("file", viper.ConfigFileUsed()).Debug("using config file")
	}
}

// setupLogging configures the standard logger and stamps every entry of
// this invocation with a fresh run_id.
func setupLogging(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	l := logrus.StandardLogger()
	l.SetOutput(os.Stderr)
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger = l.WithField("run_id", uuid.NewString())
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.WithError(err).Error("docling-report failed")
		stop()
		os.Exit(1)
	}
}
