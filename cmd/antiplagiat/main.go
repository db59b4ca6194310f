// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the antiplagiat CLI. It submits
// texts to an originality-check engine, waits for the checks to finish,
// and renders or archives the aggregated reports.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/antiplagiat/internal/logging"
	"github.com/pdiddy/antiplagiat/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// log is the process logger, configured in PersistentPreRunE.
var log = logging.New("info", os.Stderr)

// rootCmd is the base command for the antiplagiat CLI.
var rootCmd = &cobra.Command{
	Use:   "antiplagiat",
	Short: "Submit texts for originality checks and read the reports",
	Long: `antiplagiat talks to an originality-check engine. It submits a text,
polls the resulting task until the engine finishes, and aggregates the
matches into a per-source report.

Finished reports are kept in a local archive (.antiplagiat/ by default)
so they can be listed, exported, and shown again without the engine.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := viper.GetString("log.level")
		if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
			level = "debug"
		}
		log = logging.New(level, os.Stderr)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./antiplagiat.yaml or ~/.config/antiplagiat/config.yaml)")
	rootCmd.PersistentFlags().String("engine", "", "engine base URL (overrides engine.base_url)")
	rootCmd.PersistentFlags().String("archive-dir", "", "archive directory (overrides archive.dir)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log at debug level")

	_ = viper.BindPFlag("engine.base_url", rootCmd.PersistentFlags().Lookup("engine"))
	_ = viper.BindPFlag("archive.dir", rootCmd.PersistentFlags().Lookup("archive-dir"))

	setDefaults(viper.GetViper())
}

// setDefaults registers every configuration key so that environment
// variables and Unmarshal see them even without a config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.base_url", "http://localhost:8001")
	v.SetDefault("engine.timeout", "30s")
	v.SetDefault("engine.user_agent", "antiplagiat/"+version)
	v.SetDefault("poll.interval", "2s")
	v.SetDefault("poll.max_interval", "15s")
	v.SetDefault("poll.multiplier", 1.5)
	v.SetDefault("poll.max_attempts", 60)
	v.SetDefault("poll.max_duration", "5m")
	v.SetDefault("poll.fetch_timeout", "15s")
	v.SetDefault("poll.max_consecutive_errors", 3)
	v.SetDefault("poll.rate", 0)
	v.SetDefault("archive.dir", ".antiplagiat")
	v.SetDefault("log.level", "info")
}

func initConfig() {
	// A missing .env is the common case.
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Ignoring .env:", err)
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("antiplagiat")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "antiplagiat"))
		}
	}

	viper.SetEnvPrefix("ANTIPLAGIAT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig decodes the merged configuration.
func loadConfig(v *viper.Viper) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("reading configuration: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.WithFields(logrus.Fields{"command": commandName(os.Args)}).Debug(err)
		fmt.Fprintln(os.Stderr, "Error:", describeError(err))
		os.Exit(exitCode(err))
	}
}

func commandName(args []string) string {
	if len(args) < 2 {
		return rootCmd.Name()
	}
	return args[1]
}
