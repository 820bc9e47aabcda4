package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lazypower/claimgate/internal/config"
)

var (
	cfgFile string
	verbose bool

	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "claimgate",
	Short: "Access-controlled retrieval and ranking of user claims",
	Long: `Claimgate decides which claims about a user a viewer may see, scores them
by provenance and age, and ranks them for a generation stage.

Relationships come from the social graph (SQLite or Neo4j). Attested claims
from trusted organizations outrank self-declared ones.`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.claimgate/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(retrieveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig reads the config file, CLAIMGATE_* env vars and defaults, in
// that order of precedence after env.
func loadConfig(cmd *cobra.Command, args []string) error {
	v := config.NewViper()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if path, err := config.DefaultConfigPath(); err == nil {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		if cfgFile != "" {
			return fmt.Errorf("read config: %w", err)
		}
	} else if verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", v.ConfigFileUsed())
	}

	loaded, err := config.Load(v)
	if err != nil {
		return err
	}
	cfg = loaded
	if verbose {
		cfg.Log.Level = "debug"
	}

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	var cleanup func() error
	logger, cleanup = config.SetupLogger(cfg.Log.File, level)
	cobra.OnFinalize(func() { cleanup() })
	slog.SetDefault(logger)
	return nil
}
