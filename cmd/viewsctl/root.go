package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	views "github.com/goliatone/go-views"
	"github.com/goliatone/go-views/internal/logging"
	"github.com/goliatone/go-views/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:           "viewsctl",
	Short:         "viewsctl renders go-views templates",
	Long:          `viewsctl renders templates incrementally to stdout, lists the available views and serves them over HTTP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the views.yaml config file")
	rootCmd.PersistentFlags().String("templates", "", "Template directory, overrides templates.dir")
}

// setup loads the configuration named by the persistent flags and builds the
// logger and engine from it.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, *views.Engine, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, nil, err
	}
	if dir, _ := cmd.Flags().GetString("templates"); dir != "" {
		cfg.Templates.Dir = dir
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, nil, err
	}
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), level, cfg.Log.Format)

	engine, err := views.FromConfig(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, engine, nil
}
