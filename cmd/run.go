package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/adaptest/internal/app"
	"github.com/abhisek/adaptest/internal/config"
	"github.com/abhisek/adaptest/internal/logging"
	"github.com/abhisek/adaptest/internal/store"
)

// loadConfig reads the config file and environment, then applies the
// global flags, which take precedence over both.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.Store.Path = p
	}
	if b, _ := cmd.Flags().GetString("backend"); b != "" {
		cfg.Store.Backend = store.Backend(b)
	}
	if m, _ := cmd.Flags().GetString("log"); m != "" {
		cfg.Log.Mode = m
	}
	return cfg, cfg.Validate()
}

// openApp opens the store and builds the engine.
func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	a, err := app.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open app: %w", err)
	}
	return a, nil
}

func wantJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
