package main

import (
	"context"
	"os"

	"github.com/desertthunder/playlist-converter/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase creates a config file when none exists, then initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err := shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
			} else {
				r.config = config
				r.configPath = configPath
			}
		}
	}

	r.logger.Info("initializing database", "path", r.config.Database.Path)

	db, err := r.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	return nil
}
