package main

import (
	"os"

	"crosspost/infrastructure/configuration"
	"crosspost/infrastructure/logger"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "crosspost",
	Short: "Publish one post to many social platforms",
	Long: `crosspost accepts a caption and a media file and publishes it to every
platform the user has connected, refreshing expired OAuth credentials on the way.`,
	SilenceUsage: true,
}

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
		os.Exit(2)
	}
}

// loadConfig reads configuration and applies the logger section.
func loadConfig() (*configuration.Config, error) {
	cfg, err := configuration.Load()
	if err != nil {
		return nil, err
	}
	if cfg.Logger.Level != "" {
		logger.SetLevel(cfg.Logger.Level)
	}
	logger.SetFormat(cfg.Logger.Format)
	return cfg, nil
}

func main() {
	defer recoverPanic()
	if err := rootCmd.Execute(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Command failed")
		os.Exit(1)
	}
}
