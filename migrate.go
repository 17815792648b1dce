package main

import (
	"context"
	"time"

	"crosspost/infrastructure/logger"
	"crosspost/infrastructure/persistence"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Ensure the credential schema and audit indexes exist",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := persistence.MigrateCredentialStore(cfg.Database); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	mongoClient, err := persistence.NewMongoDb(ctx, cfg.Database.Mongo)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("MongoDB not available - skipping audit indexes")
		return nil
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	if err := persistence.NewPublishAuditRepository(mongoClient, cfg.Database.Mongo.Name).EnsureIndexes(ctx); err != nil {
		return err
	}
	logger.GetLogger().Info("Migrations completed successfully")
	return nil
}
