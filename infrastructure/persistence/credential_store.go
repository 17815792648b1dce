package persistence

import (
	"context"
	"fmt"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/configuration"
	"crosspost/infrastructure/logger"
)

// OpenCredentialStore connects to the configured vendor and returns the store plus a closer.
func OpenCredentialStore(cfg configuration.Database) (repository.ICredentialStore, func() error, error) {
	switch cfg.Vendor {
	case "mssql":
		db, err := NewMSSQLDB(cfg.Mssql)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mssql: %w", err)
		}
		return NewCredentialRepositoryMSSQL(db), db.Close, nil
	case "mysql":
		db, err := NewRepositories(cfg.MySql)
		if err != nil {
			return nil, nil, fmt.Errorf("connect mysql: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		return NewCredentialRepositoryMySQL(db), sqlDB.Close, nil
	case "postgres", "":
		db, err := NewPostgreSQLDB(cfg.Psql)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return NewCredentialRepository(db), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database vendor %q", cfg.Vendor)
	}
}

// MigrateCredentialStore ensures oauth_tokens exists for the configured vendor.
func MigrateCredentialStore(cfg configuration.Database) error {
	lg := logger.GetLogger().WithField("vendor", cfg.Vendor)
	switch cfg.Vendor {
	case "mssql":
		db, err := NewMSSQLDB(cfg.Mssql)
		if err != nil {
			return fmt.Errorf("connect mssql: %w", err)
		}
		defer db.Close()
		if err := EnsureCredentialSchemaMSSQL(db); err != nil {
			return err
		}
	case "mysql":
		db, err := NewRepositories(cfg.MySql)
		if err != nil {
			return fmt.Errorf("connect mysql: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		if err := EnsureCredentialSchemaMySQL(db); err != nil {
			return err
		}
	default:
		db, err := NewPostgreSQLDB(cfg.Psql)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer db.Close()
		if err := EnsureCredentialSchema(db); err != nil {
			return err
		}
	}
	lg.Info("credential schema ready")
	return nil
}

// FallbackCredentialStore turns a failed fetch into an empty set so every
// platform reports credential_not_found instead of the whole request failing.
type FallbackCredentialStore struct {
	repository.ICredentialStore
}

func NewFallbackCredentialStore(inner repository.ICredentialStore) *FallbackCredentialStore {
	return &FallbackCredentialStore{ICredentialStore: inner}
}

func (s *FallbackCredentialStore) FetchTokens(ctx context.Context, userID string) (model.CredentialSet, error) {
	set, err := s.ICredentialStore.FetchTokens(ctx, userID)
	if err != nil {
		logger.GetLogger().WithField("user_id", userID).WithField("error", err).Warn("credential fetch failed; continuing with no credentials")
		return model.CredentialSet{}, nil
	}
	return set, nil
}
