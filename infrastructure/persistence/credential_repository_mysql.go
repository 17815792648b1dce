package persistence

import (
	"context"
	"fmt"
	"time"

	"crosspost/domain/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// credentialRow is the gorm mapping of oauth_tokens.
type credentialRow struct {
	ID           int64      `gorm:"primaryKey;autoIncrement"`
	UserID       string     `gorm:"size:128;not null;uniqueIndex:ux_oauth_tokens_user_platform"`
	Platform     string     `gorm:"size:64;not null;uniqueIndex:ux_oauth_tokens_user_platform"`
	AccessToken  string     `gorm:"type:text;not null"`
	RefreshToken string     `gorm:"type:text"`
	ExpiresAt    *time.Time `gorm:"index"`
	Scopes       string     `gorm:"type:text"`
	AccountID    *string    `gorm:"size:255"`
	AccountName  *string    `gorm:"size:255"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (credentialRow) TableName() string { return "oauth_tokens" }

func (r credentialRow) toModel() model.Credential {
	return model.Credential{
		ID:           r.ID,
		UserID:       r.UserID,
		Platform:     r.Platform,
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresAt:    r.ExpiresAt,
		Scopes:       r.Scopes,
		AccountID:    r.AccountID,
		AccountName:  r.AccountName,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// CredentialRepositoryMySQL is the gorm-backed credential store.
type CredentialRepositoryMySQL struct{ db *gorm.DB }

func NewCredentialRepositoryMySQL(db *gorm.DB) *CredentialRepositoryMySQL {
	return &CredentialRepositoryMySQL{db: db}
}

// EnsureCredentialSchemaMySQL creates or updates oauth_tokens via AutoMigrate.
func EnsureCredentialSchemaMySQL(db *gorm.DB) error {
	if err := db.AutoMigrate(&credentialRow{}); err != nil {
		return fmt.Errorf("migrate oauth_tokens (mysql): %w", err)
	}
	return nil
}

func (r *CredentialRepositoryMySQL) FetchTokens(ctx context.Context, userID string) (model.CredentialSet, error) {
	var rows []credentialRow
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("fetch credentials (mysql): %w", err)
	}
	set := make(model.CredentialSet, len(rows))
	for _, row := range rows {
		set[row.Platform] = row.toModel()
	}
	return set, nil
}

func (r *CredentialRepositoryMySQL) SaveToken(ctx context.Context, c model.Credential) error {
	now := time.Now().UTC()
	row := credentialRow{
		UserID:       c.UserID,
		Platform:     c.Platform,
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		ExpiresAt:    c.ExpiresAt,
		Scopes:       c.Scopes,
		AccountID:    c.AccountID,
		AccountName:  c.AccountName,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = now
	}
	if row.UpdatedAt.IsZero() {
		row.UpdatedAt = now
	}
	updates := []string{"access_token", "refresh_token", "expires_at", "scopes", "updated_at"}
	if c.AccountID != nil {
		updates = append(updates, "account_id")
	}
	if c.AccountName != nil {
		updates = append(updates, "account_name")
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "platform"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save credential (mysql) %s/%s: %w", c.UserID, c.Platform, err)
	}
	return nil
}
