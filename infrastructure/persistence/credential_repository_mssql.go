package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"crosspost/domain/model"
)

type CredentialRepositoryMSSQL struct{ db *sql.DB }

func NewCredentialRepositoryMSSQL(db *sql.DB) *CredentialRepositoryMSSQL {
	return &CredentialRepositoryMSSQL{db: db}
}

func (r *CredentialRepositoryMSSQL) FetchTokens(ctx context.Context, userID string) (model.CredentialSet, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+credentialColumns+` FROM dbo.[oauth_tokens] WHERE user_id=@p1`, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch credentials (mssql): %w", err)
	}
	defer rows.Close()
	return scanCredentialSet(rows)
}

func (r *CredentialRepositoryMSSQL) SaveToken(ctx context.Context, c model.Credential) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
	// MERGE upsert by (user_id, platform); account fields keep their value when not supplied
	q := `MERGE dbo.[oauth_tokens] AS target
USING (VALUES (@p1, @p2)) AS src(user_id, platform)
ON target.user_id = src.user_id AND target.platform = src.platform
WHEN MATCHED THEN UPDATE SET
    access_token=@p3,
    refresh_token=@p4,
    expires_at=@p5,
    scopes=@p6,
    account_id=COALESCE(@p7, target.account_id),
    account_name=COALESCE(@p8, target.account_name),
    updated_at=@p10
WHEN NOT MATCHED THEN
    INSERT (user_id, platform, access_token, refresh_token, expires_at, scopes, account_id, account_name, created_at, updated_at)
    VALUES (@p1,@p2,@p3,@p4,@p5,@p6,@p7,@p8,@p9,@p10);`
	_, err := r.db.ExecContext(ctx, q,
		c.UserID, c.Platform,
		c.AccessToken,
		c.RefreshToken,
		nullTime(c.ExpiresAt),
		c.Scopes,
		nullString(c.AccountID),
		nullString(c.AccountName),
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save credential (mssql) %s/%s: %w", c.UserID, c.Platform, err)
	}
	return nil
}
