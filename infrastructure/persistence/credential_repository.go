package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"crosspost/domain/model"
)

const credentialColumns = `id, user_id, platform, access_token, refresh_token, expires_at, scopes, account_id, account_name, created_at, updated_at`

// CredentialRepository is the Postgres credential store over oauth_tokens.
type CredentialRepository struct{ db *sql.DB }

func NewCredentialRepository(db *sql.DB) *CredentialRepository { return &CredentialRepository{db: db} }

func (r *CredentialRepository) FetchTokens(ctx context.Context, userID string) (model.CredentialSet, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+credentialColumns+` FROM oauth_tokens WHERE user_id=$1`, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch credentials: %w", err)
	}
	defer rows.Close()
	return scanCredentialSet(rows)
}

func (r *CredentialRepository) SaveToken(ctx context.Context, c model.Credential) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
	q := `INSERT INTO oauth_tokens (user_id, platform, access_token, refresh_token, expires_at, scopes, account_id, account_name, created_at, updated_at)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		  ON CONFLICT (user_id, platform) DO UPDATE SET
			access_token=EXCLUDED.access_token,
			refresh_token=EXCLUDED.refresh_token,
			expires_at=EXCLUDED.expires_at,
			scopes=EXCLUDED.scopes,
			account_id=COALESCE(EXCLUDED.account_id, oauth_tokens.account_id),
			account_name=COALESCE(EXCLUDED.account_name, oauth_tokens.account_name),
			updated_at=EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, q, c.UserID, c.Platform, c.AccessToken, c.RefreshToken,
		nullTime(c.ExpiresAt), c.Scopes, nullString(c.AccountID), nullString(c.AccountName), c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save credential %s/%s: %w", c.UserID, c.Platform, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCredential(row rowScanner) (model.Credential, error) {
	var c model.Credential
	var exp sql.NullTime
	var refresh, accountID, accountName sql.NullString
	if err := row.Scan(&c.ID, &c.UserID, &c.Platform, &c.AccessToken, &refresh, &exp, &c.Scopes, &accountID, &accountName, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return c, err
	}
	c.RefreshToken = refresh.String
	if exp.Valid {
		t := exp.Time.UTC()
		c.ExpiresAt = &t
	}
	if accountID.Valid {
		v := accountID.String
		c.AccountID = &v
	}
	if accountName.Valid {
		v := accountName.String
		c.AccountName = &v
	}
	return c, nil
}

func scanCredentialSet(rows *sql.Rows) (model.CredentialSet, error) {
	set := model.CredentialSet{}
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		set[c.Platform] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return set, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
