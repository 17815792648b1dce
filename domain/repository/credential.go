package repository

import (
	"context"

	"crosspost/domain/model"
)

// ICredentialStore is the durable home of platform credentials.
type ICredentialStore interface {
	// FetchTokens returns every credential the user has connected, keyed by platform.
	FetchTokens(ctx context.Context, userID string) (model.CredentialSet, error)
	// SaveToken inserts or replaces the credential for (UserID, Platform).
	SaveToken(ctx context.Context, cred model.Credential) error
}
