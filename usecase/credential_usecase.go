package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"
)

type ICredentialUsecase interface {
	// Connect stores a credential the user obtained from the platform,
	// replacing any previous one for the same platform.
	Connect(ctx context.Context, cred model.Credential) error
}

type credentialUsecase struct {
	store    repository.ICredentialStore
	registry repository.IPlatformRegistry
	timeout  time.Duration
	now      func() time.Time
}

func NewCredentialUsecase(store repository.ICredentialStore, registry repository.IPlatformRegistry, timeout time.Duration) ICredentialUsecase {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &credentialUsecase{store: store, registry: registry, timeout: timeout, now: time.Now}
}

func (u *credentialUsecase) Connect(ctx context.Context, cred model.Credential) error {
	cred.Platform = strings.ToLower(strings.TrimSpace(cred.Platform))
	fields := map[string]string{}
	if cred.UserID == "" {
		fields["user_id"] = "required"
	}
	if cred.AccessToken == "" {
		fields["access_token"] = "required"
	}
	if _, ok := u.registry.Adapter(cred.Platform); !ok {
		fields["platform"] = "oneof"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}

	now := u.now().UTC()
	cred.CreatedAt = now
	cred.UpdatedAt = now

	storeCtx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	if err := u.store.SaveToken(storeCtx, cred); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	logger.GetLogger().WithField("user_id", cred.UserID).WithField("platform", cred.Platform).Info("credential connected")
	return nil
}
