package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"
	"crosspost/infrastructure/metrics"

	"golang.org/x/sync/singleflight"
)

// Resolution is a usable credential plus what it took to get it.
type Resolution struct {
	Credential model.Credential
	Refreshed  bool
	// Warning is set when a refreshed credential could not be persisted.
	Warning error
}

type ICredentialLifecycle interface {
	Resolve(ctx context.Context, platform string, set model.CredentialSet) (Resolution, error)
}

type LifecycleOption func(*credentialLifecycle)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) LifecycleOption {
	return func(l *credentialLifecycle) { l.now = now }
}

// WithSaveTimeout bounds the store write after a refresh.
func WithSaveTimeout(d time.Duration) LifecycleOption {
	return func(l *credentialLifecycle) { l.saveTimeout = d }
}

// WithRefreshTimeout bounds a shared refresh, which outlives any single caller's context.
func WithRefreshTimeout(d time.Duration) LifecycleOption {
	return func(l *credentialLifecycle) { l.refreshTimeout = d }
}

type credentialLifecycle struct {
	store          repository.ICredentialStore
	registry       repository.IPlatformRegistry
	now            func() time.Time
	saveTimeout    time.Duration
	refreshTimeout time.Duration
	// refreshes for the same (user, platform) share one refresher call
	flight singleflight.Group
}

func NewCredentialLifecycle(store repository.ICredentialStore, registry repository.IPlatformRegistry, opts ...LifecycleOption) ICredentialLifecycle {
	l := &credentialLifecycle{store: store, registry: registry, now: time.Now, saveTimeout: 5 * time.Second, refreshTimeout: 30 * time.Second}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *credentialLifecycle) Resolve(ctx context.Context, platform string, set model.CredentialSet) (Resolution, error) {
	cred, ok := set.Lookup(platform)
	if !ok {
		metrics.CredentialResolutionsTotal.WithLabelValues(platform, metrics.OutcomeMissing).Inc()
		return Resolution{}, platformError(platform, CodeCredentialNotFound, ErrCredentialMissing)
	}
	if !cred.IsExpired(l.now()) {
		metrics.CredentialResolutionsTotal.WithLabelValues(platform, metrics.OutcomeValid).Inc()
		return Resolution{Credential: cred}, nil
	}
	if !cred.HasRefreshToken() {
		metrics.CredentialResolutionsTotal.WithLabelValues(platform, metrics.OutcomeReconnect).Inc()
		return Resolution{}, platformError(platform, CodeReconnectRequired, ErrCredentialExpired)
	}

	key := cred.UserID + "|" + platform
	ch := l.flight.DoChan(key, func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.refreshTimeout)
		defer cancel()
		return l.refresh(rctx, platform, cred)
	})
	var out singleflight.Result
	select {
	case out = <-ch:
	case <-ctx.Done():
		metrics.CredentialResolutionsTotal.WithLabelValues(platform, metrics.OutcomeRefreshFailed).Inc()
		return Resolution{}, platformError(platform, CodeRefreshFailed, fmt.Errorf("%w: %v", ErrRefreshFailed, ctx.Err()))
	}
	v, err, shared := out.Val, out.Err, out.Shared
	if err != nil {
		metrics.CredentialResolutionsTotal.WithLabelValues(platform, metrics.OutcomeRefreshFailed).Inc()
		return Resolution{}, err
	}
	res := v.(Resolution)
	if shared {
		logger.GetLogger().WithField("platform", platform).WithField("user_id", cred.UserID).Debug("joined in-flight credential refresh")
	}
	return res, nil
}

func (l *credentialLifecycle) refresh(ctx context.Context, platform string, cred model.Credential) (Resolution, error) {
	lg := logger.GetLogger().WithField("platform", platform).WithField("user_id", cred.UserID)
	refresher, ok := l.registry.Refresher(platform)
	if !ok {
		return Resolution{}, platformError(platform, CodeRefreshFailed, fmt.Errorf("%w: no refresher registered", ErrRefreshFailed))
	}
	tok, err := refresher.Refresh(ctx, cred.RefreshToken)
	if err == nil && (tok == nil || tok.AccessToken == "") {
		err = errors.New("refresher returned no access token")
	}
	if err != nil {
		lg.WithField("error", err).Warn("credential refresh failed")
		return Resolution{}, platformError(platform, CodeRefreshFailed, fmt.Errorf("%w: %v", ErrRefreshFailed, err))
	}

	now := l.now().UTC()
	next := cred
	next.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		next.RefreshToken = tok.RefreshToken
	}
	next.ExpiresAt = nil
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.UTC()
		next.ExpiresAt = &exp
	}
	next.UpdatedAt = now
	metrics.CredentialResolutionsTotal.WithLabelValues(platform, metrics.OutcomeRefreshed).Inc()

	res := Resolution{Credential: next, Refreshed: true}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.saveTimeout)
	defer cancel()
	if err := l.store.SaveToken(saveCtx, next); err != nil {
		metrics.CredentialResolutionsTotal.WithLabelValues(platform, metrics.OutcomePersistFailed).Inc()
		lg.WithField("error", err).Warn("refreshed credential not persisted; using it for this request only")
		res.Warning = fmt.Errorf("%w: %s: %v", ErrPersistence, platform, err)
	}
	return res, nil
}
