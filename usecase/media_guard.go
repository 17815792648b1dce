package usecase

import (
	"context"
	"io"
	"sync"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"
	"crosspost/infrastructure/metrics"
)

// MediaGuard owns a request's media resource and releases it exactly once.
type MediaGuard struct {
	store repository.IMediaStore
	media model.MediaResource

	mu       sync.Mutex
	released bool
	err      error
}

func NewMediaGuard(store repository.IMediaStore, media model.MediaResource) *MediaGuard {
	return &MediaGuard{store: store, media: media}
}

// Open returns a fresh reader over the media; it fails once the guard has released.
func (g *MediaGuard) Open(ctx context.Context) (io.ReadSeekCloser, error) {
	g.mu.Lock()
	released := g.released
	g.mu.Unlock()
	if released {
		return nil, ErrMediaReleased
	}
	return g.store.Open(ctx, g.media.Handle)
}

// Release deletes the media. Later calls are no-ops returning the first outcome.
// It runs detached from ctx cancellation so aborted requests still clean up.
func (g *MediaGuard) Release(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released {
		return g.err
	}
	g.released = true
	if g.media.Handle == "" || g.store == nil {
		return nil
	}
	g.err = g.store.Release(context.WithoutCancel(ctx), g.media.Handle)
	if g.err != nil {
		metrics.MediaReleasesTotal.WithLabelValues("error").Inc()
		logger.GetLogger().WithField("handle", g.media.Handle).WithField("error", g.err).Error("media release failed")
		return g.err
	}
	metrics.MediaReleasesTotal.WithLabelValues("released").Inc()
	return nil
}

// Released reports whether Release has run.
func (g *MediaGuard) Released() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.released
}
