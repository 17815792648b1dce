package repository

import (
	"context"

	"crosspost/domain/model"

	"golang.org/x/oauth2"
)

// IPublishAdapter performs the platform-specific publish call.
// Publish must always return a result; failures come back as status=error.
type IPublishAdapter interface {
	Platform() string
	Publish(ctx context.Context, cred model.Credential, post model.Post) model.PublishResult
}

// ITokenRefresher exchanges a refresh token for a new access token and expiry.
// The returned token may carry a rotated refresh token; an empty one means reuse.
type ITokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// IPlatformRegistry dispatches platform ids to their capabilities.
type IPlatformRegistry interface {
	Adapter(platform string) (IPublishAdapter, bool)
	Refresher(platform string) (ITokenRefresher, bool)
	Platforms() []string
}
