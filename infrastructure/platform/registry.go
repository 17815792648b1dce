package platform

import (
	"net/http"
	"sort"
	"strings"

	"crosspost/domain/repository"
	"crosspost/infrastructure/configuration"
	"crosspost/infrastructure/logger"
)

// Registry maps platform ids to their adapter and optional refresher.
// It is built once at startup and read-only afterwards.
type Registry struct {
	order      []string
	adapters   map[string]repository.IPublishAdapter
	refreshers map[string]repository.ITokenRefresher
}

func NewRegistry() *Registry {
	return &Registry{
		adapters:   map[string]repository.IPublishAdapter{},
		refreshers: map[string]repository.ITokenRefresher{},
	}
}

// Register adds an adapter under its Platform() id. refresher may be nil.
func (r *Registry) Register(adapter repository.IPublishAdapter, refresher repository.ITokenRefresher) *Registry {
	id := strings.ToLower(adapter.Platform())
	if _, exists := r.adapters[id]; !exists {
		r.order = append(r.order, id)
	}
	r.adapters[id] = adapter
	if refresher != nil {
		r.refreshers[id] = refresher
	} else {
		delete(r.refreshers, id)
	}
	return r
}

func (r *Registry) Adapter(platform string) (repository.IPublishAdapter, bool) {
	a, ok := r.adapters[platform]
	return a, ok
}

func (r *Registry) Refresher(platform string) (repository.ITokenRefresher, bool) {
	ref, ok := r.refreshers[platform]
	return ref, ok
}

// Platforms lists ids in registration order.
func (r *Registry) Platforms() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// NewRegistryFromConfig registers the enabled built-in platforms followed by every configured webhook.
func NewRegistryFromConfig(cfg *configuration.Config, hc *http.Client) *Registry {
	lg := logger.GetLogger()
	if hc == nil {
		hc = DefaultHTTPClient()
	}
	reg := NewRegistry()
	o := cfg.OAuth
	for _, p := range cfg.Publish.Platforms {
		switch p {
		case Facebook:
			reg.Register(NewFacebookAdapter(o.Facebook.BaseURL, hc),
				NewGraphRefresher(Facebook, o.Facebook.ClientID, o.Facebook.ClientSecret, o.Facebook.BaseURL, hc))
		case Instagram:
			reg.Register(NewInstagramAdapter(o.Instagram.BaseURL, hc),
				NewGraphRefresher(Instagram, o.Instagram.ClientID, o.Instagram.ClientSecret, o.Instagram.BaseURL, hc))
		case YouTube:
			reg.Register(NewYouTubeAdapter(o.YouTube.BaseURL, hc),
				NewYouTubeRefresher(o.YouTube.ClientID, o.YouTube.ClientSecret, hc))
		case X:
			tokenURL := ""
			if o.X.BaseURL != "" {
				tokenURL = strings.TrimRight(o.X.BaseURL, "/") + "/2/oauth2/token"
			}
			reg.Register(NewXAdapter(o.X.BaseURL, hc), NewXRefresher(o.X.ClientID, o.X.ClientSecret, tokenURL, hc))
		case Bluesky:
			reg.Register(NewBlueskyAdapter(o.Bluesky.BaseURL, hc), NewBlueskyRefresher(o.Bluesky.BaseURL, hc))
		default:
			if _, ok := cfg.Webhooks[p]; !ok {
				lg.WithField("platform", p).Warn("platform enabled but no adapter or webhook configured; requests for it will be rejected per platform")
			}
		}
	}

	names := make([]string, 0, len(cfg.Webhooks))
	for name := range cfg.Webhooks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, builtin := reg.adapters[name]; builtin {
			lg.WithField("platform", name).Warn("webhook shadows a built-in adapter; keeping the built-in")
			continue
		}
		reg.Register(NewWebhookAdapter(name, cfg.Webhooks[name], hc), nil)
	}
	lg.WithField("platforms", reg.Platforms()).Info("platform registry ready")
	return reg
}
