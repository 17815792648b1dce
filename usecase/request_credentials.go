package usecase

import (
	"context"
	"sync"

	"crosspost/domain/model"
)

// requestCredentials is the request-scoped credential view. A refreshed
// credential replaces the entry so a platform listed twice resolves against
// the new one instead of refreshing the old refresh token again.
type requestCredentials struct {
	mu    sync.Mutex
	set   model.CredentialSet
	locks map[string]*sync.Mutex
}

func newRequestCredentials(set model.CredentialSet) *requestCredentials {
	cp := make(model.CredentialSet, len(set))
	for p, c := range set {
		cp[p] = c
	}
	return &requestCredentials{set: cp, locks: map[string]*sync.Mutex{}}
}

func (r *requestCredentials) platformLock(platform string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[platform]
	if !ok {
		l = &sync.Mutex{}
		r.locks[platform] = l
	}
	return l
}

func (r *requestCredentials) snapshot(platform string) model.CredentialSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.set[platform]; ok {
		return model.CredentialSet{platform: c}
	}
	return model.CredentialSet{}
}

func (r *requestCredentials) replace(platform string, cred model.Credential) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.set[platform] = cred
}

// resolve runs the lifecycle for one platform; branches for the same platform take turns.
func (r *requestCredentials) resolve(ctx context.Context, lc ICredentialLifecycle, platform string) (Resolution, error) {
	l := r.platformLock(platform)
	l.Lock()
	defer l.Unlock()

	res, err := lc.Resolve(ctx, platform, r.snapshot(platform))
	if err == nil && res.Refreshed {
		r.replace(platform, res.Credential)
	}
	return res, err
}
