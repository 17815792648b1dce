package usecase_test

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"

	"crosspost/domain/model"
	"crosspost/domain/repository"

	"github.com/stretchr/testify/mock"
	"golang.org/x/oauth2"
)

type MockCredentialStore struct {
	mock.Mock
}

func (m *MockCredentialStore) FetchTokens(ctx context.Context, userID string) (model.CredentialSet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(model.CredentialSet), args.Error(1)
}

func (m *MockCredentialStore) SaveToken(ctx context.Context, cred model.Credential) error {
	args := m.Called(ctx, cred)
	return args.Error(0)
}

type MockAdapter struct {
	mock.Mock
	name string
}

func (m *MockAdapter) Platform() string { return m.name }

func (m *MockAdapter) Publish(ctx context.Context, cred model.Credential, post model.Post) model.PublishResult {
	args := m.Called(ctx, cred, post)
	if fn, ok := args.Get(0).(func(model.Credential, model.Post) model.PublishResult); ok {
		return fn(cred, post)
	}
	return args.Get(0).(model.PublishResult)
}

type MockRefresher struct {
	mock.Mock
}

func (m *MockRefresher) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oauth2.Token), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, report *model.PublishReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

// fakeRegistry is a static platform table.
type fakeRegistry struct {
	adapters   map[string]repository.IPublishAdapter
	refreshers map[string]repository.ITokenRefresher
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		adapters:   map[string]repository.IPublishAdapter{},
		refreshers: map[string]repository.ITokenRefresher{},
	}
}

func (r *fakeRegistry) withAdapter(a *MockAdapter) *fakeRegistry {
	r.adapters[a.name] = a
	return r
}

func (r *fakeRegistry) withRefresher(platform string, ref repository.ITokenRefresher) *fakeRegistry {
	r.refreshers[platform] = ref
	return r
}

func (r *fakeRegistry) Adapter(p string) (repository.IPublishAdapter, bool) {
	a, ok := r.adapters[p]
	return a, ok
}

func (r *fakeRegistry) Refresher(p string) (repository.ITokenRefresher, bool) {
	ref, ok := r.refreshers[p]
	return ref, ok
}

func (r *fakeRegistry) Platforms() []string {
	out := make([]string, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// countingMediaStore records releases per handle.
type countingMediaStore struct {
	mu       sync.Mutex
	content  []byte
	releases map[string]int
	openErr  error
	relErr   error
}

func newCountingMediaStore() *countingMediaStore {
	return &countingMediaStore{content: []byte("media-bytes"), releases: map[string]int{}}
}

func (s *countingMediaStore) Save(ctx context.Context, fileName, contentType string, r io.Reader) (*model.MediaResource, error) {
	return &model.MediaResource{Handle: "h-1", FileName: fileName, ContentType: contentType}, nil
}

func (s *countingMediaStore) Open(ctx context.Context, handle string) (io.ReadSeekCloser, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	return nopCloser{bytes.NewReader(s.content)}, nil
}

func (s *countingMediaStore) Release(ctx context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases[handle]++
	return s.relErr
}

func (s *countingMediaStore) released(handle string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releases[handle]
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
