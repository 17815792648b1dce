package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"
	"crosspost/infrastructure/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type IPublishUsecase interface {
	// Publish fans one post out to every requested platform. The media is released
	// on every return path. Only validation and store failures return an error.
	Publish(ctx context.Context, req *model.PublishRequest) (*model.PublishReport, error)
	Platforms() []string
	Connections(ctx context.Context, userID string) ([]model.CredentialStatus, error)
}

type PublishOptions struct {
	PlatformTimeout time.Duration
	StoreTimeout    time.Duration
	NotifyTimeout   time.Duration
	// MaxParallel > 1 publishes platforms concurrently; report order is unchanged.
	MaxParallel int
	// MediaBaseURL is where the media route is reachable from the internet, if at all.
	MediaBaseURL string
}

type publishUsecase struct {
	store     repository.ICredentialStore
	registry  repository.IPlatformRegistry
	lifecycle ICredentialLifecycle
	media     repository.IMediaStore
	notifiers []repository.IReportNotifier
	validate  *validator.Validate
	opts      PublishOptions
	now       func() time.Time
}

func NewPublishUsecase(
	store repository.ICredentialStore,
	registry repository.IPlatformRegistry,
	lifecycle ICredentialLifecycle,
	media repository.IMediaStore,
	opts PublishOptions,
	notifiers ...repository.IReportNotifier,
) IPublishUsecase {
	if opts.PlatformTimeout <= 0 {
		opts.PlatformTimeout = 2 * time.Minute
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 5 * time.Second
	}
	if opts.MaxParallel < 1 {
		opts.MaxParallel = 1
	}
	opts.MediaBaseURL = strings.TrimRight(opts.MediaBaseURL, "/")
	return &publishUsecase{
		store:     store,
		registry:  registry,
		lifecycle: lifecycle,
		media:     media,
		notifiers: notifiers,
		validate:  validator.New(),
		opts:      opts,
		now:       time.Now,
	}
}

func (u *publishUsecase) Publish(ctx context.Context, req *model.PublishRequest) (*model.PublishReport, error) {
	if req == nil {
		return nil, &ValidationError{Fields: map[string]string{"request": "required"}}
	}
	guard := NewMediaGuard(u.media, req.Media)
	defer func() { _ = guard.Release(ctx) }()

	lg := logger.GetLogger().WithField("user_id", req.UserID)
	if err := u.validateRequest(req); err != nil {
		metrics.PublishRequestsTotal.WithLabelValues("invalid").Inc()
		lg.WithField("error", err).Info("publish request rejected")
		return nil, err
	}
	platforms := normalizePlatforms(req.Platforms)

	storeCtx, cancel := context.WithTimeout(ctx, u.opts.StoreTimeout)
	set, err := u.store.FetchTokens(storeCtx, req.UserID)
	cancel()
	if err != nil {
		metrics.PublishRequestsTotal.WithLabelValues("fatal").Inc()
		lg.WithField("error", err).Error("credential fetch failed; aborting publish")
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	creds := newRequestCredentials(set)

	post := model.Post{
		Caption:  req.Caption,
		Media:    req.Media,
		MediaURL: u.mediaURL(req.Media),
		Open:     guard.Open,
	}
	report := &model.PublishReport{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Results:   make([]model.PublishResult, len(platforms)),
		CreatedAt: u.now().UTC(),
	}
	// one slot per platform so parallel branches never share a write target
	warnings := make([]string, len(platforms))

	if u.opts.MaxParallel == 1 {
		for i, p := range platforms {
			report.Results[i], warnings[i] = u.publishOne(ctx, p, creds, post)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(u.opts.MaxParallel)
		for i, p := range platforms {
			g.Go(func() error {
				report.Results[i], warnings[i] = u.publishOne(ctx, p, creds, post)
				return nil
			})
		}
		_ = g.Wait()
	}
	for _, w := range warnings {
		if w != "" {
			report.Warnings = append(report.Warnings, w)
		}
	}

	if err := guard.Release(ctx); err != nil {
		report.Warnings = append(report.Warnings, fmt.Sprintf("media release: %v", err))
	}
	metrics.PublishRequestsTotal.WithLabelValues("success").Inc()
	lg.WithFields(map[string]interface{}{
		"report_id": report.ID,
		"platforms": len(platforms),
		"succeeded": report.Succeeded(),
	}).Info("publish finished")

	u.notify(ctx, report)
	return report, nil
}

// publishOne never lets a platform failure escape: errors and panics become error results.
func (u *publishUsecase) publishOne(ctx context.Context, platform string, creds *requestCredentials, post model.Post) (result model.PublishResult, warning string) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.GetLogger().WithField("platform", platform).WithField("panic", r).Error("platform publish panicked")
			result = model.PublishFailure(platform, CodeInternal, fmt.Sprintf("internal error: %v", r))
		}
		code := ""
		if result.ErrorCode != nil {
			code = *result.ErrorCode
		}
		metrics.PublishResultsTotal.WithLabelValues(platform, string(result.Status), code).Inc()
		metrics.PlatformPublishDuration.WithLabelValues(platform).Observe(time.Since(start).Seconds())
	}()

	adapter, ok := u.registry.Adapter(platform)
	if !ok {
		return model.PublishFailure(platform, CodeUnsupportedPlatform, ErrUnsupportedPlatform.Error()+": "+platform), ""
	}

	ctx, cancel := context.WithTimeout(ctx, u.opts.PlatformTimeout)
	defer cancel()

	res, err := creds.resolve(ctx, u.lifecycle, platform)
	if err != nil {
		return failureFromError(platform, err), ""
	}
	if res.Warning != nil {
		warning = res.Warning.Error()
	}

	result = adapter.Publish(ctx, res.Credential, post)
	if result.Status != model.PublishStatusSuccess && errors.Is(ctx.Err(), context.DeadlineExceeded) && result.ErrorCode == nil {
		result = model.PublishFailure(platform, CodeTimeout, "platform publish timed out")
	}
	return normalizeResult(platform, result), warning
}

func (u *publishUsecase) notify(ctx context.Context, report *model.PublishReport) {
	if len(u.notifiers) == 0 {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.opts.NotifyTimeout)
	defer cancel()
	for _, n := range u.notifiers {
		if err := n.Notify(nctx, report); err != nil {
			logger.GetLogger().WithField("report_id", report.ID).WithField("error", err).Warn("report notifier failed")
		}
	}
}

func (u *publishUsecase) validateRequest(req *model.PublishRequest) error {
	err := u.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Fields: map[string]string{"request": err.Error()}}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[strings.ToLower(fe.Namespace())] = fe.Tag()
	}
	return &ValidationError{Fields: fields}
}

func (u *publishUsecase) mediaURL(m model.MediaResource) string {
	if u.opts.MediaBaseURL == "" || m.Handle == "" {
		return ""
	}
	return u.opts.MediaBaseURL + "/media/" + m.Handle
}

func (u *publishUsecase) Platforms() []string {
	return u.registry.Platforms()
}

func (u *publishUsecase) Connections(ctx context.Context, userID string) ([]model.CredentialStatus, error) {
	storeCtx, cancel := context.WithTimeout(ctx, u.opts.StoreTimeout)
	defer cancel()
	set, err := u.store.FetchTokens(storeCtx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	now := u.now()
	out := make([]model.CredentialStatus, 0, len(u.registry.Platforms()))
	for _, p := range u.registry.Platforms() {
		st := model.CredentialStatus{Platform: p}
		if cred, ok := set.Lookup(p); ok {
			st.Connected = true
			st.Expired = cred.IsExpired(now)
			st.Refreshable = cred.HasRefreshToken()
			st.ExpiresAt = cred.ExpiresAt
			st.AccountName = cred.AccountName
		}
		out = append(out, st)
	}
	return out, nil
}

func normalizePlatforms(in []string) []string {
	out := make([]string, len(in))
	for i, p := range in {
		out[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return out
}

func failureFromError(platform string, err error) model.PublishResult {
	var pe *PlatformError
	if errors.As(err, &pe) {
		return model.PublishFailure(platform, pe.Code, pe.Err.Error())
	}
	return model.PublishFailure(platform, CodeInternal, err.Error())
}

// normalizeResult enforces platform_url iff success and error_code iff error.
func normalizeResult(platform string, r model.PublishResult) model.PublishResult {
	r.Platform = platform
	switch r.Status {
	case model.PublishStatusSuccess:
		r.ErrorCode = nil
		if r.PlatformURL == nil {
			empty := ""
			r.PlatformURL = &empty
		}
	default:
		r.Status = model.PublishStatusError
		r.PlatformURL = nil
		if r.ErrorCode == nil {
			code := CodeInternal
			r.ErrorCode = &code
		}
	}
	return r
}
