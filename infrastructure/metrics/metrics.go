package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelPlatform = "platform"
	LabelStatus   = "status"
	LabelOutcome  = "outcome"
	LabelCode     = "code"
	LabelMethod   = "method"
	LabelPath     = "path"

	OutcomeRefreshed     = "refreshed"
	OutcomeRefreshFailed = "refresh_failed"
	OutcomePersistFailed = "persist_failed"
	OutcomeReconnect     = "reconnect_required"
	OutcomeMissing       = "missing"
	OutcomeValid         = "valid"
)

// Publish metrics
var (
	PublishResultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosspost_publish_results_total",
			Help: "Per-platform publish results by status and error code",
		},
		[]string{LabelPlatform, LabelStatus, LabelCode},
	)

	PublishRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosspost_publish_requests_total",
			Help: "Publish requests by terminal status (success, invalid, fatal)",
		},
		[]string{LabelStatus},
	)

	PlatformPublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crosspost_platform_publish_duration_seconds",
			Help:    "Time spent resolving credentials and publishing per platform",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{LabelPlatform},
	)
)

// Credential metrics
var (
	CredentialResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosspost_credential_resolutions_total",
			Help: "Credential lifecycle outcomes per platform",
		},
		[]string{LabelPlatform, LabelOutcome},
	)

	MediaReleasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosspost_media_releases_total",
			Help: "Media release attempts by status",
		},
		[]string{LabelStatus},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crosspost_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)
)
