package repository

import (
	"context"

	"crosspost/domain/model"
)

// IReportNotifier receives finished publish reports (audit log, queues, live stream).
type IReportNotifier interface {
	Notify(ctx context.Context, report *model.PublishReport) error
}

// IIdempotencyStore remembers reports by (user, idempotency key).
type IIdempotencyStore interface {
	Get(ctx context.Context, userID, key string) (*model.PublishReport, bool, error)
	Put(ctx context.Context, userID, key string, report *model.PublishReport) error
}

// IReportReader lists stored publish reports.
type IReportReader interface {
	ListByUser(ctx context.Context, userID string, limit int64) ([]*model.PublishReport, error)
}
