package usecase

import (
	"context"

	"crosspost/domain/model"
	"crosspost/domain/repository"
)

const maxReportPage = 100

type IReportUsecase interface {
	Recent(ctx context.Context, userID string, limit int) ([]*model.PublishReport, error)
}

type reportUsecase struct {
	reader repository.IReportReader
}

func NewReportUsecase(reader repository.IReportReader) IReportUsecase {
	return &reportUsecase{reader: reader}
}

// Recent returns the user's newest reports; limit is clamped to 1..100.
func (u *reportUsecase) Recent(ctx context.Context, userID string, limit int) ([]*model.PublishReport, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > maxReportPage {
		limit = maxReportPage
	}
	reports, err := u.reader.ListByUser(ctx, userID, int64(limit))
	if err != nil {
		return nil, err
	}
	if reports == nil {
		reports = []*model.PublishReport{}
	}
	return reports, nil
}
