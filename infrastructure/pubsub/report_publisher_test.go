package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"crosspost/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	args := m.Called(ctx, data, attrs)
	return args.String(0), args.Error(1)
}

func (m *mockPublisher) Stop() { m.Called() }

func TestReportPublisher_Notify(t *testing.T) {
	m := new(mockPublisher)
	p := &ReportPublisher{pub: m}
	report := &model.PublishReport{
		ID:     "r1",
		UserID: "u1",
		Results: []model.PublishResult{
			model.PublishSuccess("facebook", "https://facebook.com/1", "ok"),
			model.PublishFailure("x", "unauthorized", "reconnect"),
		},
	}

	m.On("Publish", mock.Anything, mock.MatchedBy(func(data []byte) bool {
		var got model.PublishReport
		return json.Unmarshal(data, &got) == nil && got.ID == "r1" && len(got.Results) == 2
	}), map[string]string{"report_id": "r1", "user_id": "u1", "succeeded": "1", "total": "2"}).
		Return("srv-1", nil).Once()

	require.NoError(t, p.Notify(context.Background(), report))
	m.AssertExpectations(t)
}

func TestReportPublisher_NotifyError(t *testing.T) {
	m := new(mockPublisher)
	m.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("unavailable"))

	err := (&ReportPublisher{pub: m}).Notify(context.Background(), &model.PublishReport{ID: "r2"})
	assert.ErrorContains(t, err, "publish report r2")
}

func TestNewPubSub_RequiresProject(t *testing.T) {
	_, err := NewPubSub(context.Background(), "")
	assert.Error(t, err)
}
