package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"cloud.google.com/go/pubsub"
	"crosspost/domain/model"
	"crosspost/infrastructure/logger"
)

// ReportPublisher emits every finished publish report to a Pub/Sub topic.
type ReportPublisher struct {
	pub messagePublisher
}

func NewReportPublisher(topic *pubsub.Topic) *ReportPublisher {
	return &ReportPublisher{pub: &topicPublisher{topic: topic}}
}

func (p *ReportPublisher) Notify(ctx context.Context, report *model.PublishReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	attrs := map[string]string{
		"report_id": report.ID,
		"user_id":   report.UserID,
		"succeeded": strconv.Itoa(report.Succeeded()),
		"total":     strconv.Itoa(len(report.Results)),
	}
	serverID, err := p.pub.Publish(ctx, payload, attrs)
	if err != nil {
		return fmt.Errorf("publish report %s: %w", report.ID, err)
	}
	logger.GetLogger().WithField("server ID", serverID).WithField("report_id", report.ID).Info("Report published")
	return nil
}

// Close flushes pending messages.
func (p *ReportPublisher) Close() { p.pub.Stop() }
