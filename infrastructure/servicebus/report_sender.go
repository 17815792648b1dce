package servicebus

import (
	"context"
	"encoding/json"
	"fmt"

	"crosspost/domain/model"
	"crosspost/infrastructure/logger"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
)

type messageSender interface {
	SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error
	Close(ctx context.Context) error
}

// ReportSender queues finished publish reports on a Service Bus queue.
type ReportSender struct {
	sender messageSender
}

func NewReportSender(client *azservicebus.Client, queue string) (*ReportSender, error) {
	sender, err := client.NewSender(queue, nil)
	if err != nil {
		logger.GetLogger().
			WithField("error", err).
			Error("Error while making new sender service bus.")
		return nil, err
	}
	return &ReportSender{sender: sender}, nil
}

func (s *ReportSender) Notify(ctx context.Context, report *model.PublishReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return err
	}
	contentType := "application/json"
	id := report.ID
	msg := &azservicebus.Message{
		Body:        body,
		ContentType: &contentType,
		MessageID:   &id,
		ApplicationProperties: map[string]any{
			"user_id":   report.UserID,
			"succeeded": report.Succeeded(),
		},
	}
	if err := s.sender.SendMessage(ctx, msg, nil); err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while sending message.")
		return fmt.Errorf("send report %s: %w", report.ID, err)
	}
	return nil
}

func (s *ReportSender) Close(ctx context.Context) error {
	if err := s.sender.Close(ctx); err != nil {
		logger.GetLogger().
			WithField("error", err).
			Error("Error while closing sender.")
		return err
	}
	return nil
}

// NewQueueNotifier connects to namespace and opens a sender on queue.
func NewQueueNotifier(ctx context.Context, namespace, queue string) (*ReportSender, error) {
	if queue == "" {
		return nil, fmt.Errorf("service bus queue not configured")
	}
	client, err := NewServiceBus(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("connect service bus %s: %w", namespace, err)
	}
	sender, err := NewReportSender(client, queue)
	if err != nil {
		return nil, fmt.Errorf("open service bus sender %s: %w", queue, err)
	}
	return sender, nil
}
