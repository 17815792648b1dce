package pubsub

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"crosspost/infrastructure/logger"
)

// NewPubSub creates the Google Cloud Pub/Sub client for projectID.
func NewPubSub(ctx context.Context, projectID string) (*pubsub.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("pubsub project id not configured")
	}
	return pubsub.NewClient(ctx, projectID)
}

type messagePublisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
	Stop()
}

type topicPublisher struct {
	topic *pubsub.Topic
}

func (t *topicPublisher) Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	return t.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
}

func (t *topicPublisher) Stop() { t.topic.Stop() }

// EnsureTopic returns the topic, creating it if it does not exist.
func EnsureTopic(ctx context.Context, client *pubsub.Client, topicName string) (*pubsub.Topic, error) {
	topic := client.Topic(topicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		logger.GetLogger().WithField("topic", topicName).Info("Topic doesn't exist - creating it")
		if topic, err = client.CreateTopic(ctx, topicName); err != nil {
			return nil, err
		}
	}
	return topic, nil
}
