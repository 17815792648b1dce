package persistence

import (
	"context"
	"fmt"

	"crosspost/domain/model"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const publishAuditCollection = "publish_reports"

// PublishAuditRepository keeps one Mongo document per publish report.
// It doubles as a report notifier.
type PublishAuditRepository struct {
	coll *mongo.Collection
}

func NewPublishAuditRepository(client *mongo.Client, database string) *PublishAuditRepository {
	return &PublishAuditRepository{coll: client.Database(database).Collection(publishAuditCollection)}
}

// EnsureIndexes adds the (user_id, created_at) index used by ListByUser.
func (r *PublishAuditRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}

func (r *PublishAuditRepository) Notify(ctx context.Context, report *model.PublishReport) error {
	if _, err := r.coll.InsertOne(ctx, report); err != nil {
		return fmt.Errorf("insert publish report %s: %w", report.ID, err)
	}
	return nil
}

// ListByUser returns the newest reports first.
func (r *PublishAuditRepository) ListByUser(ctx context.Context, userID string, limit int64) ([]*model.PublishReport, error) {
	if limit <= 0 {
		limit = 20
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cursor, err := r.coll.Find(ctx, bson.D{{Key: "user_id", Value: userID}}, opts)
	if err != nil {
		return nil, fmt.Errorf("find publish reports: %w", err)
	}
	defer cursor.Close(ctx)
	var out []*model.PublishReport
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode publish reports: %w", err)
	}
	return out, nil
}
