package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection    = "users"
	paymentsCollection = "payment_history"
)

// EnsureIndexes creates the schema's indexes at startup. CreateMany is
// idempotent against existing identical indexes.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "subject_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(paymentsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			// Sparse keeps rows without a provider event id (none today,
			// but imports may lack them) out of the unique constraint.
			Keys:    bson.D{{Key: "provider", Value: 1}, {Key: "provider_event_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "reconcile", Value: 1}, {Key: "created_at", Value: 1}},
		},
	})
	return err
}
