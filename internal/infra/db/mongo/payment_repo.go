package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"saas-billing-backend/internal/domain"
	"saas-billing-backend/internal/domain/model"
	"saas-billing-backend/internal/domain/ports/repository"
)

// Ensure compile-time conformance
var _ repository.PaymentHistoryRepository = (*PaymentRepo)(nil)

type PaymentRepo struct {
	col *mongo.Collection
}

func NewPaymentRepo(db *mongo.Database) *PaymentRepo {
	return &PaymentRepo{col: db.Collection(paymentsCollection)}
}

// Insert relies on the unique (provider, provider_event_id) index for
// idempotency: a replayed event surfaces as domain.ErrAlreadyExists.
func (r *PaymentRepo) Insert(ctx context.Context, p *model.PaymentHistory) error {
	if p == nil || p.Provider == "" || p.ProviderEventID == "" {
		return domain.ErrInvalidArgument
	}
	_, err := r.col.InsertOne(ctx, p)
	return mapWriteError(err)
}

func (r *PaymentRepo) FindByProviderEvent(ctx context.Context, provider model.Provider, eventID string) (*model.PaymentHistory, error) {
	var p model.PaymentHistory
	err := r.col.FindOne(ctx, bson.M{"provider": provider, "provider_event_id": eventID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepo) UpdateStatus(ctx context.Context, id string, status model.PaymentStatus) error {
	res, err := r.col.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"status": status, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return mapWriteError(err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PaymentRepo) SetReconcile(ctx context.Context, id string, state model.ReconcileState) error {
	res, err := r.col.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"reconcile": state, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return mapWriteError(err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PaymentRepo) ListUnreconciled(ctx context.Context, cutoff time.Time, limit int64) ([]*model.PaymentHistory, error) {
	filter := bson.M{
		"reconcile":  model.ReconcilePending,
		"created_at": bson.M{"$lt": cutoff.UTC()},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(limit)
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*model.PaymentHistory
	for cur.Next(ctx) {
		var p model.PaymentHistory
		if err := cur.Decode(&p); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, cur.Err()
}
