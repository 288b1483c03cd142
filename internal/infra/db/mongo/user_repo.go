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
var _ repository.UserRepository = (*UserRepo)(nil)

type UserRepo struct {
	col *mongo.Collection
}

func NewUserRepo(db *mongo.Database) *UserRepo {
	return &UserRepo{col: db.Collection(usersCollection)}
}

func customerField(p model.Provider) string {
	switch p {
	case model.ProviderStripe:
		return "stripe_customer_id"
	case model.ProviderLemonSqueezy:
		return "lemonsqueezy_customer_id"
	case model.ProviderWebXPay:
		return "webxpay_customer_id"
	}
	return ""
}

func (r *UserRepo) FindBySubjectID(ctx context.Context, subjectID string) (*model.User, error) {
	var u model.User
	err := r.col.FindOne(ctx, bson.M{"subject_id": subjectID}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) FindByCustomerID(ctx context.Context, provider model.Provider, customerID string) (*model.User, error) {
	field := customerField(provider)
	if field == "" || customerID == "" {
		return nil, domain.ErrInvalidArgument
	}
	var u model.User
	err := r.col.FindOne(ctx, bson.M{field: customerID}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpsertBySubjectID is a single atomic upsert keyed on the unique
// subject_id index, so replaying the same identity event cannot produce a
// second user document.
func (r *UserRepo) UpsertBySubjectID(ctx context.Context, u *model.User) (*model.User, bool, error) {
	if u == nil || u.SubjectID == "" {
		return nil, false, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	set := bson.M{"updated_at": now}
	if u.Email != "" {
		set["email"] = u.Email
	}
	if u.Name != "" {
		set["name"] = u.Name
	}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"_id":        u.ID,
			"subject_id": u.SubjectID,
			"plan_tier":  u.PlanTier,
			"credits":    u.Credits,
			"created_at": now,
		},
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"subject_id": u.SubjectID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return nil, false, mapWriteError(err)
	}
	stored, err := r.FindBySubjectID(ctx, u.SubjectID)
	if err != nil {
		return nil, false, err
	}
	return stored, res.UpsertedCount > 0, nil
}

func (r *UserRepo) UpdatePlan(ctx context.Context, userID string, tier model.PlanTier, credits int64, renewalAt *time.Time) error {
	set := bson.M{
		"plan_tier":  tier,
		"credits":    credits,
		"updated_at": time.Now().UTC(),
	}
	update := bson.M{"$set": set}
	if renewalAt != nil {
		set["renewal_at"] = renewalAt.UTC()
	} else {
		update["$unset"] = bson.M{"renewal_at": ""}
	}
	res, err := r.col.UpdateByID(ctx, userID, update)
	if err != nil {
		return mapWriteError(err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepo) SetCustomerID(ctx context.Context, userID string, provider model.Provider, customerID string) error {
	field := customerField(provider)
	if field == "" {
		return domain.ErrInvalidArgument
	}
	res, err := r.col.UpdateByID(ctx, userID, bson.M{
		"$set": bson.M{field: customerID, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return mapWriteError(err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
