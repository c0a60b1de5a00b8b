package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/acqadvantage/assistant-api/internal/core/domain"
	"github.com/acqadvantage/assistant-api/internal/core/ports"
)

const collectionUsers = "users"

// UserRepository is the Mongo-backed adapter over the user store. It exposes
// only read-by-identity and partial write-by-identity, mirroring the store
// contract the rest of the system is designed against: no multi-field
// transactions, single-document last-write-wins.
type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(collectionUsers)}
}

// FindOrCreate returns the record for id, inserting a zero-valued free-tier
// record on first access. Creation is implicit: there is no signup endpoint.
func (r *UserRepository) FindOrCreate(ctx context.Context, id string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := time.Now().UTC()
	update := bson.M{
		"$setOnInsert": bson.M{
			"questions_asked_today": 0,
			"subscription_status":   domain.SubscriptionFree,
			"subscription_plan":     domain.PlanNone,
			"created_at":            now,
			"updated_at":            now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var user domain.User
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&user); err != nil {
		return nil, storeErr("find or create user", err)
	}
	return &user, nil
}

// Update applies the non-nil fields of upd as a single $set.
func (r *UserRepository) Update(ctx context.Context, id string, upd ports.UserUpdate) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.ThreadID != nil {
		set["thread_id"] = *upd.ThreadID
	}
	if upd.QuestionsAskedToday != nil {
		set["questions_asked_today"] = *upd.QuestionsAskedToday
	}
	if upd.LastResetDate != nil {
		set["last_reset_date"] = *upd.LastResetDate
	}
	if upd.SubscriptionStatus != nil {
		set["subscription_status"] = *upd.SubscriptionStatus
	}
	if upd.SubscriptionPlan != nil {
		set["subscription_plan"] = *upd.SubscriptionPlan
	}
	if upd.StripeCustomerID != nil {
		set["stripe_customer_id"] = *upd.StripeCustomerID
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return storeErr("update user", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// FindByStripeCustomer resolves the user owning a payment-provider customer
// id, the primary lookup path for subscription webhooks.
func (r *UserRepository) FindByStripeCustomer(ctx context.Context, customerID string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var user domain.User
	err := r.col.FindOne(ctx, bson.M{"stripe_customer_id": customerID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, storeErr("find user by customer", err)
	}
	return &user, nil
}

// EnsureIndexes creates the lookup index used by webhook resolution.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "stripe_customer_id", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

// storeErr wraps driver failures in the sentinel callers fail closed on.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
}
