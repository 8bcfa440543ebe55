package repository

import (
	"context"
	"time"

	"github.com/mehrbod2002/roivault/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ReferralRepository interface {
	SaveReferral(ctx context.Context, ref *models.Referral) error
	// GetReferralsByReferredUser returns every edge that pays out on the
	// given user's earnings, across all levels.
	GetReferralsByReferredUser(ctx context.Context, referredUserID primitive.ObjectID) ([]*models.Referral, error)
	GetReferralsByReferrer(ctx context.Context, referrerID primitive.ObjectID) ([]*models.Referral, error)
	// ExpireBefore flips every ACTIVE edge whose window closed before asOf
	// and returns the number of edges changed.
	ExpireBefore(ctx context.Context, asOf time.Time) (int64, error)
}

type MongoReferralRepository struct {
	collection *mongo.Collection
}

func NewReferralRepository(client *mongo.Client, dbName, collectionName string) ReferralRepository {
	collection := client.Database(dbName).Collection(collectionName)
	return &MongoReferralRepository{collection: collection}
}

func (r *MongoReferralRepository) SaveReferral(ctx context.Context, ref *models.Referral) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ref.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	ref.CreatedAt = now
	ref.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, ref)
	return mapError(err)
}

func (r *MongoReferralRepository) GetReferralsByReferredUser(ctx context.Context, referredUserID primitive.ObjectID) ([]*models.Referral, error) {
	return r.find(ctx, bson.M{"referred_user_id": referredUserID})
}

func (r *MongoReferralRepository) GetReferralsByReferrer(ctx context.Context, referrerID primitive.ObjectID) ([]*models.Referral, error) {
	return r.find(ctx, bson.M{"referrer_id": referrerID})
}

func (r *MongoReferralRepository) find(ctx context.Context, filter bson.M) ([]*models.Referral, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "level", Value: 1}, {Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var refs []*models.Referral
	if err := cursor.All(ctx, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

func (r *MongoReferralRepository) ExpireBefore(ctx context.Context, asOf time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{
		"status":         models.ReferralStatusActive,
		"bonus_end_date": bson.M{"$lt": asOf},
	}
	update := bson.M{"$set": bson.M{"status": models.ReferralStatusExpired, "updated_at": time.Now().UTC()}}
	result, err := r.collection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}
