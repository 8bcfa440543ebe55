package repository

import (
	"context"
	"strings"
	"time"

	"github.com/mehrbod2002/roivault/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type UserRepository interface {
	SaveUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*models.User, error)
	GetUsersByReferrer(ctx context.Context, referrerID primitive.ObjectID) ([]*models.User, error)
	GetAllUsers(ctx context.Context) ([]*models.User, error)
	// UpdateBalance writes USDTBalance and TotalEarnings only if the stored
	// version still equals user.Version. On success user.Version is bumped.
	UpdateBalance(ctx context.Context, user *models.User) error
	// UpdateReferralStats writes TotalReferrals and CurrentLevel under the
	// same version check as UpdateBalance.
	UpdateReferralStats(ctx context.Context, user *models.User) error
}

type MongoUserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(client *mongo.Client, dbName, collectionName string) UserRepository {
	collection := client.Database(dbName).Collection(collectionName)
	return &MongoUserRepository{collection: collection}
}

func (r *MongoUserRepository) SaveUser(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) && strings.Contains(err.Error(), "referral_code") {
		return ErrDuplicateReferralCode
	}
	return mapError(err)
}

func (r *MongoUserRepository) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoUserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *MongoUserRepository) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"referral_code": code})
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var user models.User
	if err := r.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, mapError(err)
	}
	return &user, nil
}

func (r *MongoUserRepository) GetUsersByReferrer(ctx context.Context, referrerID primitive.ObjectID) ([]*models.User, error) {
	return r.find(ctx, bson.M{"referred_by": referrerID})
}

func (r *MongoUserRepository) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	return r.find(ctx, bson.M{})
}

func (r *MongoUserRepository) find(ctx context.Context, filter bson.M) ([]*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.M{"created_at": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var users []*models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *MongoUserRepository) UpdateBalance(ctx context.Context, user *models.User) error {
	return r.casUpdate(ctx, user, bson.M{
		"usdt_balance":   user.USDTBalance,
		"total_earnings": user.TotalEarnings,
	})
}

func (r *MongoUserRepository) UpdateReferralStats(ctx context.Context, user *models.User) error {
	return r.casUpdate(ctx, user, bson.M{
		"total_referrals": user.TotalReferrals,
		"current_level":   user.CurrentLevel,
	})
}

func (r *MongoUserRepository) casUpdate(ctx context.Context, user *models.User, set bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	now := time.Now().UTC()
	set["updated_at"] = now
	update := bson.M{"$set": set, "$inc": bson.M{"version": 1}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": user.ID, "version": user.Version}, update)
	if err != nil {
		return mapError(err)
	}
	if result.MatchedCount == 0 {
		return ErrConflict
	}
	user.Version++
	user.UpdatedAt = now
	return nil
}
