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

type WithdrawalRepository interface {
	SaveWithdrawal(ctx context.Context, w *models.Withdrawal) error
	GetWithdrawalByID(ctx context.Context, id primitive.ObjectID) (*models.Withdrawal, error)
	GetWithdrawalsByUserID(ctx context.Context, userID primitive.ObjectID) ([]*models.Withdrawal, error)
	GetWithdrawalsByStatus(ctx context.Context, status models.WithdrawalStatus) ([]*models.Withdrawal, error)
	// Transition moves w from the given status to w.Status, writing Reason
	// and ProcessedAt. ErrConflict means the stored status was not from.
	Transition(ctx context.Context, w *models.Withdrawal, from models.WithdrawalStatus) error
}

type MongoWithdrawalRepository struct {
	collection *mongo.Collection
}

func NewWithdrawalRepository(client *mongo.Client, dbName, collectionName string) WithdrawalRepository {
	collection := client.Database(dbName).Collection(collectionName)
	return &MongoWithdrawalRepository{collection: collection}
}

func (r *MongoWithdrawalRepository) SaveWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	w.ID = primitive.NewObjectID()
	w.CreatedAt = time.Now().UTC()
	_, err := r.collection.InsertOne(ctx, w)
	return mapError(err)
}

func (r *MongoWithdrawalRepository) GetWithdrawalByID(ctx context.Context, id primitive.ObjectID) (*models.Withdrawal, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var w models.Withdrawal
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&w); err != nil {
		return nil, mapError(err)
	}
	return &w, nil
}

func (r *MongoWithdrawalRepository) GetWithdrawalsByUserID(ctx context.Context, userID primitive.ObjectID) ([]*models.Withdrawal, error) {
	return r.find(ctx, bson.M{"user_id": userID})
}

func (r *MongoWithdrawalRepository) GetWithdrawalsByStatus(ctx context.Context, status models.WithdrawalStatus) ([]*models.Withdrawal, error) {
	return r.find(ctx, bson.M{"status": status})
}

func (r *MongoWithdrawalRepository) find(ctx context.Context, filter bson.M) ([]*models.Withdrawal, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var withdrawals []*models.Withdrawal
	if err := cursor.All(ctx, &withdrawals); err != nil {
		return nil, err
	}
	return withdrawals, nil
}

func (r *MongoWithdrawalRepository) Transition(ctx context.Context, w *models.Withdrawal, from models.WithdrawalStatus) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"status":       w.Status,
		"reason":       w.Reason,
		"processed_at": w.ProcessedAt,
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": w.ID, "status": from}, update)
	if err != nil {
		return mapError(err)
	}
	if result.MatchedCount == 0 {
		return ErrConflict
	}
	return nil
}
