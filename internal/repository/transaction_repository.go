package repository

import (
	"context"
	"time"

	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/shopspring/decimal"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TransactionRepository is the ledger log. Rows are never updated.
type TransactionRepository interface {
	SaveTransaction(ctx context.Context, tx *models.Transaction) error
	GetTransactionByID(ctx context.Context, id primitive.ObjectID) (*models.Transaction, error)
	GetTransactionsByUserID(ctx context.Context, userID primitive.ObjectID, page, limit int) ([]*models.Transaction, error)
	// SumSuccessful returns the signed sum of the user's SUCCESS rows.
	SumSuccessful(ctx context.Context, userID primitive.ObjectID) (decimal.Decimal, error)
}

type MongoTransactionRepository struct {
	collection *mongo.Collection
}

func NewTransactionRepository(client *mongo.Client, dbName, collectionName string) TransactionRepository {
	collection := client.Database(dbName).Collection(collectionName)
	return &MongoTransactionRepository{collection: collection}
}

func (r *MongoTransactionRepository) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx.ID = primitive.NewObjectID()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	_, err := r.collection.InsertOne(ctx, tx)
	return mapError(err)
}

func (r *MongoTransactionRepository) GetTransactionByID(ctx context.Context, id primitive.ObjectID) (*models.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var tx models.Transaction
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&tx); err != nil {
		return nil, mapError(err)
	}
	return &tx, nil
}

func (r *MongoTransactionRepository) GetTransactionsByUserID(ctx context.Context, userID primitive.ObjectID, page, limit int) ([]*models.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	skip, size := pageOf(page, limit)
	findOptions := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(skip).
		SetLimit(size)
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var transactions []*models.Transaction
	if err := cursor.All(ctx, &transactions); err != nil {
		return nil, err
	}
	return transactions, nil
}

func (r *MongoTransactionRepository) SumSuccessful(ctx context.Context, userID primitive.ObjectID) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID, "status": models.TransactionStatusSuccess}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$amount"}}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return decimal.Zero, err
	}
	defer cursor.Close(ctx)

	var result struct {
		Total decimal.Decimal `bson:"total"`
	}
	if cursor.Next(ctx) {
		if err := cursor.Decode(&result); err != nil {
			return decimal.Zero, err
		}
	}
	return result.Total, cursor.Err()
}
