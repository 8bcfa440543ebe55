package repository

import (
	"context"
	"time"

	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/shopspring/decimal"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type WalletRepository interface {
	SaveWallet(ctx context.Context, wallet *models.Wallet) error
	GetWalletByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Wallet, error)
	SetBalance(ctx context.Context, id primitive.ObjectID, balance decimal.Decimal) error
}

type MongoWalletRepository struct {
	collection *mongo.Collection
}

func NewWalletRepository(client *mongo.Client, dbName, collectionName string) WalletRepository {
	collection := client.Database(dbName).Collection(collectionName)
	return &MongoWalletRepository{collection: collection}
}

func (r *MongoWalletRepository) SaveWallet(ctx context.Context, wallet *models.Wallet) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	wallet.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	wallet.CreatedAt = now
	wallet.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, wallet)
	return mapError(err)
}

func (r *MongoWalletRepository) GetWalletByUserID(ctx context.Context, userID primitive.ObjectID) (*models.Wallet, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var wallet models.Wallet
	if err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&wallet); err != nil {
		return nil, mapError(err)
	}
	return &wallet, nil
}

func (r *MongoWalletRepository) SetBalance(ctx context.Context, id primitive.ObjectID, balance decimal.Decimal) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"balance": balance, "updated_at": time.Now().UTC()}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return mapError(err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
