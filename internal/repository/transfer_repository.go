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

type TransferRepository interface {
	SaveTransfer(ctx context.Context, t *models.Transfer) error
	GetTransferByID(ctx context.Context, id primitive.ObjectID) (*models.Transfer, error)
	// GetTransfersByUserID returns transfers the user sent or received.
	GetTransfersByUserID(ctx context.Context, userID primitive.ObjectID) ([]*models.Transfer, error)
}

type MongoTransferRepository struct {
	collection *mongo.Collection
}

func NewTransferRepository(client *mongo.Client, dbName, collectionName string) TransferRepository {
	collection := client.Database(dbName).Collection(collectionName)
	return &MongoTransferRepository{collection: collection}
}

func (r *MongoTransferRepository) SaveTransfer(ctx context.Context, t *models.Transfer) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	t.ID = primitive.NewObjectID()
	t.CreatedAt = time.Now().UTC()
	_, err := r.collection.InsertOne(ctx, t)
	return mapError(err)
}

func (r *MongoTransferRepository) GetTransferByID(ctx context.Context, id primitive.ObjectID) (*models.Transfer, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var t models.Transfer
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&t); err != nil {
		return nil, mapError(err)
	}
	return &t, nil
}

func (r *MongoTransferRepository) GetTransfersByUserID(ctx context.Context, userID primitive.ObjectID) ([]*models.Transfer, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{"$or": bson.A{bson.M{"sender_id": userID}, bson.M{"receiver_id": userID}}}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var transfers []*models.Transfer
	if err := cursor.All(ctx, &transfers); err != nil {
		return nil, err
	}
	return transfers, nil
}
