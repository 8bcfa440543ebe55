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

// ROIRecordRepository is append-only: there is no update or delete.
type ROIRecordRepository interface {
	// SaveRecord returns ErrDuplicateKey when the (investment, week) pair
	// has already been recorded.
	SaveRecord(ctx context.Context, record *models.ROIRecord) error
	Exists(ctx context.Context, investmentID primitive.ObjectID, weekNumber int) (bool, error)
	GetRecordsByInvestment(ctx context.Context, investmentID primitive.ObjectID) ([]*models.ROIRecord, error)
	GetRecordsByUser(ctx context.Context, userID primitive.ObjectID) ([]*models.ROIRecord, error)
}

type MongoROIRecordRepository struct {
	collection *mongo.Collection
}

func NewROIRecordRepository(client *mongo.Client, dbName, collectionName string) ROIRecordRepository {
	collection := client.Database(dbName).Collection(collectionName)
	return &MongoROIRecordRepository{collection: collection}
}

func (r *MongoROIRecordRepository) SaveRecord(ctx context.Context, record *models.ROIRecord) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	record.ID = primitive.NewObjectID()
	record.CreatedAt = time.Now().UTC()
	_, err := r.collection.InsertOne(ctx, record)
	return mapError(err)
}

func (r *MongoROIRecordRepository) Exists(ctx context.Context, investmentID primitive.ObjectID, weekNumber int) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	n, err := r.collection.CountDocuments(ctx, bson.M{"investment_id": investmentID, "week_number": weekNumber}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *MongoROIRecordRepository) GetRecordsByInvestment(ctx context.Context, investmentID primitive.ObjectID) ([]*models.ROIRecord, error) {
	return r.find(ctx, bson.M{"investment_id": investmentID})
}

func (r *MongoROIRecordRepository) GetRecordsByUser(ctx context.Context, userID primitive.ObjectID) ([]*models.ROIRecord, error) {
	return r.find(ctx, bson.M{"user_id": userID})
}

func (r *MongoROIRecordRepository) find(ctx context.Context, filter bson.M) ([]*models.ROIRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.M{"week_number": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*models.ROIRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
