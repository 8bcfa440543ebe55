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

type InvestmentRepository interface {
	SaveInvestment(ctx context.Context, inv *models.Investment) error
	GetInvestmentByID(ctx context.Context, id primitive.ObjectID) (*models.Investment, error)
	GetInvestmentsByUserID(ctx context.Context, userID primitive.ObjectID) ([]*models.Investment, error)
	GetActiveInvestments(ctx context.Context) ([]*models.Investment, error)
	// GetAccruableInvestments lists ACTIVE investments plus COMPLETED ones
	// whose end date is after asOf, i.e. those that may still be owed a week
	// dated asOf or later.
	GetAccruableInvestments(ctx context.Context, asOf time.Time) ([]*models.Investment, error)
	CountByPlan(ctx context.Context, planID primitive.ObjectID) (int64, error)
	CountByUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
	// UpdateInvestment writes TotalReturn and Status when the stored version
	// equals inv.Version, then bumps inv.Version.
	UpdateInvestment(ctx context.Context, inv *models.Investment) error
}

type MongoInvestmentRepository struct {
	collection *mongo.Collection
}

func NewInvestmentRepository(client *mongo.Client, dbName, collectionName string) InvestmentRepository {
	collection := client.Database(dbName).Collection(collectionName)
	return &MongoInvestmentRepository{collection: collection}
}

func (r *MongoInvestmentRepository) SaveInvestment(ctx context.Context, inv *models.Investment) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	inv.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, inv)
	return mapError(err)
}

func (r *MongoInvestmentRepository) GetInvestmentByID(ctx context.Context, id primitive.ObjectID) (*models.Investment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var inv models.Investment
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&inv); err != nil {
		return nil, mapError(err)
	}
	return &inv, nil
}

func (r *MongoInvestmentRepository) GetInvestmentsByUserID(ctx context.Context, userID primitive.ObjectID) ([]*models.Investment, error) {
	return r.find(ctx, bson.M{"user_id": userID}, options.Find().SetSort(bson.M{"created_at": -1}))
}

func (r *MongoInvestmentRepository) GetActiveInvestments(ctx context.Context) ([]*models.Investment, error) {
	return r.find(ctx, bson.M{"status": models.InvestmentStatusActive}, options.Find().SetSort(bson.M{"_id": 1}))
}

func (r *MongoInvestmentRepository) GetAccruableInvestments(ctx context.Context, asOf time.Time) ([]*models.Investment, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"status": models.InvestmentStatusActive},
		bson.M{"status": models.InvestmentStatusCompleted, "end_date": bson.M{"$gt": asOf}},
	}}
	return r.find(ctx, filter, options.Find().SetSort(bson.M{"_id": 1}))
}

func (r *MongoInvestmentRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.Investment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var investments []*models.Investment
	if err := cursor.All(ctx, &investments); err != nil {
		return nil, err
	}
	return investments, nil
}

func (r *MongoInvestmentRepository) CountByPlan(ctx context.Context, planID primitive.ObjectID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return r.collection.CountDocuments(ctx, bson.M{"plan_id": planID})
}

func (r *MongoInvestmentRepository) CountByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return r.collection.CountDocuments(ctx, bson.M{"user_id": userID})
}

func (r *MongoInvestmentRepository) UpdateInvestment(ctx context.Context, inv *models.Investment) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"total_return": inv.TotalReturn,
			"status":       inv.Status,
			"updated_at":   now,
		},
		"$inc": bson.M{"version": 1},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": inv.ID, "version": inv.Version}, update)
	if err != nil {
		return mapError(err)
	}
	if result.MatchedCount == 0 {
		return ErrConflict
	}
	inv.Version++
	inv.UpdatedAt = now
	return nil
}
