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

type PlanRepository interface {
	SavePlan(ctx context.Context, plan *models.SubscriptionPlan) error
	GetPlanByID(ctx context.Context, id primitive.ObjectID) (*models.SubscriptionPlan, error)
	GetPlans(ctx context.Context, activeOnly bool) ([]*models.SubscriptionPlan, error)
	UpdatePlan(ctx context.Context, plan *models.SubscriptionPlan) error
}

type MongoPlanRepository struct {
	collection *mongo.Collection
}

func NewPlanRepository(client *mongo.Client, dbName, collectionName string) PlanRepository {
	collection := client.Database(dbName).Collection(collectionName)
	return &MongoPlanRepository{collection: collection}
}

func (r *MongoPlanRepository) SavePlan(ctx context.Context, plan *models.SubscriptionPlan) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	plan.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, plan)
	return mapError(err)
}

func (r *MongoPlanRepository) GetPlanByID(ctx context.Context, id primitive.ObjectID) (*models.SubscriptionPlan, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var plan models.SubscriptionPlan
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&plan); err != nil {
		return nil, mapError(err)
	}
	return &plan, nil
}

func (r *MongoPlanRepository) GetPlans(ctx context.Context, activeOnly bool) ([]*models.SubscriptionPlan, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{}
	if activeOnly {
		filter["is_active"] = true
	}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.M{"min_investment": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var plans []*models.SubscriptionPlan
	if err := cursor.All(ctx, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *MongoPlanRepository) UpdatePlan(ctx context.Context, plan *models.SubscriptionPlan) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	plan.UpdatedAt = time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"name":           plan.Name,
		"description":    plan.Description,
		"min_investment": plan.MinInvestment,
		"monthly_roi":    plan.MonthlyROI,
		"duration_days":  plan.DurationDays,
		"is_active":      plan.IsActive,
		"updated_at":     plan.UpdatedAt,
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": plan.ID}, update)
	if err != nil {
		return mapError(err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
