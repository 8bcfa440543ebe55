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

// SettingRepository stores the single platform settings document.
type SettingRepository interface {
	GetSetting(ctx context.Context) (*models.Setting, error)
	SaveSetting(ctx context.Context, setting *models.Setting) error
}

type MongoSettingRepository struct {
	collection *mongo.Collection
}

func NewSettingRepository(client *mongo.Client, dbName, collectionName string) SettingRepository {
	collection := client.Database(dbName).Collection(collectionName)
	return &MongoSettingRepository{collection: collection}
}

func (r *MongoSettingRepository) GetSetting(ctx context.Context) (*models.Setting, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var setting models.Setting
	if err := r.collection.FindOne(ctx, bson.M{}).Decode(&setting); err != nil {
		return nil, mapError(err)
	}
	return &setting, nil
}

func (r *MongoSettingRepository) SaveSetting(ctx context.Context, setting *models.Setting) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	setting.UpdatedAt = time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"support_email":    setting.SupportEmail,
		"support_telegram": setting.SupportTelegram,
		"support_phone":    setting.SupportPhone,
		"updated_at":       setting.UpdatedAt,
	}, "$setOnInsert": bson.M{"_id": primitive.NewObjectID()}}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{}, update, opts).Decode(setting); err != nil {
		return mapError(err)
	}
	return nil
}
