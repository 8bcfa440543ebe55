package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SubscriptionPlan struct {
	ID            primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	Name          string             `json:"name" bson:"name"`
	Description   string             `json:"description" bson:"description"`
	MinInvestment decimal.Decimal    `json:"min_investment" bson:"min_investment"`
	MonthlyROI    decimal.Decimal    `json:"monthly_roi" bson:"monthly_roi"`
	DurationDays  int                `json:"duration_days" bson:"duration_days"`
	IsActive      bool               `json:"is_active" bson:"is_active"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" bson:"updated_at"`
}
