package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type InvestmentStatus string

const (
	InvestmentStatusActive    InvestmentStatus = "ACTIVE"
	InvestmentStatusCompleted InvestmentStatus = "COMPLETED"
	InvestmentStatusCancelled InvestmentStatus = "CANCELLED"
)

type Investment struct {
	ID             primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	UserID         primitive.ObjectID `json:"user_id" bson:"user_id"`
	PlanID         primitive.ObjectID `json:"plan_id" bson:"plan_id"`
	AmountInvested decimal.Decimal    `json:"amount_invested" bson:"amount_invested"`
	ROIPercentage  decimal.Decimal    `json:"roi_percentage" bson:"roi_percentage"`
	StartDate      time.Time          `json:"start_date" bson:"start_date"`
	EndDate        *time.Time         `json:"end_date,omitempty" bson:"end_date,omitempty"`
	Status         InvestmentStatus   `json:"status" bson:"status"`
	TotalReturn    decimal.Decimal    `json:"total_return" bson:"total_return"`
	Version        int64              `json:"version" bson:"version"`
	CreatedAt      time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" bson:"updated_at"`
}

// Matured reports whether the investment term has ended as of t.
func (i *Investment) Matured(t time.Time) bool {
	return i.EndDate != nil && !t.Before(*i.EndDate)
}
