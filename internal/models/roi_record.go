package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ROIRecord is written once per (investment, week) and never updated.
type ROIRecord struct {
	ID                     primitive.ObjectID  `json:"_id,omitempty" bson:"_id,omitempty"`
	UserID                 primitive.ObjectID  `json:"user_id" bson:"user_id"`
	InvestmentID           *primitive.ObjectID `json:"investment_id,omitempty" bson:"investment_id,omitempty"`
	WeekNumber             int                 `json:"week_number" bson:"week_number"`
	ROIAmount              decimal.Decimal     `json:"roi_amount" bson:"roi_amount"`
	IsReferralBonusApplied bool                `json:"is_referral_bonus_applied" bson:"is_referral_bonus_applied"`
	CreatedAt              time.Time           `json:"created_at" bson:"created_at"`
}
