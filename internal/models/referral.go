package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ReferralStatus string

const (
	ReferralStatusActive  ReferralStatus = "ACTIVE"
	ReferralStatusExpired ReferralStatus = "EXPIRED"
)

type Referral struct {
	ID              primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	ReferrerID      primitive.ObjectID `json:"referrer_id" bson:"referrer_id"`
	ReferredUserID  primitive.ObjectID `json:"referred_user_id" bson:"referred_user_id"`
	Level           int                `json:"level" bson:"level"`
	BonusPercentage decimal.Decimal    `json:"bonus_percentage" bson:"bonus_percentage"`
	BonusStartDate  time.Time          `json:"bonus_start_date" bson:"bonus_start_date"`
	BonusEndDate    time.Time          `json:"bonus_end_date" bson:"bonus_end_date"`
	Status          ReferralStatus     `json:"status" bson:"status"`
	CreatedAt       time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at" bson:"updated_at"`
}

// InWindow reports whether t falls inside [BonusStartDate, BonusEndDate].
func (r *Referral) InWindow(t time.Time) bool {
	return !t.Before(r.BonusStartDate) && !t.After(r.BonusEndDate)
}

// StatusAt derives the status as of t. A stored EXPIRED never reverts;
// a stored ACTIVE reads as EXPIRED once the window has closed.
func (r *Referral) StatusAt(t time.Time) ReferralStatus {
	if r.Status == ReferralStatusExpired || t.After(r.BonusEndDate) {
		return ReferralStatusExpired
	}
	return ReferralStatusActive
}
