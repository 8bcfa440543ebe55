package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID             primitive.ObjectID  `json:"_id,omitempty" bson:"_id,omitempty"`
	Username       string              `json:"username" bson:"username"`
	Email          string              `json:"email" bson:"email"`
	PasswordHash   string              `json:"-" bson:"password_hash"`
	ReferralCode   string              `json:"referral_code" bson:"referral_code"`
	ReferredBy     *primitive.ObjectID `json:"referred_by,omitempty" bson:"referred_by,omitempty"`
	TotalReferrals int                 `json:"total_referrals" bson:"total_referrals"`
	TotalEarnings  decimal.Decimal     `json:"total_earnings" bson:"total_earnings"`
	CurrentLevel   int                 `json:"current_level" bson:"current_level"`
	USDTBalance    decimal.Decimal     `json:"usdt_balance" bson:"usdt_balance"`
	Version        int64               `json:"version" bson:"version"`
	IsActive       bool                `json:"is_active" bson:"is_active"`
	CreatedAt      time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at" bson:"updated_at"`
}

// LevelFor returns the 1-based level reached with the given number of direct
// referrals. thresholds[i] is the referral count needed for level i+2.
func LevelFor(totalReferrals int, thresholds []int) int {
	level := 1
	for _, t := range thresholds {
		if totalReferrals < t {
			break
		}
		level++
	}
	return level
}
