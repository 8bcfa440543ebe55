package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "PENDING"
	TransactionStatusSuccess TransactionStatus = "SUCCESS"
	TransactionStatusFailed  TransactionStatus = "FAILED"
)

type TransactionType string

const (
	TransactionTypeDeposit       TransactionType = "DEPOSIT"
	TransactionTypeWithdraw      TransactionType = "WITHDRAW"
	TransactionTypeTransfer      TransactionType = "TRANSFER"
	TransactionTypeInvestment    TransactionType = "INVESTMENT"
	TransactionTypeReferralBonus TransactionType = "REFERRAL_BONUS"
	TransactionTypeROI           TransactionType = "ROI"
)

// Valid reports whether t is one of the known ledger entry types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdraw, TransactionTypeTransfer,
		TransactionTypeInvestment, TransactionTypeReferralBonus, TransactionTypeROI:
		return true
	}
	return false
}

// Earning reports whether a credit of this type counts towards TotalEarnings.
func (t TransactionType) Earning() bool {
	return t == TransactionTypeROI || t == TransactionTypeReferralBonus
}

type Transaction struct {
	ID           primitive.ObjectID     `json:"_id,omitempty" bson:"_id,omitempty"`
	UserID       primitive.ObjectID     `json:"user_id" bson:"user_id"`
	Type         TransactionType        `json:"type" bson:"type"`
	Amount       decimal.Decimal        `json:"amount" bson:"amount"`
	Currency     string                 `json:"currency" bson:"currency"`
	Status       TransactionStatus      `json:"status" bson:"status"`
	BalanceAfter decimal.Decimal        `json:"balance_after" bson:"balance_after"`
	Meta         map[string]interface{} `json:"meta,omitempty" bson:"meta,omitempty"`
	InvestmentID *primitive.ObjectID    `json:"investment_id,omitempty" bson:"investment_id,omitempty"`
	CreatedAt    time.Time              `json:"created_at" bson:"created_at"`
}
