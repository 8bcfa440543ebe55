package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "PENDING"
	WithdrawalStatusApproved WithdrawalStatus = "APPROVED"
	WithdrawalStatusRejected WithdrawalStatus = "REJECTED"
)

type Withdrawal struct {
	ID                 primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	UserID             primitive.ObjectID `json:"user_id" bson:"user_id"`
	Amount             decimal.Decimal    `json:"amount" bson:"amount"`
	DestinationAddress string             `json:"destination_address" bson:"destination_address"`
	Status             WithdrawalStatus   `json:"status" bson:"status"`
	Reason             string             `json:"reason,omitempty" bson:"reason,omitempty"`
	TransactionID      primitive.ObjectID `json:"transaction_id" bson:"transaction_id"`
	ProcessedAt        *time.Time         `json:"processed_at,omitempty" bson:"processed_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at" bson:"created_at"`
}
