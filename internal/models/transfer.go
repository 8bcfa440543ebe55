package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TransferStatus string

const (
	TransferStatusPending TransferStatus = "PENDING"
	TransferStatusSuccess TransferStatus = "SUCCESS"
	TransferStatusFailed  TransferStatus = "FAILED"
)

type Transfer struct {
	ID            primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	SenderID      primitive.ObjectID `json:"sender_id" bson:"sender_id"`
	ReceiverID    primitive.ObjectID `json:"receiver_id" bson:"receiver_id"`
	Amount        decimal.Decimal    `json:"amount" bson:"amount"`
	Status        TransferStatus     `json:"status" bson:"status"`
	Note          string             `json:"note,omitempty" bson:"note,omitempty"`
	FailureReason string             `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
}
