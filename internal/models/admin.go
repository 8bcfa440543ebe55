package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AdminAccount struct {
	ID          primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	Username    string             `json:"username" bson:"username"`
	Password    string             `json:"-" bson:"password"`
	AccountType string             `json:"account_type" bson:"account_type"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
}
