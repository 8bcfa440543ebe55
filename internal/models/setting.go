package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Setting struct {
	ID              primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	SupportEmail    string             `json:"support_email" bson:"support_email"`
	SupportTelegram string             `json:"support_telegram" bson:"support_telegram"`
	SupportPhone    string             `json:"support_phone" bson:"support_phone"`
	UpdatedAt       time.Time          `json:"updated_at" bson:"updated_at"`
}
