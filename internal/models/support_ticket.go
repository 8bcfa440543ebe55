package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SupportTicketStatus string

const (
	SupportTicketStatusOpen       SupportTicketStatus = "OPEN"
	SupportTicketStatusInProgress SupportTicketStatus = "IN_PROGRESS"
	SupportTicketStatusResolved   SupportTicketStatus = "RESOLVED"
	SupportTicketStatusClosed     SupportTicketStatus = "CLOSED"
)

var supportTicketTransitions = map[SupportTicketStatus][]SupportTicketStatus{
	SupportTicketStatusOpen:       {SupportTicketStatusInProgress, SupportTicketStatusClosed},
	SupportTicketStatusInProgress: {SupportTicketStatusResolved, SupportTicketStatusClosed},
	SupportTicketStatusResolved:   {SupportTicketStatusClosed, SupportTicketStatusInProgress},
}

// CanTransition reports whether a ticket may move from s to next.
func (s SupportTicketStatus) CanTransition(next SupportTicketStatus) bool {
	for _, allowed := range supportTicketTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type SupportTicket struct {
	ID         primitive.ObjectID  `json:"_id,omitempty" bson:"_id,omitempty"`
	UserID     primitive.ObjectID  `json:"user_id" bson:"user_id"`
	Subject    string              `json:"subject" bson:"subject"`
	Message    string              `json:"message" bson:"message"`
	Status     SupportTicketStatus `json:"status" bson:"status"`
	AdminReply string              `json:"admin_reply,omitempty" bson:"admin_reply,omitempty"`
	CreatedAt  time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at" bson:"updated_at"`
}
