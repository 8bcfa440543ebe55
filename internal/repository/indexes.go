package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	UsersCollection          = "users"
	WalletsCollection        = "wallets"
	PlansCollection          = "plans"
	InvestmentsCollection    = "investments"
	ROIRecordsCollection     = "roi_records"
	ReferralsCollection      = "referrals"
	TransactionsCollection   = "transactions"
	WithdrawalsCollection    = "withdrawals"
	TransfersCollection      = "transfers"
	SettingsCollection       = "settings"
	SupportTicketsCollection = "support_tickets"
	AdminsCollection         = "admins"
	LogsCollection           = "logs"
)

// EnsureIndexes creates the unique and lookup indexes every collection
// relies on. It is safe to call on every start.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	unique := options.Index().SetUnique(true)
	specs := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "referral_code", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "referred_by", Value: 1}}},
		},
		WalletsCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: unique},
		},
		InvestmentsCollection: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "end_date", Value: 1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
			{Keys: bson.D{{Key: "plan_id", Value: 1}}},
		},
		ROIRecordsCollection: {
			{Keys: bson.D{{Key: "investment_id", Value: 1}, {Key: "week_number", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
		ReferralsCollection: {
			{Keys: bson.D{{Key: "referrer_id", Value: 1}, {Key: "referred_user_id", Value: 1}, {Key: "level", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "referred_user_id", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "bonus_end_date", Value: 1}}},
		},
		TransactionsCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		WithdrawalsCollection: {
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
		TransfersCollection: {
			{Keys: bson.D{{Key: "sender_id", Value: 1}}},
			{Keys: bson.D{{Key: "receiver_id", Value: 1}}},
		},
		SupportTicketsCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
		AdminsCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique},
		},
		LogsCollection: {
			{Keys: bson.D{{Key: "timestamp", Value: -1}}},
		},
	}

	for name, idx := range specs {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}
