package repository

import (
	"context"
	"time"

	"github.com/mehrbod2002/roivault/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SupportTicketRepository interface {
	SaveTicket(ctx context.Context, ticket *models.SupportTicket) error
	GetTicketByID(ctx context.Context, id primitive.ObjectID) (*models.SupportTicket, error)
	GetTicketsByUserID(ctx context.Context, userID primitive.ObjectID) ([]*models.SupportTicket, error)
	// GetTickets lists all tickets, optionally narrowed to one status.
	GetTickets(ctx context.Context, status models.SupportTicketStatus) ([]*models.SupportTicket, error)
	// Transition moves the ticket from the given status to ticket.Status.
	Transition(ctx context.Context, ticket *models.SupportTicket, from models.SupportTicketStatus) error
}

type MongoSupportTicketRepository struct {
	collection *mongo.Collection
}

func NewSupportTicketRepository(client *mongo.Client, dbName, collectionName string) SupportTicketRepository {
	collection := client.Database(dbName).Collection(collectionName)
	return &MongoSupportTicketRepository{collection: collection}
}

func (r *MongoSupportTicketRepository) SaveTicket(ctx context.Context, ticket *models.SupportTicket) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ticket.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, ticket)
	return mapError(err)
}

func (r *MongoSupportTicketRepository) GetTicketByID(ctx context.Context, id primitive.ObjectID) (*models.SupportTicket, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var ticket models.SupportTicket
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&ticket); err != nil {
		return nil, mapError(err)
	}
	return &ticket, nil
}

func (r *MongoSupportTicketRepository) GetTicketsByUserID(ctx context.Context, userID primitive.ObjectID) ([]*models.SupportTicket, error) {
	return r.find(ctx, bson.M{"user_id": userID})
}

func (r *MongoSupportTicketRepository) GetTickets(ctx context.Context, status models.SupportTicketStatus) ([]*models.SupportTicket, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	return r.find(ctx, filter)
}

func (r *MongoSupportTicketRepository) find(ctx context.Context, filter bson.M) ([]*models.SupportTicket, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tickets []*models.SupportTicket
	if err := cursor.All(ctx, &tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *MongoSupportTicketRepository) Transition(ctx context.Context, ticket *models.SupportTicket, from models.SupportTicketStatus) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ticket.UpdatedAt = time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"status":      ticket.Status,
		"admin_reply": ticket.AdminReply,
		"updated_at":  ticket.UpdatedAt,
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": ticket.ID, "status": from}, update)
	if err != nil {
		return mapError(err)
	}
	if result.MatchedCount == 0 {
		return ErrConflict
	}
	return nil
}
