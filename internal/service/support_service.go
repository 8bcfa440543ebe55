package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/mehrbod2002/roivault/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SupportService interface {
	CreateTicket(ctx context.Context, userID primitive.ObjectID, subject, message string) (*models.SupportTicket, error)
	GetTicket(ctx context.Context, id primitive.ObjectID) (*models.SupportTicket, error)
	GetTicketsByUserID(ctx context.Context, userID primitive.ObjectID) ([]*models.SupportTicket, error)
	GetTickets(ctx context.Context, status models.SupportTicketStatus) ([]*models.SupportTicket, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.SupportTicketStatus, reply string) (*models.SupportTicket, error)
}

type supportService struct {
	ticketRepo repository.SupportTicketRepository
}

func NewSupportService(ticketRepo repository.SupportTicketRepository) SupportService {
	return &supportService{ticketRepo: ticketRepo}
}

func (s *supportService) CreateTicket(ctx context.Context, userID primitive.ObjectID, subject, message string) (*models.SupportTicket, error) {
	subject = strings.TrimSpace(subject)
	message = strings.TrimSpace(message)
	if subject == "" || message == "" {
		return nil, fmt.Errorf("%w: subject and message are required", ErrInvalidInput)
	}

	ticket := &models.SupportTicket{
		UserID:  userID,
		Subject: subject,
		Message: message,
		Status:  models.SupportTicketStatusOpen,
	}
	if err := s.ticketRepo.SaveTicket(ctx, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s *supportService) GetTicket(ctx context.Context, id primitive.ObjectID) (*models.SupportTicket, error) {
	ticket, err := s.ticketRepo.GetTicketByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return ticket, err
}

func (s *supportService) GetTicketsByUserID(ctx context.Context, userID primitive.ObjectID) ([]*models.SupportTicket, error) {
	return s.ticketRepo.GetTicketsByUserID(ctx, userID)
}

func (s *supportService) GetTickets(ctx context.Context, status models.SupportTicketStatus) ([]*models.SupportTicket, error) {
	return s.ticketRepo.GetTickets(ctx, status)
}

func (s *supportService) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.SupportTicketStatus, reply string) (*models.SupportTicket, error) {
	ticket, err := s.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ticket.Status.CanTransition(status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidStateTransition, ticket.Status, status)
	}

	from := ticket.Status
	ticket.Status = status
	if reply = strings.TrimSpace(reply); reply != "" {
		ticket.AdminReply = reply
	}
	if err := s.ticketRepo.Transition(ctx, ticket, from); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: ticket changed concurrently", ErrInvalidStateTransition)
		}
		return nil, err
	}
	return ticket, nil
}
