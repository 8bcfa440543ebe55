package service

import (
	"context"

	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/mehrbod2002/roivault/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type LogService interface {
	LogAction(ctx context.Context, actor models.ActorType, userID primitive.ObjectID, action, description, ipAddress string, metadata map[string]interface{}) error
	GetAllLogs(ctx context.Context, page, limit int) ([]*models.LogEntry, error)
	GetLogsByUserID(ctx context.Context, userID primitive.ObjectID, page, limit int) ([]*models.LogEntry, error)
}

type logService struct {
	logRepo repository.LogRepository
	logger  *zap.Logger
}

func NewLogService(logRepo repository.LogRepository, logger *zap.Logger) LogService {
	return &logService{logRepo: logRepo, logger: logger.Named("audit")}
}

func (s *logService) LogAction(ctx context.Context, actor models.ActorType, userID primitive.ObjectID, action, description, ipAddress string, metadata map[string]interface{}) error {
	logEntry := &models.LogEntry{
		Actor:       actor,
		UserID:      userID,
		Action:      action,
		Description: description,
		IPAddress:   ipAddress,
		Metadata:    metadata,
	}
	if err := s.logRepo.SaveLog(ctx, logEntry); err != nil {
		s.logger.Error("failed to save audit entry", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *logService) GetAllLogs(ctx context.Context, page, limit int) ([]*models.LogEntry, error) {
	return s.logRepo.GetAllLogs(ctx, page, limit)
}

func (s *logService) GetLogsByUserID(ctx context.Context, userID primitive.ObjectID, page, limit int) ([]*models.LogEntry, error) {
	return s.logRepo.GetLogsByUserID(ctx, userID, page, limit)
}
