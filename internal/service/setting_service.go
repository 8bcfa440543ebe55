package service

import (
	"context"
	"errors"

	"github.com/mehrbod2002/roivault/internal/models"
	"github.com/mehrbod2002/roivault/internal/repository"
)

type SettingService interface {
	GetSetting(ctx context.Context) (*models.Setting, error)
	UpdateSetting(ctx context.Context, setting *models.Setting) (*models.Setting, error)
}

type settingService struct {
	settingRepo repository.SettingRepository
}

func NewSettingService(settingRepo repository.SettingRepository) SettingService {
	return &settingService{settingRepo: settingRepo}
}

// GetSetting returns an empty document until an admin saves one.
func (s *settingService) GetSetting(ctx context.Context) (*models.Setting, error) {
	setting, err := s.settingRepo.GetSetting(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return &models.Setting{}, nil
	}
	return setting, err
}

func (s *settingService) UpdateSetting(ctx context.Context, setting *models.Setting) (*models.Setting, error) {
	if err := s.settingRepo.SaveSetting(ctx, setting); err != nil {
		return nil, err
	}
	return setting, nil
}
