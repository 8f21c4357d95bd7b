package service

import (
	"context"

	"github.com/maheshrc27/multipost/internal/models"
	"github.com/maheshrc27/multipost/internal/publisher"
	"github.com/maheshrc27/multipost/internal/repository"
)

// PlatformService exposes the connected accounts a post can target.
type PlatformService interface {
	List(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	Supported() []models.Platform
}

type platformService struct {
	sa       repository.SocialAccountRepository
	registry *publisher.Registry
}

func NewPlatformService(sa repository.SocialAccountRepository, registry *publisher.Registry) PlatformService {
	return &platformService{
		sa:       sa,
		registry: registry,
	}
}

func (s *platformService) List(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	accounts, err := s.sa.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if accounts == nil {
		accounts = []*models.SocialAccount{}
	}
	return accounts, nil
}

func (s *platformService) Supported() []models.Platform {
	return s.registry.Platforms()
}
