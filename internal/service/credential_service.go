package service

import (
	"context"
	"fmt"

	"github.com/maheshrc27/multipost/internal/models"
	"github.com/maheshrc27/multipost/internal/repository"
	"github.com/maheshrc27/multipost/pkg/utils"
)

type CredentialService interface {
	GetDecryptedCredentials(ctx context.Context, accountID int64) (*models.Credentials, error)
}

type credentialService struct {
	secretKey []byte
	sa        repository.SocialAccountRepository
}

func NewCredentialService(secretKey string, sa repository.SocialAccountRepository) CredentialService {
	return &credentialService{
		secretKey: []byte(secretKey),
		sa:        sa,
	}
}

func (s *credentialService) GetDecryptedCredentials(ctx context.Context, accountID int64) (*models.Credentials, error) {
	account, err := s.sa.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, models.ErrAccountNotFound
	}
	if !account.IsActive {
		return nil, fmt.Errorf("social account %d is disconnected", accountID)
	}
	if account.AccessToken == "" {
		return nil, models.ErrCredentialsMissing
	}

	accessToken, err := utils.Decrypt(account.AccessToken, s.secretKey)
	if err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}

	creds := &models.Credentials{AccessToken: accessToken}
	if account.RefreshToken != "" {
		refreshToken, err := utils.Decrypt(account.RefreshToken, s.secretKey)
		if err != nil {
			return nil, fmt.Errorf("decrypt refresh token: %w", err)
		}
		creds.RefreshToken = refreshToken
	}
	return creds, nil
}
