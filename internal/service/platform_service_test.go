package service

import (
	"context"
	"testing"

	"github.com/maheshrc27/multipost/internal/models"
	"github.com/maheshrc27/multipost/internal/publisher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformService(t *testing.T) {
	e := newEnv(t)
	registry := publisher.NewRegistry(
		newFakePublisher(models.PlatformYoutube, nil),
		newFakePublisher(models.PlatformFacebook, nil),
	)
	svc := NewPlatformService(e.accounts, registry)

	t.Run("no accounts is an empty list", func(t *testing.T) {
		accounts, err := svc.List(context.Background(), 1)
		require.NoError(t, err)
		assert.NotNil(t, accounts)
		assert.Empty(t, accounts)
	})

	t.Run("lists only the owner's accounts", func(t *testing.T) {
		fb := e.account(t, 1, models.PlatformFacebook)
		e.account(t, 2, models.PlatformTiktok)

		accounts, err := svc.List(context.Background(), 1)
		require.NoError(t, err)
		require.Len(t, accounts, 1)
		assert.Equal(t, fb, accounts[0].ID)
	})

	assert.Equal(t, []models.Platform{models.PlatformFacebook, models.PlatformYoutube}, svc.Supported())
}
