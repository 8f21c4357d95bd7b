package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	config "github.com/maheshrc27/multipost/configs"
	"github.com/maheshrc27/multipost/internal/models"
	"github.com/maheshrc27/multipost/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type memoryStore struct {
	objects    map[string][]byte
	types      map[string]string
	presignErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryStore) Upload(ctx context.Context, key string, file []byte, contentType string) error {
	m.objects[key] = file
	m.types[key] = contentType
	return nil
}

func (m *memoryStore) PresignGet(ctx context.Context, key string) (string, error) {
	if m.presignErr != nil {
		return "", m.presignErr
	}
	return "https://signed.example/" + key + "?sig=1", nil
}

func TestContentUploadAndDescriptor(t *testing.T) {
	e := newEnv(t)
	store := newMemoryStore()
	svc := NewContentService(e.contents, store)
	ctx := context.Background()

	content, err := svc.Upload(ctx, 1, "cover.png", pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "image/png", content.MimeType)
	assert.True(t, strings.HasSuffix(content.FileKey, ".png"))
	assert.Equal(t, "image/png", store.types[content.FileKey])

	owned, err := e.contents.CheckByUserID(ctx, content.ID, 1)
	require.NoError(t, err)
	assert.True(t, owned)

	descriptor, err := svc.GetContentDescriptor(ctx, content.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/"+content.FileKey+"?sig=1", descriptor.MediaURL)
	assert.Equal(t, "image/png", descriptor.MimeType)

	_, err = svc.GetContentDescriptor(ctx, 9999)
	assert.ErrorIs(t, err, models.ErrContentNotFound)
}

func TestContentUploadRejections(t *testing.T) {
	e := newEnv(t)

	_, err := NewContentService(e.contents, nil).Upload(context.Background(), 1, "a.png", pngHeader)
	assert.ErrorIs(t, err, ErrStorageDisabled)

	_, err = NewContentService(e.contents, newMemoryStore()).Upload(context.Background(), 1, "a.txt", []byte("just text"))
	assert.ErrorIs(t, err, ErrUnsupportedMedia)
}

func TestContentDescriptorFallsBackToStoredURL(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	store := newMemoryStore()
	store.presignErr = errors.New("signing failed")

	id, err := e.contents.Create(ctx, nil, &models.Content{UserID: 1, FileKey: "k.mp4", FileURL: "https://pub.example/k.mp4", MimeType: "video/mp4"})
	require.NoError(t, err)

	descriptor, err := NewContentService(e.contents, store).GetContentDescriptor(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "https://pub.example/k.mp4", descriptor.MediaURL)

	bare, err := e.contents.Create(ctx, nil, &models.Content{UserID: 1, FileKey: "only-key.mp4", MimeType: "video/mp4"})
	require.NoError(t, err)
	_, err = NewContentService(e.contents, store).GetContentDescriptor(ctx, bare)
	assert.Error(t, err)
}

func TestCredentialService(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	accountID := e.account(t, 1, models.PlatformYoutube)
	creds, err := e.credentials.GetDecryptedCredentials(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, "token-youtube", creds.AccessToken)
	assert.Empty(t, creds.RefreshToken)

	access, err := utils.Encrypt([]byte("a"), []byte(testSecretKey))
	require.NoError(t, err)
	refresh, err := utils.Encrypt([]byte("r"), []byte(testSecretKey))
	require.NoError(t, err)
	withRefresh, err := e.accounts.Create(ctx, nil, &models.SocialAccount{
		UserID: 1, Platform: models.PlatformYoutube, AccountID: "chan", AccessToken: access, RefreshToken: refresh, IsActive: true,
	})
	require.NoError(t, err)
	creds, err = e.credentials.GetDecryptedCredentials(ctx, withRefresh)
	require.NoError(t, err)
	assert.Equal(t, models.Credentials{AccessToken: "a", RefreshToken: "r"}, *creds)

	_, err = e.credentials.GetDecryptedCredentials(ctx, 9999)
	assert.ErrorIs(t, err, models.ErrAccountNotFound)

	_, err = NewCredentialService("fedcba9876543210fedcba9876543210", e.accounts).GetDecryptedCredentials(ctx, accountID)
	assert.ErrorContains(t, err, "decrypt access token")
}

func TestR2ServicePresign(t *testing.T) {
	_, err := NewR2Service(context.Background(), config.R2{})
	assert.Error(t, err)

	r2, err := NewR2Service(context.Background(), config.R2{
		AccountID:  "acct123",
		AccessKey:  "AKIDEXAMPLE",
		SecretKey:  "secret",
		BucketName: "media",
	})
	require.NoError(t, err)

	url, err := r2.PresignGet(context.Background(), "abc.mp4")
	require.NoError(t, err)
	assert.Contains(t, url, "acct123.r2.cloudflarestorage.com")
	assert.Contains(t, url, "abc.mp4")
	assert.Contains(t, url, "X-Amz-Expires=3600")
	assert.Contains(t, url, "X-Amz-Signature=")
}
