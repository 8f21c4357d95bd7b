package service

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maheshrc27/multipost/internal/models"
	"github.com/maheshrc27/multipost/internal/publisher"
	"github.com/maheshrc27/multipost/internal/repository"
	"github.com/maheshrc27/multipost/pkg/utils"
	"github.com/stretchr/testify/require"
)

const testSecretKey = "0123456789abcdef0123456789abcdef"

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

type fakePublisher struct {
	platform models.Platform
	publish  func(req publisher.Request) publisher.Result

	calls    atomic.Int32
	mu       sync.Mutex
	requests []publisher.Request
	updated  []string
	deleted  []string
}

func newFakePublisher(platform models.Platform, publish func(req publisher.Request) publisher.Result) *fakePublisher {
	if publish == nil {
		publish = func(publisher.Request) publisher.Result {
			return publisher.Result{Success: true, PlatformPostID: string(platform) + "-1", PlatformURL: "https://" + string(platform) + ".example/1"}
		}
	}
	return &fakePublisher{platform: platform, publish: publish}
}

func (f *fakePublisher) Platform() models.Platform { return f.platform }

func (f *fakePublisher) Publish(ctx context.Context, req publisher.Request) publisher.Result {
	f.calls.Add(1)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.publish(req)
}

func (f *fakePublisher) DeletePost(ctx context.Context, externalID string, creds models.Credentials) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, externalID)
	return true
}

func (f *fakePublisher) UpdateCaption(ctx context.Context, externalID, caption string, creds models.Credentials) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, externalID+":"+caption)
	return f.platform != models.PlatformInstagram
}

func failWith(message string) func(publisher.Request) publisher.Result {
	return func(publisher.Request) publisher.Result { return publisher.Result{ErrorMessage: message} }
}

type env struct {
	db          *sql.DB
	posts       repository.PostRepository
	platforms   repository.PostPlatformRepository
	accounts    repository.SocialAccountRepository
	contents    repository.ContentRepository
	credentials CredentialService
	content     ContentService
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db, err := repository.OpenDatabase(repository.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, repository.RunMigrations(db, repository.DriverSQLite))
	t.Cleanup(func() { db.Close() })

	e := &env{
		db:        db,
		posts:     repository.NewPostRepository(db),
		platforms: repository.NewPostPlatformRepository(db),
		accounts:  repository.NewSocialAccountRepository(db),
		contents:  repository.NewContentRepository(db),
	}
	e.credentials = NewCredentialService(testSecretKey, e.accounts)
	e.content = NewContentService(e.contents, nil)
	return e
}

func (e *env) publishing(registry *publisher.Registry, concurrency int) PublishingService {
	return NewPublishingService(e.posts, e.platforms, e.credentials, e.content, registry, PublishingOptions{
		Concurrency:   concurrency,
		TargetTimeout: time.Minute,
		Now:           fixedClock,
	})
}

func (e *env) account(t *testing.T, userID int64, platform models.Platform) int64 {
	t.Helper()
	token, err := utils.Encrypt([]byte("token-"+string(platform)), []byte(testSecretKey))
	require.NoError(t, err)

	id, err := e.accounts.Create(context.Background(), nil, &models.SocialAccount{
		UserID:      userID,
		Platform:    platform,
		AccountID:   "ext-" + string(platform),
		AccountName: string(platform),
		AccessToken: token,
		IsActive:    true,
	})
	require.NoError(t, err)
	return id
}

func (e *env) media(t *testing.T, userID int64, url, mimeType string) int64 {
	t.Helper()
	id, err := e.contents.Create(context.Background(), nil, &models.Content{
		UserID:   userID,
		FileName: "clip",
		FileURL:  url,
		MimeType: mimeType,
	})
	require.NoError(t, err)
	return id
}

func (e *env) post(t *testing.T, userID int64, status models.PostStatus, scheduledFor time.Time, contentID *int64, accountIDs ...int64) int64 {
	t.Helper()
	ctx := context.Background()

	id, err := e.posts.Create(ctx, nil, &models.Post{
		UserID:       userID,
		ContentID:    contentID,
		Caption:      "Spring launch\n#launch",
		ScheduledFor: scheduledFor,
		Status:       status,
		MaxRetries:   3,
	})
	require.NoError(t, err)

	for _, accountID := range accountIDs {
		_, err := e.platforms.Create(ctx, nil, &models.PostPlatform{PostID: id, SocialAccountID: accountID})
		require.NoError(t, err)
	}
	return id
}

func (e *env) load(t *testing.T, postID int64) (*models.Post, []*models.PostPlatform) {
	t.Helper()
	post, err := e.posts.GetByID(context.Background(), postID)
	require.NoError(t, err)
	require.NotNil(t, post)

	targets, err := e.platforms.ListByPostID(context.Background(), nil, postID)
	require.NoError(t, err)
	return post, targets
}
