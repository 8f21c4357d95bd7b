package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/maheshrc27/multipost/internal/models"
	"github.com/maheshrc27/multipost/internal/publisher"
	"github.com/maheshrc27/multipost/internal/repository"
	"github.com/maheshrc27/multipost/internal/transfer"
)

const upcomingWindow = 7 * 24 * time.Hour

var ErrValidation = errors.New("invalid request")

// PublishEnqueuer hands a post to the background worker.
type PublishEnqueuer interface {
	EnqueuePublish(ctx context.Context, postID int64) error
}

type PostService interface {
	Create(ctx context.Context, userID int64, pc *transfer.PostCreation) (int64, error)
	List(ctx context.Context, userID int64, filter models.PostFilter) ([]*models.Post, error)
	Info(ctx context.Context, userID, postID int64) (*models.Post, error)
	Stats(ctx context.Context, userID int64) (*models.PostStats, error)
	Upcoming(ctx context.Context, userID int64) ([]*models.Post, error)

	Cancel(ctx context.Context, userID, postID int64) error
	Retry(ctx context.Context, userID, postID int64) error
	Reschedule(ctx context.Context, userID, postID int64, scheduledFor time.Time) error
	UpdateCaption(ctx context.Context, userID, postID int64, caption string) error
	Remove(ctx context.Context, userID, postID int64, unpublish bool) error
	PublishNow(ctx context.Context, userID, postID int64) error
}

type PostServiceOptions struct {
	DefaultMaxRetries int
	Now               func() time.Time
}

type postService struct {
	db          *sql.DB
	pr          repository.PostRepository
	pp          repository.PostPlatformRepository
	ac          repository.SocialAccountRepository
	cr          repository.ContentRepository
	credentials CredentialService
	registry    *publisher.Registry
	publishing  PublishingService
	enqueuer    PublishEnqueuer
	validate    *validator.Validate
	opts        PostServiceOptions
}

// NewPostService wires the owner actions. enqueuer may be nil, in which case
// PublishNow publishes synchronously.
func NewPostService(
	db *sql.DB,
	pr repository.PostRepository,
	pp repository.PostPlatformRepository,
	ac repository.SocialAccountRepository,
	cr repository.ContentRepository,
	credentials CredentialService,
	registry *publisher.Registry,
	publishing PublishingService,
	enqueuer PublishEnqueuer,
	opts PostServiceOptions) PostService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &postService{
		db:          db,
		pr:          pr,
		pp:          pp,
		ac:          ac,
		cr:          cr,
		credentials: credentials,
		registry:    registry,
		publishing:  publishing,
		enqueuer:    enqueuer,
		validate:    validator.New(),
		opts:        opts,
	}
}

func (s *postService) Create(ctx context.Context, userID int64, pc *transfer.PostCreation) (postID int64, err error) {
	if pc == nil {
		return 0, fmt.Errorf("%w: empty request", ErrValidation)
	}
	if err := s.validate.Struct(pc); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	accountIDs := uniqueIDs(pc.SocialAccountIDs)
	for _, accountID := range accountIDs {
		exists, err := s.ac.CheckByUserID(ctx, accountID, userID)
		if err != nil {
			return 0, fmt.Errorf("error checking social account %d: %w", accountID, err)
		}
		if !exists {
			return 0, fmt.Errorf("%w: %d", models.ErrAccountNotFound, accountID)
		}
	}

	if pc.ContentID != nil {
		exists, err := s.cr.CheckByUserID(ctx, *pc.ContentID, userID)
		if err != nil {
			return 0, fmt.Errorf("error checking content: %w", err)
		}
		if !exists {
			return 0, models.ErrContentNotFound
		}
	}

	maxRetries := s.opts.DefaultMaxRetries
	if pc.MaxRetries != nil {
		maxRetries = *pc.MaxRetries
	}
	status := models.PostStatusScheduled
	if pc.Draft {
		status = models.PostStatusDraft
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	postID, err = s.pr.Create(ctx, tx, &models.Post{
		UserID:       userID,
		ContentID:    pc.ContentID,
		Caption:      pc.Caption,
		ScheduledFor: pc.ScheduledFor,
		Status:       status,
		MaxRetries:   maxRetries,
	})
	if err != nil {
		return 0, fmt.Errorf("error creating post: %w", err)
	}

	for _, accountID := range accountIDs {
		target := &models.PostPlatform{PostID: postID, SocialAccountID: accountID}
		if _, err = s.pp.Create(ctx, tx, target); err != nil {
			return 0, fmt.Errorf("error saving target %d: %w", accountID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Info("post created", "post_id", postID, "status", status, "targets", len(accountIDs))
	return postID, nil
}

func (s *postService) List(ctx context.Context, userID int64, filter models.PostFilter) ([]*models.Post, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, filter.Status)
	}
	return s.pr.ListByUserID(ctx, userID, filter)
}

func (s *postService) Info(ctx context.Context, userID, postID int64) (*models.Post, error) {
	post, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return nil, err
	}

	post.Platforms, err = s.pp.ListByPostID(ctx, nil, postID)
	if err != nil {
		return nil, err
	}
	return post, nil
}

func (s *postService) Stats(ctx context.Context, userID int64) (*models.PostStats, error) {
	counts, err := s.pr.CountByStatus(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &models.PostStats{ByStatus: make(map[models.PostStatus]int, len(models.AllPostStatuses))}
	for _, status := range models.AllPostStatuses {
		stats.ByStatus[status] = counts[status]
		stats.Total += counts[status]
	}
	return stats, nil
}

func (s *postService) Upcoming(ctx context.Context, userID int64) ([]*models.Post, error) {
	now := s.opts.Now()
	return s.pr.ListUpcoming(ctx, userID, now, now.Add(upcomingWindow))
}

func (s *postService) Cancel(ctx context.Context, userID, postID int64) error {
	if _, err := s.ownedPost(ctx, userID, postID); err != nil {
		return err
	}

	ok, err := s.pr.Cancel(ctx, postID, s.opts.Now())
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrInvalidTransition
	}
	slog.Info("post cancelled", "post_id", postID)
	return nil
}

// Retry puts a FAILED post back into the schedule. Only its failed targets are
// attempted again.
func (s *postService) Retry(ctx context.Context, userID, postID int64) error {
	post, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return err
	}
	if post.Status == models.PostStatusFailed && post.RetryCount >= post.MaxRetries {
		return models.ErrRetryLimitReached
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		now := s.opts.Now()
		ok, err := s.pr.Retry(ctx, tx, postID, now)
		if err != nil {
			return err
		}
		if !ok {
			return s.retryRejection(ctx, tx, postID)
		}
		_, err = s.pp.ResetFailed(ctx, tx, postID, now)
		return err
	})
	if err != nil {
		return err
	}
	slog.Info("post queued for retry", "post_id", postID, "retry_count", post.RetryCount+1)
	return nil
}

func (s *postService) Reschedule(ctx context.Context, userID, postID int64, scheduledFor time.Time) error {
	if scheduledFor.IsZero() {
		return fmt.Errorf("%w: scheduled time is required", ErrValidation)
	}
	if _, err := s.ownedPost(ctx, userID, postID); err != nil {
		return err
	}

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		now := s.opts.Now()
		ok, err := s.pr.Reschedule(ctx, tx, postID, scheduledFor, now)
		if err != nil {
			return err
		}
		if !ok {
			return models.ErrInvalidTransition
		}
		_, err = s.pp.ResetFailed(ctx, tx, postID, now)
		return err
	})
	if err != nil {
		return err
	}
	slog.Info("post rescheduled", "post_id", postID, "scheduled_for", scheduledFor.UTC())
	return nil
}

// UpdateCaption stores the new caption and, for published posts, pushes it to
// every platform that accepted the post.
func (s *postService) UpdateCaption(ctx context.Context, userID, postID int64, caption string) error {
	if err := s.validate.Struct(&transfer.CaptionUpdate{Caption: caption}); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	post, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return err
	}

	ok, err := s.pr.UpdateCaption(ctx, postID, caption, s.opts.Now())
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrInvalidTransition
	}

	if post.Status != models.PostStatusPublished {
		return nil
	}
	s.forEachPublishedTarget(ctx, postID, func(pub publisher.Publisher, target *models.PostPlatform, creds models.Credentials) {
		if !pub.UpdateCaption(ctx, target.PlatformPostID, caption, creds) {
			slog.Warn("caption not updated on platform", "post_id", postID, "target_id", target.ID, "platform", target.Platform)
		}
	})
	return nil
}

// Remove deletes the post and its targets. With unpublish set, published
// targets are first deleted from their platforms on a best-effort basis.
func (s *postService) Remove(ctx context.Context, userID, postID int64, unpublish bool) error {
	post, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return err
	}
	if post.Status == models.PostStatusPublishing {
		return models.ErrInvalidTransition
	}

	if unpublish {
		s.forEachPublishedTarget(ctx, postID, func(pub publisher.Publisher, target *models.PostPlatform, creds models.Credentials) {
			if !pub.DeletePost(ctx, target.PlatformPostID, creds) {
				slog.Warn("post not deleted on platform", "post_id", postID, "target_id", target.ID, "platform", target.Platform)
			}
		})
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		return s.pr.Remove(ctx, tx, postID)
	})
	if err != nil {
		return err
	}
	slog.Info("post removed", "post_id", postID, "unpublish", unpublish)
	return nil
}

func (s *postService) PublishNow(ctx context.Context, userID, postID int64) error {
	post, err := s.ownedPost(ctx, userID, postID)
	if err != nil {
		return err
	}
	if post.Status != models.PostStatusScheduled {
		return models.ErrInvalidTransition
	}

	if s.enqueuer != nil {
		return s.enqueuer.EnqueuePublish(ctx, postID)
	}
	return s.publishing.PublishPost(ctx, postID)
}

func (s *postService) ownedPost(ctx context.Context, userID, postID int64) (*models.Post, error) {
	if postID <= 0 {
		return nil, models.ErrPostNotFound
	}
	owned, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, models.ErrPostNotFound
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, models.ErrPostNotFound
	}
	return post, nil
}

// retryRejection explains why the conditional retry update matched nothing.
// The post is re-read inside tx since the state may have moved since ownedPost.
func (s *postService) retryRejection(ctx context.Context, tx *sql.Tx, postID int64) error {
	var (
		status                 models.PostStatus
		retryCount, maxRetries int
	)
	err := tx.QueryRowContext(ctx, `SELECT status, retry_count, max_retries FROM posts WHERE id = $1`, postID).
		Scan(&status, &retryCount, &maxRetries)
	if err == sql.ErrNoRows {
		return models.ErrPostNotFound
	}
	if err != nil {
		return err
	}
	if status == models.PostStatusFailed && retryCount >= maxRetries {
		return models.ErrRetryLimitReached
	}
	return models.ErrInvalidTransition
}

func (s *postService) forEachPublishedTarget(ctx context.Context, postID int64, fn func(publisher.Publisher, *models.PostPlatform, models.Credentials)) {
	targets, err := s.pp.ListByPostID(ctx, nil, postID)
	if err != nil {
		slog.Error("load targets", "post_id", postID, "error", err)
		return
	}

	for _, target := range targets {
		if target.Status != models.PostPlatformPublished || target.PlatformPostID == "" {
			continue
		}
		pub, ok := s.registry.Get(target.Platform)
		if !ok {
			slog.Warn("no publisher for platform", "platform", target.Platform)
			continue
		}
		creds, err := s.credentials.GetDecryptedCredentials(ctx, target.SocialAccountID)
		if err != nil {
			slog.Warn("resolve credentials", "target_id", target.ID, "error", err)
			continue
		}
		fn(pub, target, *creds)
	}
}

func (s *postService) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
