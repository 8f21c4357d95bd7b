package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/multipost/internal/models"
	"github.com/maheshrc27/multipost/internal/publisher"
	"github.com/maheshrc27/multipost/internal/repository"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/sync/errgroup"
)

const (
	aggregateFailureMessage = "Failed to publish to one or more platforms"
	defaultDueBatchLimit    = 500
)

// PublishingService drives due posts through their platform targets.
type PublishingService interface {
	// PublishPost claims a SCHEDULED post and publishes every pending target.
	// Posts in any other state, or claimed by someone else, are left untouched.
	PublishPost(ctx context.Context, postID int64) error
	// ProcessDuePosts publishes every SCHEDULED post whose time has come and
	// reports how many were picked up.
	ProcessDuePosts(ctx context.Context) (int, error)
}

type PublishingOptions struct {
	// Concurrency bounds how many posts a single pass publishes at once.
	Concurrency   int
	TargetTimeout time.Duration
	BatchLimit    int
	Now           func() time.Time
}

type publishingService struct {
	posts       repository.PostRepository
	platforms   repository.PostPlatformRepository
	credentials CredentialService
	contents    ContentService
	registry    *publisher.Registry
	opts        PublishingOptions
}

func NewPublishingService(
	posts repository.PostRepository,
	platforms repository.PostPlatformRepository,
	credentials CredentialService,
	contents ContentService,
	registry *publisher.Registry,
	opts PublishingOptions) PublishingService {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = defaultDueBatchLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &publishingService{
		posts:       posts,
		platforms:   platforms,
		credentials: credentials,
		contents:    contents,
		registry:    registry,
		opts:        opts,
	}
}

func (s *publishingService) ProcessDuePosts(ctx context.Context) (int, error) {
	due, err := s.posts.ListDue(ctx, s.opts.Now(), s.opts.BatchLimit)
	if err != nil {
		return 0, fmt.Errorf("list due posts: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	slog.Info("processing due posts", "count", len(due), "concurrency", s.opts.Concurrency)

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for _, post := range due {
		postID := post.ID
		g.Go(func() error {
			if err := s.PublishPost(ctx, postID); err != nil {
				slog.Error("publish post failed", "post_id", postID, "error", err)
			}
			return nil
		})
	}
	g.Wait()

	return len(due), nil
}

func (s *publishingService) PublishPost(ctx context.Context, postID int64) error {
	runID, err := gonanoid.New(10)
	if err != nil {
		return err
	}
	log := slog.With("run_id", runID, "post_id", postID)

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return fmt.Errorf("load post: %w", err)
	}
	if post == nil {
		log.Info("post not found, nothing to publish")
		return nil
	}
	if post.Status != models.PostStatusScheduled {
		log.Info("post is not scheduled, skipping", "status", post.Status)
		return nil
	}

	claimed, err := s.posts.Claim(ctx, postID, s.opts.Now())
	if err != nil {
		return fmt.Errorf("claim post: %w", err)
	}
	if !claimed {
		log.Info("post already claimed")
		return nil
	}

	// Outcomes are persisted even when ctx is cancelled mid-run, so the post
	// never stays in PUBLISHING because of a shutdown.
	store := context.WithoutCancel(ctx)

	targets, err := s.platforms.ListByPostID(store, nil, postID)
	if err != nil {
		s.finish(store, log, postID, false, fmt.Sprintf("load targets: %v", err))
		return fmt.Errorf("load targets: %w", err)
	}
	if len(targets) == 0 {
		s.finish(store, log, postID, false, models.ErrNoTargets.Error())
		return nil
	}

	var descriptor *models.ContentDescriptor
	var descriptorErr error
	if post.ContentID != nil {
		descriptor, descriptorErr = s.contents.GetContentDescriptor(ctx, *post.ContentID)
	}

	published := 0
	for _, target := range targets {
		tlog := log.With("target_id", target.ID, "platform", target.Platform)

		if target.Status == models.PostPlatformPublished {
			published++
			continue
		}

		if descriptorErr != nil {
			s.recordFailure(store, tlog, target, fmt.Sprintf("resolve content: %v", descriptorErr))
			continue
		}

		result := s.publishTarget(ctx, post, target, descriptor)
		if !result.Success {
			s.recordFailure(store, tlog, target, result.ErrorMessage)
			continue
		}

		if err := s.platforms.MarkPublished(store, target.ID, result.PlatformPostID, result.PlatformURL, s.opts.Now()); err != nil {
			tlog.Error("persist target outcome", "error", err)
			continue
		}
		tlog.Info("target published", "platform_post_id", result.PlatformPostID)
		published++
	}

	if published == len(targets) {
		s.finish(store, log, postID, true, "")
	} else {
		s.finish(store, log, postID, false, aggregateFailureMessage)
	}
	return nil
}

// publishTarget runs one target under its own deadline. Panics inside a
// publisher are turned into a failed Result.
func (s *publishingService) publishTarget(ctx context.Context, post *models.Post, target *models.PostPlatform, descriptor *models.ContentDescriptor) (result publisher.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = publisher.Result{ErrorMessage: fmt.Sprintf("unexpected error: %v", r)}
		}
	}()

	if s.opts.TargetTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.TargetTimeout)
		defer cancel()
	}

	pub, ok := s.registry.Get(target.Platform)
	if !ok {
		return publisher.Result{ErrorMessage: fmt.Sprintf("%v: %s", models.ErrPublisherNotFound, target.Platform)}
	}

	creds, err := s.credentials.GetDecryptedCredentials(ctx, target.SocialAccountID)
	if err != nil {
		return publisher.Result{ErrorMessage: fmt.Sprintf("resolve credentials: %v", err)}
	}

	req := publisher.Request{
		Caption:      post.Caption,
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
	}
	if descriptor != nil {
		req.MediaURL = descriptor.MediaURL
		req.MimeType = descriptor.MimeType
		req.ThumbnailURL = descriptor.ThumbnailURL
	}
	return pub.Publish(ctx, req)
}

func (s *publishingService) recordFailure(ctx context.Context, log *slog.Logger, target *models.PostPlatform, message string) {
	if message == "" {
		message = "unknown error"
	}
	if err := s.platforms.MarkFailed(ctx, target.ID, message, s.opts.Now()); err != nil {
		log.Error("persist target outcome", "error", err)
		return
	}
	log.Warn("target failed", "error", message)
}

func (s *publishingService) finish(ctx context.Context, log *slog.Logger, postID int64, ok bool, message string) {
	var err error
	if ok {
		err = s.posts.MarkPublished(ctx, postID, s.opts.Now())
	} else {
		err = s.posts.MarkFailed(ctx, postID, message, s.opts.Now())
	}
	if errors.Is(err, models.ErrInvalidTransition) {
		log.Warn("post left publishing before completion")
		return
	}
	if err != nil {
		log.Error("persist post outcome", "error", err)
		return
	}
	if ok {
		log.Info("post published")
	} else {
		log.Warn("post failed", "error", message)
	}
}
