package models

import (
	"errors"
	"time"
)

type PostStatus string

const (
	PostStatusDraft      PostStatus = "draft"
	PostStatusScheduled  PostStatus = "scheduled"
	PostStatusPublishing PostStatus = "publishing"
	PostStatusPublished  PostStatus = "published"
	PostStatusFailed     PostStatus = "failed"
	PostStatusCancelled  PostStatus = "cancelled"
)

var postTransitions = map[PostStatus][]PostStatus{
	PostStatusDraft:      {PostStatusScheduled},
	PostStatusScheduled:  {PostStatusPublishing, PostStatusCancelled, PostStatusScheduled},
	PostStatusPublishing: {PostStatusPublished, PostStatusFailed},
	PostStatusFailed:     {PostStatusScheduled},
}

// CanTransitionTo reports whether the post state machine allows moving from s to next.
// PUBLISHED and CANCELLED have no outgoing edges.
func (s PostStatus) CanTransitionTo(next PostStatus) bool {
	for _, allowed := range postTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s PostStatus) IsTerminal() bool {
	return s == PostStatusPublished || s == PostStatusCancelled
}

func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusDraft, PostStatusScheduled, PostStatusPublishing,
		PostStatusPublished, PostStatusFailed, PostStatusCancelled:
		return true
	}
	return false
}

var AllPostStatuses = []PostStatus{
	PostStatusDraft,
	PostStatusScheduled,
	PostStatusPublishing,
	PostStatusPublished,
	PostStatusFailed,
	PostStatusCancelled,
}

type Post struct {
	ID           int64      `db:"id" json:"id"`
	UserID       int64      `db:"user_id" json:"user_id"`
	ContentID    *int64     `db:"content_id" json:"content_id,omitempty"`
	Caption      string     `db:"caption" json:"caption"`
	ScheduledFor time.Time  `db:"scheduled_for" json:"scheduled_for"`
	Status       PostStatus `db:"status" json:"status"`
	PublishedAt  *time.Time `db:"published_at" json:"published_at,omitempty"`
	ErrorMessage string     `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int        `db:"retry_count" json:"retry_count"`
	MaxRetries   int        `db:"max_retries" json:"max_retries"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`

	Platforms []*PostPlatform `db:"-" json:"platforms,omitempty"`
}

type PostPlatformStatus string

const (
	PostPlatformScheduled PostPlatformStatus = "scheduled"
	PostPlatformPublished PostPlatformStatus = "published"
	PostPlatformFailed    PostPlatformStatus = "failed"
)

// PostPlatform is one publish attempt of a post against a single social account.
type PostPlatform struct {
	ID              int64              `db:"id" json:"id"`
	PostID          int64              `db:"post_id" json:"post_id"`
	SocialAccountID int64              `db:"social_account_id" json:"social_account_id"`
	Status          PostPlatformStatus `db:"status" json:"status"`
	PlatformPostID  string             `db:"platform_post_id" json:"platform_post_id,omitempty"`
	PlatformURL     string             `db:"platform_url" json:"platform_url,omitempty"`
	ErrorMessage    string             `db:"error_message" json:"error_message,omitempty"`
	PublishedAt     *time.Time         `db:"published_at" json:"published_at,omitempty"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `db:"updated_at" json:"updated_at"`

	// joined from social_accounts
	Platform    Platform `db:"platform" json:"platform"`
	AccountName string   `db:"account_name" json:"account_name"`
}

// PostFilter narrows ListByUserID.
type PostFilter struct {
	Status PostStatus
	Limit  int
	Offset int
}

type PostStats struct {
	Total    int                `json:"total"`
	ByStatus map[PostStatus]int `json:"by_status"`
}

var (
	ErrPostNotFound       = errors.New("post not found")
	ErrAccountNotFound    = errors.New("social account not found")
	ErrContentNotFound    = errors.New("content not found")
	ErrInvalidTransition  = errors.New("invalid post status transition")
	ErrRetryLimitReached  = errors.New("maximum retry attempts reached")
	ErrNoTargets          = errors.New("no platform targets configured")
	ErrPublisherNotFound  = errors.New("no publisher registered for platform")
	ErrCredentialsMissing = errors.New("account has no access token")
)
