package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/maheshrc27/multipost/internal/models"
)

type PostPlatformRepository interface {
	Create(ctx context.Context, tx *sql.Tx, pp *models.PostPlatform) (int64, error)
	ListByPostID(ctx context.Context, tx *sql.Tx, postID int64) ([]*models.PostPlatform, error)
	MarkPublished(ctx context.Context, id int64, platformPostID, platformURL string, publishedAt time.Time) error
	MarkFailed(ctx context.Context, id int64, message string, now time.Time) error
	ResetFailed(ctx context.Context, tx *sql.Tx, postID int64, now time.Time) (int64, error)
}

type postPlatformRepository struct {
	db *sql.DB
}

func NewPostPlatformRepository(db *sql.DB) PostPlatformRepository {
	return &postPlatformRepository{db: db}
}

func (r *postPlatformRepository) Create(ctx context.Context, tx *sql.Tx, pp *models.PostPlatform) (int64, error) {
	query := `
		INSERT INTO post_platforms (post_id, social_account_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id
	`

	status := pp.Status
	if status == "" {
		status = models.PostPlatformScheduled
	}

	var id int64
	err := conn(r.db, tx).QueryRowContext(ctx, query, pp.PostID, pp.SocialAccountID, status, time.Now().UTC()).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

// ListByPostID returns the post's targets in creation order, joined with their account.
func (r *postPlatformRepository) ListByPostID(ctx context.Context, tx *sql.Tx, postID int64) ([]*models.PostPlatform, error) {
	query := `
		SELECT pp.id, pp.post_id, pp.social_account_id, pp.status, pp.platform_post_id, pp.platform_url,
			pp.error_message, pp.published_at, pp.created_at, pp.updated_at,
			COALESCE(sa.platform, ''), COALESCE(sa.account_name, '')
		FROM post_platforms pp
		LEFT JOIN social_accounts sa ON sa.id = pp.social_account_id
		WHERE pp.post_id = $1
		ORDER BY pp.id ASC
	`

	rows, err := conn(r.db, tx).QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var platforms []*models.PostPlatform
	for rows.Next() {
		var pp models.PostPlatform
		var publishedAt sql.NullTime
		err := rows.Scan(&pp.ID, &pp.PostID, &pp.SocialAccountID, &pp.Status, &pp.PlatformPostID, &pp.PlatformURL,
			&pp.ErrorMessage, &publishedAt, &pp.CreatedAt, &pp.UpdatedAt,
			&pp.Platform, &pp.AccountName)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		if publishedAt.Valid {
			t := publishedAt.Time
			pp.PublishedAt = &t
		}
		platforms = append(platforms, &pp)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return platforms, nil
}

func (r *postPlatformRepository) MarkPublished(ctx context.Context, id int64, platformPostID, platformURL string, publishedAt time.Time) error {
	query := `
		UPDATE post_platforms
		SET status = $1,
			platform_post_id = $2,
			platform_url = $3,
			error_message = '',
			published_at = $4,
			updated_at = $4
		WHERE id = $5 AND status = $6
	`
	return r.update(ctx, query, models.PostPlatformPublished, platformPostID, platformURL, publishedAt.UTC(), id, models.PostPlatformScheduled)
}

func (r *postPlatformRepository) MarkFailed(ctx context.Context, id int64, message string, now time.Time) error {
	query := `
		UPDATE post_platforms
		SET status = $1,
			error_message = $2,
			updated_at = $3
		WHERE id = $4 AND status = $5
	`
	return r.update(ctx, query, models.PostPlatformFailed, message, now.UTC(), id, models.PostPlatformScheduled)
}

// ResetFailed puts FAILED targets back to SCHEDULED for a new attempt.
// PUBLISHED targets are left untouched.
func (r *postPlatformRepository) ResetFailed(ctx context.Context, tx *sql.Tx, postID int64, now time.Time) (int64, error) {
	query := `
		UPDATE post_platforms
		SET status = $1,
			error_message = '',
			updated_at = $2
		WHERE post_id = $3 AND status = $4
	`
	result, err := conn(r.db, tx).ExecContext(ctx, query, models.PostPlatformScheduled, now.UTC(), postID, models.PostPlatformFailed)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return result.RowsAffected()
}

func (r *postPlatformRepository) update(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		return models.ErrInvalidTransition
	}
	return nil
}
