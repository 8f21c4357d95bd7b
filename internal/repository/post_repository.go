package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/maheshrc27/multipost/internal/models"
)

type PostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	ListByUserID(ctx context.Context, userID int64, filter models.PostFilter) ([]*models.Post, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Post, error)
	ListUpcoming(ctx context.Context, userID int64, from, to time.Time) ([]*models.Post, error)
	CountByStatus(ctx context.Context, userID int64) (map[models.PostStatus]int, error)
	CheckByUserID(ctx context.Context, postID, userID int64) (bool, error)

	// Claim moves a SCHEDULED post to PUBLISHING. It reports false when another
	// caller already claimed the post or it is no longer SCHEDULED.
	Claim(ctx context.Context, id int64, now time.Time) (bool, error)
	MarkPublished(ctx context.Context, id int64, publishedAt time.Time) error
	MarkFailed(ctx context.Context, id int64, message string, now time.Time) error

	Cancel(ctx context.Context, id int64, now time.Time) (bool, error)
	Retry(ctx context.Context, tx *sql.Tx, id int64, now time.Time) (bool, error)
	Reschedule(ctx context.Context, tx *sql.Tx, id int64, scheduledFor, now time.Time) (bool, error)
	UpdateCaption(ctx context.Context, id int64, caption string, now time.Time) (bool, error)
	Remove(ctx context.Context, tx *sql.Tx, id int64) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, content_id, caption, scheduled_for, status, published_at,
	error_message, retry_count, max_retries, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var (
		post        models.Post
		contentID   sql.NullInt64
		publishedAt sql.NullTime
	)
	err := row.Scan(&post.ID, &post.UserID, &contentID, &post.Caption, &post.ScheduledFor, &post.Status,
		&publishedAt, &post.ErrorMessage, &post.RetryCount, &post.MaxRetries, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if contentID.Valid {
		id := contentID.Int64
		post.ContentID = &id
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		post.PublishedAt = &t
	}
	return &post, nil
}

func collectPosts(rows *sql.Rows) ([]*models.Post, error) {
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (user_id, content_id, caption, scheduled_for, status, retry_count, max_retries, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	now := time.Now().UTC()
	var id int64
	err := conn(r.db, tx).QueryRowContext(ctx, query,
		post.UserID,
		nullableID(post.ContentID),
		post.Caption,
		post.ScheduledFor.UTC(),
		post.Status,
		post.RetryCount,
		post.MaxRetries,
		now,
		now,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) ListByUserID(ctx context.Context, userID int64, filter models.PostFilter) ([]*models.Post, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1`
	args := []any{userID}
	if filter.Status != "" {
		query += ` AND status = $2 ORDER BY scheduled_for DESC, id DESC LIMIT $3 OFFSET $4`
		args = append(args, filter.Status, limit, offset)
	} else {
		query += ` ORDER BY scheduled_for DESC, id DESC LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return collectPosts(rows)
}

func (r *postRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE status = $1 AND scheduled_for <= $2
		ORDER BY scheduled_for ASC, id ASC
		LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, models.PostStatusScheduled, now.UTC(), limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return collectPosts(rows)
}

func (r *postRepository) ListUpcoming(ctx context.Context, userID int64, from, to time.Time) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE user_id = $1 AND status = $2 AND scheduled_for >= $3 AND scheduled_for <= $4
		ORDER BY scheduled_for ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, userID, models.PostStatusScheduled, from.UTC(), to.UTC())
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return collectPosts(rows)
}

func (r *postRepository) CountByStatus(ctx context.Context, userID int64) (map[models.PostStatus]int, error) {
	query := `SELECT status, COUNT(*) FROM posts WHERE user_id = $1 GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.PostStatus]int)
	for rows.Next() {
		var status models.PostStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *postRepository) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	query := "SELECT 1 FROM posts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, postID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *postRepository) Claim(ctx context.Context, id int64, now time.Time) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			error_message = '',
			updated_at = $2
		WHERE id = $3 AND status = $4
	`
	return r.execAffected(ctx, r.db, query, models.PostStatusPublishing, now.UTC(), id, models.PostStatusScheduled)
}

func (r *postRepository) MarkPublished(ctx context.Context, id int64, publishedAt time.Time) error {
	query := `
		UPDATE posts
		SET status = $1,
			published_at = $2,
			error_message = '',
			updated_at = $2
		WHERE id = $3 AND status = $4
	`
	ok, err := r.execAffected(ctx, r.db, query, models.PostStatusPublished, publishedAt.UTC(), id, models.PostStatusPublishing)
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrInvalidTransition
	}
	return nil
}

func (r *postRepository) MarkFailed(ctx context.Context, id int64, message string, now time.Time) error {
	query := `
		UPDATE posts
		SET status = $1,
			error_message = $2,
			published_at = NULL,
			updated_at = $3
		WHERE id = $4 AND status = $5
	`
	ok, err := r.execAffected(ctx, r.db, query, models.PostStatusFailed, message, now.UTC(), id, models.PostStatusPublishing)
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrInvalidTransition
	}
	return nil
}

func (r *postRepository) Cancel(ctx context.Context, id int64, now time.Time) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			updated_at = $2
		WHERE id = $3 AND status = $4
	`
	return r.execAffected(ctx, r.db, query, models.PostStatusCancelled, now.UTC(), id, models.PostStatusScheduled)
}

func (r *postRepository) Retry(ctx context.Context, tx *sql.Tx, id int64, now time.Time) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			retry_count = retry_count + 1,
			error_message = '',
			updated_at = $2
		WHERE id = $3 AND status = $4 AND retry_count < max_retries
	`
	return r.execAffected(ctx, conn(r.db, tx), query, models.PostStatusScheduled, now.UTC(), id, models.PostStatusFailed)
}

func (r *postRepository) Reschedule(ctx context.Context, tx *sql.Tx, id int64, scheduledFor, now time.Time) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			scheduled_for = $2,
			error_message = '',
			updated_at = $3
		WHERE id = $4 AND status IN ($5, $1, $6)
	`
	return r.execAffected(ctx, conn(r.db, tx), query,
		models.PostStatusScheduled, scheduledFor.UTC(), now.UTC(), id, models.PostStatusDraft, models.PostStatusFailed)
}

func (r *postRepository) UpdateCaption(ctx context.Context, id int64, caption string, now time.Time) (bool, error) {
	query := `
		UPDATE posts
		SET caption = $1,
			updated_at = $2
		WHERE id = $3 AND status NOT IN ($4, $5)
	`
	return r.execAffected(ctx, r.db, query, caption, now.UTC(), id, models.PostStatusPublishing, models.PostStatusCancelled)
}

func (r *postRepository) Remove(ctx context.Context, tx *sql.Tx, id int64) error {
	q := conn(r.db, tx)

	if _, err := q.ExecContext(ctx, `DELETE FROM post_platforms WHERE post_id = $1`, id); err != nil {
		slog.Info(err.Error())
		return err
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) execAffected(ctx context.Context, q dbtx, query string, args ...any) (bool, error) {
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}
