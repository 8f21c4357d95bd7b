package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/maheshrc27/multipost/internal/models"
)

type ContentRepository interface {
	Create(ctx context.Context, tx *sql.Tx, content *models.Content) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Content, error)
	CheckByUserID(ctx context.Context, contentID, userID int64) (bool, error)
}

type contentRepository struct {
	db *sql.DB
}

func NewContentRepository(db *sql.DB) ContentRepository {
	return &contentRepository{db: db}
}

func (r *contentRepository) Create(ctx context.Context, tx *sql.Tx, content *models.Content) (int64, error) {
	query := `
		INSERT INTO contents (user_id, file_name, file_key, file_url, mime_type, file_size, thumbnail_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	var id int64
	err := conn(r.db, tx).QueryRowContext(ctx, query,
		content.UserID,
		content.FileName,
		content.FileKey,
		content.FileURL,
		content.MimeType,
		content.FileSize,
		content.ThumbnailURL,
		time.Now().UTC(),
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *contentRepository) GetByID(ctx context.Context, id int64) (*models.Content, error) {
	query := `SELECT id, user_id, file_name, file_key, file_url, mime_type, file_size, thumbnail_url, created_at
		FROM contents WHERE id = $1`

	var c models.Content
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.UserID, &c.FileName, &c.FileKey, &c.FileURL,
		&c.MimeType, &c.FileSize, &c.ThumbnailURL, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &c, nil
}

func (r *contentRepository) CheckByUserID(ctx context.Context, contentID, userID int64) (bool, error) {
	query := "SELECT 1 FROM contents WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, contentID, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}
	return result == 1, nil
}
