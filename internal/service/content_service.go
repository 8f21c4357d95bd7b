package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/maheshrc27/multipost/internal/models"
	"github.com/maheshrc27/multipost/internal/repository"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	ErrStorageDisabled  = errors.New("object storage is not configured")
	ErrUnsupportedMedia = errors.New("unsupported media type")
)

var allowedMediaTypes = map[string]struct{}{
	"mp4": {}, "mov": {}, "jpg": {}, "png": {}, "webp": {},
}

// ObjectStore keeps uploaded media and hands out time-limited download URLs.
type ObjectStore interface {
	Upload(ctx context.Context, key string, file []byte, contentType string) error
	PresignGet(ctx context.Context, key string) (string, error)
}

type ContentService interface {
	Upload(ctx context.Context, userID int64, fileName string, file []byte) (*models.Content, error)
	GetContentDescriptor(ctx context.Context, contentID int64) (*models.ContentDescriptor, error)
}

type contentService struct {
	cr    repository.ContentRepository
	store ObjectStore
}

// NewContentService resolves content rows to media URLs. Objects with a storage
// key are presigned when a store is given, otherwise the stored URL is used.
func NewContentService(cr repository.ContentRepository, store ObjectStore) ContentService {
	return &contentService{
		cr:    cr,
		store: store,
	}
}

func (s *contentService) Upload(ctx context.Context, userID int64, fileName string, file []byte) (*models.Content, error) {
	if s.store == nil {
		return nil, ErrStorageDisabled
	}

	kind, err := filetype.Match(file)
	if err != nil || kind == types.Unknown {
		return nil, ErrUnsupportedMedia
	}
	if _, ok := allowedMediaTypes[kind.Extension]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMedia, kind.Extension)
	}

	id, err := gonanoid.New()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	key := id + "." + kind.Extension

	if err := s.store.Upload(ctx, key, file, kind.MIME.Value); err != nil {
		return nil, fmt.Errorf("error uploading file: %w", err)
	}

	content := &models.Content{
		UserID:   userID,
		FileName: fileName,
		FileKey:  key,
		MimeType: kind.MIME.Value,
		FileSize: int64(len(file)),
	}
	content.ID, err = s.cr.Create(ctx, nil, content)
	if err != nil {
		return nil, err
	}
	return content, nil
}

func (s *contentService) GetContentDescriptor(ctx context.Context, contentID int64) (*models.ContentDescriptor, error) {
	content, err := s.cr.GetByID(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, models.ErrContentNotFound
	}

	descriptor := &models.ContentDescriptor{
		MediaURL:     content.FileURL,
		MimeType:     content.MimeType,
		ThumbnailURL: content.ThumbnailURL,
	}

	if s.store != nil && content.FileKey != "" {
		url, err := s.store.PresignGet(ctx, content.FileKey)
		if err != nil {
			if descriptor.MediaURL == "" {
				return nil, err
			}
			slog.Warn("presign failed, using stored url", "content_id", contentID, "error", err)
		} else {
			descriptor.MediaURL = url
		}
	}
	return descriptor, nil
}
