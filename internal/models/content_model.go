package models

import (
	"strings"
	"time"
)

// Content is an imported media file stored in R2.
type Content struct {
	ID           int64     `db:"id" json:"id"`
	UserID       int64     `db:"user_id" json:"user_id"`
	FileName     string    `db:"file_name" json:"file_name"`
	FileKey      string    `db:"file_key" json:"file_key"`
	FileURL      string    `db:"file_url" json:"file_url"`
	MimeType     string    `db:"mime_type" json:"mime_type"`
	FileSize     int64     `db:"file_size" json:"file_size"`
	ThumbnailURL string    `db:"thumbnail_url" json:"thumbnail_url"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// ContentDescriptor is the resolved media reference used to build a publish request.
type ContentDescriptor struct {
	MediaURL     string
	MimeType     string
	ThumbnailURL string
}

func IsVideo(mimeType string) bool {
	return strings.HasPrefix(mimeType, "video/")
}

func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}
