// Package publisher holds the per-platform publishing protocols.
//
// A Publisher never returns an error for expected platform failures (rejected
// tokens, unsupported media, processing timeouts). Those come back as a Result
// with Success=false and a readable ErrorMessage.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/maheshrc27/multipost/internal/models"
)

type Request struct {
	Caption      string
	MediaURL     string
	MimeType     string
	ThumbnailURL string
	AccessToken  string
	RefreshToken string
}

func (r Request) Credentials() models.Credentials {
	return models.Credentials{AccessToken: r.AccessToken, RefreshToken: r.RefreshToken}
}

type Result struct {
	Success        bool
	PlatformPostID string
	PlatformURL    string
	ErrorMessage   string
}

func success(id, url string) Result {
	return Result{Success: true, PlatformPostID: id, PlatformURL: url}
}

func failure(platform models.Platform, err error) Result {
	slog.Error("publish failed", "platform", platform, "error", err)
	return Result{ErrorMessage: err.Error()}
}

type Publisher interface {
	Platform() models.Platform
	Publish(ctx context.Context, req Request) Result
	// DeletePost and UpdateCaption report false when the platform rejects the
	// call or does not support it after publication.
	DeletePost(ctx context.Context, externalID string, creds models.Credentials) bool
	UpdateCaption(ctx context.Context, externalID, caption string, creds models.Credentials) bool
}

// Registry resolves publishers by platform key. It is built once at startup.
type Registry struct {
	publishers map[models.Platform]Publisher
}

func NewRegistry(publishers ...Publisher) *Registry {
	r := &Registry{publishers: make(map[models.Platform]Publisher, len(publishers))}
	for _, p := range publishers {
		r.publishers[p.Platform()] = p
	}
	return r
}

func (r *Registry) Get(platform models.Platform) (Publisher, bool) {
	p, ok := r.publishers[platform]
	return p, ok
}

func (r *Registry) Platforms() []models.Platform {
	platforms := make([]models.Platform, 0, len(r.publishers))
	for p := range r.publishers {
		platforms = append(platforms, p)
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })
	return platforms
}

var (
	errNoMedia   = errors.New("no media attached to post")
	errNeedVideo = errors.New("platform only accepts video content")
)

func logUnsupported(platform models.Platform, op string) {
	slog.Warn("operation not supported by platform", "platform", platform, "operation", op)
}

// firstLineTitle derives a title from the first caption line, cut to max runes
// with a trailing ellipsis.
func firstLineTitle(caption string, max int) string {
	line, _, _ := strings.Cut(caption, "\n")
	line = strings.TrimSpace(line)
	if utf8.RuneCountInString(line) <= max {
		return line
	}
	runes := []rune(line)
	return string(runes[:max-3]) + "..."
}
