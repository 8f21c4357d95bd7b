package publisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/maheshrc27/multipost/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const (
	youtubeTitleLength = 100
	youtubeCategoryID  = "22"
	youtubeUntitled    = "Untitled video"
)

var (
	driveFileIDPattern = regexp.MustCompile(`[-\w]{25,}`)
	hashtagPattern     = regexp.MustCompile(`#(\w+)`)

	errInvalidDriveURL = errors.New("Invalid Google Drive URL")
)

// YoutubeConfig carries the OAuth client used to refresh expired tokens and
// optional endpoint overrides.
type YoutubeConfig struct {
	ClientID      string
	ClientSecret  string
	Endpoint      string
	DriveEndpoint string
	HTTPClient    *http.Client
}

// YoutubePublisher streams the source video into a resumable YouTube upload.
// Sources hosted on Google Drive are read through the Drive API with the same
// credentials, anything else is downloaded first.
type YoutubePublisher struct {
	cfg YoutubeConfig
}

func NewYoutubePublisher(cfg YoutubeConfig) *YoutubePublisher {
	return &YoutubePublisher{cfg: cfg}
}

func (p *YoutubePublisher) Platform() models.Platform {
	return models.PlatformYoutube
}

func (p *YoutubePublisher) Publish(ctx context.Context, req Request) Result {
	if req.MediaURL == "" {
		return failure(p.Platform(), errNoMedia)
	}
	if req.MimeType != "" && !models.IsVideo(req.MimeType) {
		return failure(p.Platform(), errNeedVideo)
	}

	client := p.authorizedClient(ctx, req.Credentials())

	source, err := p.openSource(ctx, client, req)
	if err != nil {
		return failure(p.Platform(), err)
	}
	defer source.Close()

	service, err := p.youtubeService(ctx, client)
	if err != nil {
		return failure(p.Platform(), err)
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       youtubeTitle(req.Caption),
			Description: req.Caption,
			Tags:        hashtags(req.Caption),
			CategoryId:  youtubeCategoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: "public",
		},
	}

	uploaded, err := service.Videos.Insert([]string{"snippet", "status"}, video).
		Media(source).
		Context(ctx).
		Do()
	if err != nil {
		return failure(p.Platform(), fmt.Errorf("youtube upload: %w", err))
	}
	if uploaded.Id == "" {
		return failure(p.Platform(), errors.New("no video ID returned from YouTube"))
	}

	slog.Info("youtube video uploaded", "video_id", uploaded.Id)
	return success(uploaded.Id, youtubeURL(uploaded.Id))
}

func (p *YoutubePublisher) DeletePost(ctx context.Context, externalID string, creds models.Credentials) bool {
	service, err := p.youtubeService(ctx, p.authorizedClient(ctx, creds))
	if err != nil {
		slog.Info(err.Error())
		return false
	}
	if err := service.Videos.Delete(externalID).Context(ctx).Do(); err != nil {
		slog.Info(err.Error())
		return false
	}
	return true
}

// UpdateCaption rewrites the description. YouTube replaces the whole snippet
// on update, so the current one is read first.
func (p *YoutubePublisher) UpdateCaption(ctx context.Context, externalID, caption string, creds models.Credentials) bool {
	service, err := p.youtubeService(ctx, p.authorizedClient(ctx, creds))
	if err != nil {
		slog.Info(err.Error())
		return false
	}

	list, err := service.Videos.List([]string{"snippet"}).Id(externalID).Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error())
		return false
	}
	if len(list.Items) == 0 || list.Items[0].Snippet == nil {
		slog.Info("youtube video not found", "video_id", externalID)
		return false
	}

	snippet := list.Items[0].Snippet
	snippet.Description = caption
	if snippet.CategoryId == "" {
		snippet.CategoryId = youtubeCategoryID
	}

	update := &youtube.Video{Id: externalID, Snippet: snippet}
	if _, err := service.Videos.Update([]string{"snippet"}, update).Context(ctx).Do(); err != nil {
		slog.Info(err.Error())
		return false
	}
	return true
}

// authorizedClient wraps the stored token. With a configured OAuth client and
// a refresh token an expired access token is refreshed on use.
func (p *YoutubePublisher) authorizedClient(ctx context.Context, creds models.Credentials) *http.Client {
	if p.cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.cfg.HTTPClient)
	}

	token := &oauth2.Token{AccessToken: creds.AccessToken, RefreshToken: creds.RefreshToken}
	if p.cfg.ClientID == "" || creds.RefreshToken == "" {
		return oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	}

	conf := &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		Scopes:       []string{youtube.YoutubeUploadScope, drive.DriveReadonlyScope},
		Endpoint:     google.Endpoint,
	}
	return conf.Client(ctx, token)
}

func (p *YoutubePublisher) youtubeService(ctx context.Context, client *http.Client) (*youtube.Service, error) {
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if p.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(p.cfg.Endpoint))
	}
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating YouTube service: %w", err)
	}
	return service, nil
}

func (p *YoutubePublisher) openSource(ctx context.Context, client *http.Client, req Request) (io.ReadCloser, error) {
	if isDriveURL(req.MediaURL) {
		return p.openDriveFile(ctx, client, req.MediaURL)
	}

	httpClient := p.cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	media, err := downloadMedia(ctx, httpClient, req.MediaURL, req.MimeType)
	if err != nil {
		return nil, err
	}
	if !models.IsVideo(media.MimeType) {
		media.Remove()
		return nil, errNeedVideo
	}
	return media.Open()
}

func (p *YoutubePublisher) openDriveFile(ctx context.Context, client *http.Client, mediaURL string) (io.ReadCloser, error) {
	fileID, err := driveFileID(mediaURL)
	if err != nil {
		return nil, err
	}

	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if p.cfg.DriveEndpoint != "" {
		opts = append(opts, option.WithEndpoint(p.cfg.DriveEndpoint))
	}
	service, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating Drive service: %w", err)
	}

	resp, err := service.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("drive download: %w", err)
	}
	return resp.Body, nil
}

func isDriveURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "drive.google.com" || host == "docs.google.com"
}

func driveFileID(raw string) (string, error) {
	if u, err := url.Parse(raw); err == nil {
		if id := u.Query().Get("id"); id != "" {
			return id, nil
		}
	}
	id := driveFileIDPattern.FindString(raw)
	if id == "" {
		return "", errInvalidDriveURL
	}
	return id, nil
}

func youtubeTitle(caption string) string {
	title := firstLineTitle(caption, youtubeTitleLength)
	if title == "" {
		return youtubeUntitled
	}
	return title
}

func hashtags(caption string) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, m := range hashtagPattern.FindAllStringSubmatch(caption, -1) {
		tag := m[1]
		if seen[strings.ToLower(tag)] {
			continue
		}
		seen[strings.ToLower(tag)] = true
		tags = append(tags, tag)
	}
	return tags
}

func youtubeURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}
