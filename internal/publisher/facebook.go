package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/maheshrc27/multipost/internal/models"
	"github.com/maheshrc27/multipost/internal/transfer"
)

// FacebookPublisher posts synchronously to the first page the token manages.
type FacebookPublisher struct {
	graph graphClient
}

func NewFacebookPublisher(baseURL string, httpClient *http.Client) *FacebookPublisher {
	return &FacebookPublisher{graph: newGraphClient(baseURL, httpClient)}
}

func (p *FacebookPublisher) Platform() models.Platform {
	return models.PlatformFacebook
}

func (p *FacebookPublisher) Publish(ctx context.Context, req Request) Result {
	if req.MediaURL != "" && req.MimeType == "" {
		mimeType, err := detectMimeType(ctx, p.graph.httpClient, req.MediaURL)
		if err != nil {
			return failure(p.Platform(), err)
		}
		req.MimeType = mimeType
	}
	if req.MediaURL != "" && !models.IsVideo(req.MimeType) && !models.IsImage(req.MimeType) {
		return failure(p.Platform(), fmt.Errorf("unsupported media type %q", req.MimeType))
	}

	page, err := p.resolvePage(ctx, req.AccessToken)
	if err != nil {
		return failure(p.Platform(), err)
	}

	pageToken := page.AccessToken
	if pageToken == "" {
		pageToken = req.AccessToken
	}

	var (
		path    string
		payload map[string]any
	)
	switch {
	case models.IsVideo(req.MimeType):
		path = "/" + page.ID + "/videos"
		payload = map[string]any{"file_url": req.MediaURL, "description": req.Caption}
	case req.MediaURL != "":
		path = "/" + page.ID + "/photos"
		payload = map[string]any{"url": req.MediaURL, "caption": req.Caption}
	default:
		path = "/" + page.ID + "/feed"
		payload = map[string]any{"message": req.Caption}
	}
	payload["access_token"] = pageToken

	var created transfer.GraphIDResponse
	if err := p.graph.post(ctx, path, payload, &created); err != nil {
		return failure(p.Platform(), fmt.Errorf("facebook publish: %w", err))
	}
	if created.ID == "" {
		return failure(p.Platform(), errors.New("no post ID returned from Facebook"))
	}

	slog.Info("facebook post published", "page_id", page.ID, "post_id", created.ID)
	return success(created.ID, facebookURL(created.ID))
}

func (p *FacebookPublisher) DeletePost(ctx context.Context, externalID string, creds models.Credentials) bool {
	if err := p.graph.delete(ctx, "/"+externalID, creds.AccessToken); err != nil {
		slog.Info(err.Error())
		return false
	}
	return true
}

func (p *FacebookPublisher) UpdateCaption(ctx context.Context, externalID, caption string, creds models.Credentials) bool {
	payload := map[string]any{"message": caption, "access_token": creds.AccessToken}
	if err := p.graph.post(ctx, "/"+externalID, payload, nil); err != nil {
		slog.Info(err.Error())
		return false
	}
	return true
}

func (p *FacebookPublisher) resolvePage(ctx context.Context, accessToken string) (*transfer.GraphPage, error) {
	var accounts transfer.GraphAccountsResponse
	params := url.Values{
		"fields":       {"id,name,access_token"},
		"access_token": {accessToken},
	}
	if err := p.graph.get(ctx, "/me/accounts", params, &accounts); err != nil {
		return nil, fmt.Errorf("resolve facebook page: %w", err)
	}
	if len(accounts.Data) == 0 || accounts.Data[0].ID == "" {
		return nil, errors.New("No Facebook Page found")
	}
	return &accounts.Data[0], nil
}

func facebookURL(id string) string {
	return "https://www.facebook.com/" + id
}
