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

var (
	errMediaProcessingFailed  = errors.New("Media processing failed")
	errMediaProcessingTimeout = errors.New("Media processing timeout")
)

// InstagramPublisher publishes through a media container that is polled until
// Instagram finishes processing it.
type InstagramPublisher struct {
	graph  graphClient
	poller Poller
}

func NewInstagramPublisher(baseURL string, httpClient *http.Client, poller Poller) *InstagramPublisher {
	return &InstagramPublisher{graph: newGraphClient(baseURL, httpClient), poller: poller}
}

func (p *InstagramPublisher) Platform() models.Platform {
	return models.PlatformInstagram
}

func (p *InstagramPublisher) Publish(ctx context.Context, req Request) Result {
	if req.MediaURL == "" {
		return failure(p.Platform(), errNoMedia)
	}

	igAccountID, err := p.resolveBusinessAccount(ctx, req.AccessToken)
	if err != nil {
		return failure(p.Platform(), err)
	}

	containerID, err := p.createContainer(ctx, igAccountID, req)
	if err != nil {
		return failure(p.Platform(), err)
	}

	if err := p.waitForContainer(ctx, containerID, req.AccessToken); err != nil {
		return failure(p.Platform(), err)
	}

	var published transfer.GraphIDResponse
	payload := map[string]any{"creation_id": containerID, "access_token": req.AccessToken}
	if err := p.graph.post(ctx, "/"+igAccountID+"/media_publish", payload, &published); err != nil {
		return failure(p.Platform(), fmt.Errorf("instagram publish: %w", err))
	}
	if published.ID == "" {
		return failure(p.Platform(), errors.New("no media ID returned from Instagram"))
	}

	slog.Info("instagram media published", "ig_account_id", igAccountID, "media_id", published.ID)
	return success(published.ID, p.permalink(ctx, published.ID, req.AccessToken))
}

// DeletePost is attempted against the Graph API, which refuses it for most media.
func (p *InstagramPublisher) DeletePost(ctx context.Context, externalID string, creds models.Credentials) bool {
	if err := p.graph.delete(ctx, "/"+externalID, creds.AccessToken); err != nil {
		slog.Info(err.Error())
		return false
	}
	return true
}

func (p *InstagramPublisher) UpdateCaption(ctx context.Context, externalID, caption string, creds models.Credentials) bool {
	logUnsupported(p.Platform(), "update_caption")
	return false
}

func (p *InstagramPublisher) resolveBusinessAccount(ctx context.Context, accessToken string) (string, error) {
	var accounts transfer.GraphAccountsResponse
	params := url.Values{
		"fields":       {"instagram_business_account"},
		"access_token": {accessToken},
	}
	if err := p.graph.get(ctx, "/me/accounts", params, &accounts); err != nil {
		return "", fmt.Errorf("resolve instagram account: %w", err)
	}
	for _, page := range accounts.Data {
		if page.InstagramBusinessAccount != nil && page.InstagramBusinessAccount.ID != "" {
			return page.InstagramBusinessAccount.ID, nil
		}
	}
	return "", errors.New("No Instagram Business Account found")
}

func (p *InstagramPublisher) createContainer(ctx context.Context, igAccountID string, req Request) (string, error) {
	payload := map[string]any{
		"caption":      req.Caption,
		"access_token": req.AccessToken,
	}
	if models.IsVideo(req.MimeType) {
		payload["media_type"] = "REELS"
		payload["video_url"] = req.MediaURL
		if req.ThumbnailURL != "" {
			payload["cover_url"] = req.ThumbnailURL
		}
	} else {
		payload["image_url"] = req.MediaURL
	}

	var container transfer.GraphIDResponse
	if err := p.graph.post(ctx, "/"+igAccountID+"/media", payload, &container); err != nil {
		return "", fmt.Errorf("create instagram container: %w", err)
	}
	if container.ID == "" {
		return "", errors.New("no container ID returned from Instagram")
	}
	return container.ID, nil
}

func (p *InstagramPublisher) waitForContainer(ctx context.Context, containerID, accessToken string) error {
	params := url.Values{
		"fields":       {"status_code"},
		"access_token": {accessToken},
	}

	err := p.poller.Poll(ctx, func(ctx context.Context) (bool, error) {
		var status transfer.GraphContainerStatus
		if err := p.graph.get(ctx, "/"+containerID, params, &status); err != nil {
			return false, fmt.Errorf("instagram container status: %w", err)
		}
		switch status.StatusCode {
		case "FINISHED":
			return true, nil
		case "ERROR", "EXPIRED":
			return false, errMediaProcessingFailed
		}
		return false, nil
	})
	if errors.Is(err, errPollExhausted) {
		return errMediaProcessingTimeout
	}
	return err
}

// permalink is best effort: media ids do not map to shortcodes, so the URL is
// asked from the API and left empty when that fails.
func (p *InstagramPublisher) permalink(ctx context.Context, mediaID, accessToken string) string {
	var resp transfer.GraphPermalinkResponse
	params := url.Values{
		"fields":       {"permalink"},
		"access_token": {accessToken},
	}
	if err := p.graph.get(ctx, "/"+mediaID, params, &resp); err != nil {
		slog.Warn("instagram permalink lookup failed", "media_id", mediaID, "error", err)
		return ""
	}
	return resp.Permalink
}
