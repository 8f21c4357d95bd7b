package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/maheshrc27/multipost/internal/models"
	"github.com/maheshrc27/multipost/internal/transfer"
)

const (
	DefaultTiktokBaseURL = "https://open.tiktokapis.com/v2"

	tiktokChunkSize   int64 = 10_000_000
	tiktokTitleLength       = 150
)

// TiktokPublisher uploads the video in chunks to an upload session and polls
// the publish status until TikTok reports completion.
type TiktokPublisher struct {
	baseURL    string
	httpClient *http.Client
	poller     Poller
}

func NewTiktokPublisher(baseURL string, httpClient *http.Client, poller Poller) *TiktokPublisher {
	if baseURL == "" {
		baseURL = DefaultTiktokBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &TiktokPublisher{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient, poller: poller}
}

func (p *TiktokPublisher) Platform() models.Platform {
	return models.PlatformTiktok
}

func (p *TiktokPublisher) Publish(ctx context.Context, req Request) Result {
	if req.MediaURL == "" {
		return failure(p.Platform(), errNoMedia)
	}
	if req.MimeType != "" && !models.IsVideo(req.MimeType) {
		return failure(p.Platform(), errNeedVideo)
	}

	creator, err := p.queryCreatorInfo(ctx, req.AccessToken)
	if err != nil {
		return failure(p.Platform(), err)
	}

	media, err := downloadMedia(ctx, p.httpClient, req.MediaURL, req.MimeType)
	if err != nil {
		return failure(p.Platform(), err)
	}
	defer media.Remove()

	if !models.IsVideo(media.MimeType) {
		return failure(p.Platform(), errNeedVideo)
	}

	chunkSize, chunkCount := tiktokChunkPlan(media.Size)
	session, err := p.initUpload(ctx, req, creator, media.Size, chunkSize, chunkCount)
	if err != nil {
		return failure(p.Platform(), err)
	}

	if err := p.uploadChunks(ctx, session.UploadURL, media, chunkSize, chunkCount); err != nil {
		return failure(p.Platform(), err)
	}

	status, err := p.waitForPublish(ctx, req.AccessToken, session.PublishID)
	if err != nil {
		return failure(p.Platform(), err)
	}

	postID := session.PublishID
	url := ""
	if len(status.PublicalyAvailablePostID) > 0 {
		postID = strconv.FormatInt(status.PublicalyAvailablePostID[0], 10)
		url = fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", creator.CreatorUsername, postID)
	}

	slog.Info("tiktok video published", "publish_id", session.PublishID, "post_id", postID)
	return success(postID, url)
}

func (p *TiktokPublisher) DeletePost(ctx context.Context, externalID string, creds models.Credentials) bool {
	logUnsupported(p.Platform(), "delete")
	return false
}

func (p *TiktokPublisher) UpdateCaption(ctx context.Context, externalID, caption string, creds models.Credentials) bool {
	logUnsupported(p.Platform(), "update_caption")
	return false
}

// tiktokChunkPlan splits size into 10MB chunks. Files below one chunk go up
// whole. The last chunk absorbs the remainder, so it is never smaller than a
// full chunk.
func tiktokChunkPlan(size int64) (chunkSize int64, count int) {
	if size <= tiktokChunkSize {
		return size, 1
	}
	return tiktokChunkSize, int(size / tiktokChunkSize)
}

func (p *TiktokPublisher) queryCreatorInfo(ctx context.Context, accessToken string) (*transfer.TiktokCreatorInfo, error) {
	var resp transfer.TiktokCreatorInfoResponse
	if err := p.postJSON(ctx, "/post/publish/creator_info/query/", accessToken, nil, &resp); err != nil {
		return nil, fmt.Errorf("query tiktok creator info: %w", err)
	}
	return &resp.Data, nil
}

func (p *TiktokPublisher) initUpload(ctx context.Context, req Request, creator *transfer.TiktokCreatorInfo, size, chunkSize int64, chunkCount int) (*transfer.TiktokInitData, error) {
	body := transfer.VideoInitRequest{
		PostInfo: transfer.VideoPostInfo{
			Title:                 firstLineTitle(req.Caption, tiktokTitleLength),
			PrivacyLevel:          privacyLevel(creator.PrivacyLevelOptions),
			DisableDuet:           creator.DuetDisabled,
			DisableComment:        creator.CommentDisabled,
			DisableStitch:         creator.StitchDisabled,
			VideoCoverTimestampMs: 1000,
		},
		SourceInfo: transfer.VideoSourceInfo{
			Source:          "FILE_UPLOAD",
			VideoSize:       size,
			ChunkSize:       chunkSize,
			TotalChunkCount: chunkCount,
		},
	}

	var resp transfer.TiktokInitResponse
	if err := p.postJSON(ctx, "/post/publish/video/init/", req.AccessToken, body, &resp); err != nil {
		return nil, fmt.Errorf("init tiktok upload: %w", err)
	}
	if resp.Data.UploadURL == "" || resp.Data.PublishID == "" {
		return nil, errors.New("tiktok did not return an upload session")
	}
	return &resp.Data, nil
}

func privacyLevel(options []string) string {
	for _, o := range options {
		if o == "PUBLIC_TO_EVERYONE" {
			return o
		}
	}
	if len(options) > 0 {
		return options[0]
	}
	return "PUBLIC_TO_EVERYONE"
}

func (p *TiktokPublisher) uploadChunks(ctx context.Context, uploadURL string, media *mediaFile, chunkSize int64, chunkCount int) error {
	file, err := os.Open(media.Path)
	if err != nil {
		return fmt.Errorf("error opening video file: %w", err)
	}
	defer file.Close()

	for i := 0; i < chunkCount; i++ {
		start := int64(i) * chunkSize
		end := start + chunkSize - 1
		if i == chunkCount-1 {
			end = media.Size - 1
		}
		length := end - start + 1

		req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, io.NewSectionReader(file, start, length))
		if err != nil {
			return fmt.Errorf("error creating upload request: %w", err)
		}
		req.ContentLength = length
		req.Header.Set("Content-Type", media.MimeType)
		req.Header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, media.Size))

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("error uploading chunk %d: %w", i+1, err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusPartialContent && resp.StatusCode != http.StatusOK {
			return fmt.Errorf("tiktok rejected chunk %d with status %d", i+1, resp.StatusCode)
		}
	}
	return nil
}

func (p *TiktokPublisher) waitForPublish(ctx context.Context, accessToken, publishID string) (*transfer.TiktokStatusData, error) {
	var last transfer.TiktokStatusData

	err := p.poller.Poll(ctx, func(ctx context.Context) (bool, error) {
		var resp transfer.TiktokStatusResponse
		body := transfer.TiktokStatusRequest{PublishID: publishID}
		if err := p.postJSON(ctx, "/post/publish/status/fetch/", accessToken, body, &resp); err != nil {
			return false, fmt.Errorf("fetch tiktok publish status: %w", err)
		}
		last = resp.Data

		switch resp.Data.Status {
		case "PUBLISH_COMPLETE":
			return true, nil
		case "PROCESSING_UPLOAD", "PROCESSING_DOWNLOAD":
			return false, nil
		case "FAILED":
			return false, fmt.Errorf("TikTok publish failed: %s", resp.Data.FailReason)
		}
		return false, fmt.Errorf("TikTok publish failed with status: %s", resp.Data.Status)
	})
	if errors.Is(err, errPollExhausted) {
		return nil, fmt.Errorf("TikTok publish timeout: status %s after %d checks", last.Status, p.poller.attempts())
	}
	if err != nil {
		return nil, err
	}
	return &last, nil
}

func (p *TiktokPublisher) postJSON(ctx context.Context, path, accessToken string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("error marshalling data: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}

	var envelope struct {
		Error transfer.TiktokError `json:"error"`
	}
	_ = json.Unmarshal(respBody, &envelope)
	if resp.StatusCode != http.StatusOK || (envelope.Error.Code != "" && envelope.Error.Code != "ok") {
		if envelope.Error.Message != "" {
			return fmt.Errorf("tiktok api error %s: %s", envelope.Error.Code, envelope.Error.Message)
		}
		return fmt.Errorf("unexpected status code from tiktok: %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("error parsing response: %w", err)
		}
	}
	return nil
}
