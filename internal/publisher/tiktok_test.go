package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/maheshrc27/multipost/internal/models"
	"github.com/maheshrc27/multipost/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tiktokServer struct {
	srv      *httptest.Server
	video    []byte
	status   func(n int32) transfer.TiktokStatusData
	statuses atomic.Int32

	mu       sync.Mutex
	init     transfer.VideoInitRequest
	ranges   []string
	uploaded bytes.Buffer
}

func newTiktokServer(t *testing.T, video []byte, status func(n int32) transfer.TiktokStatusData) *tiktokServer {
	ts := &tiktokServer{video: video, status: status}
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/video.mp4":
			w.Write(ts.video)
		case "/post/publish/creator_info/query/":
			writeJSON(t, w, transfer.TiktokCreatorInfoResponse{
				Data: transfer.TiktokCreatorInfo{
					CreatorUsername:     "creator",
					PrivacyLevelOptions: []string{"SELF_ONLY", "PUBLIC_TO_EVERYONE"},
					DuetDisabled:        true,
				},
				Error: transfer.TiktokError{Code: "ok"},
			})
		case "/post/publish/video/init/":
			ts.mu.Lock()
			json.NewDecoder(r.Body).Decode(&ts.init)
			ts.mu.Unlock()
			writeJSON(t, w, transfer.TiktokInitResponse{
				Data:  transfer.TiktokInitData{PublishID: "v_pub_1", UploadURL: ts.srv.URL + "/upload"},
				Error: transfer.TiktokError{Code: "ok"},
			})
		case "/upload":
			ts.mu.Lock()
			ts.ranges = append(ts.ranges, r.Header.Get("Content-Range"))
			io.Copy(&ts.uploaded, r.Body)
			ts.mu.Unlock()
			w.WriteHeader(http.StatusCreated)
		case "/post/publish/status/fetch/":
			n := ts.statuses.Add(1)
			writeJSON(t, w, transfer.TiktokStatusResponse{Data: ts.status(n), Error: transfer.TiktokError{Code: "ok"}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ts.srv.Close)
	return ts
}

func (ts *tiktokServer) publisher(attempts int) *TiktokPublisher {
	return NewTiktokPublisher(ts.srv.URL, ts.srv.Client(), fastPoller(attempts))
}

func (ts *tiktokServer) request() Request {
	return Request{Caption: "dance\n#fyp", MediaURL: ts.srv.URL + "/video.mp4", MimeType: "video/mp4", AccessToken: "token"}
}

func TestTiktokChunkPlan(t *testing.T) {
	tests := []struct {
		size      int64
		chunkSize int64
		count     int
	}{
		{size: 1, chunkSize: 1, count: 1},
		{size: 10_000_000, chunkSize: 10_000_000, count: 1},
		{size: 10_000_001, chunkSize: 10_000_000, count: 1},
		{size: 25_000_000, chunkSize: 10_000_000, count: 2},
		{size: 30_000_000, chunkSize: 10_000_000, count: 3},
	}
	for _, tt := range tests {
		chunkSize, count := tiktokChunkPlan(tt.size)
		assert.Equal(t, tt.chunkSize, chunkSize, "size %d", tt.size)
		assert.Equal(t, tt.count, count, "size %d", tt.size)
	}
}

func TestTiktokPublishSuccess(t *testing.T) {
	ts := newTiktokServer(t, mp4Header, func(n int32) transfer.TiktokStatusData {
		if n < 2 {
			return transfer.TiktokStatusData{Status: "PROCESSING_UPLOAD"}
		}
		return transfer.TiktokStatusData{Status: "PUBLISH_COMPLETE", PublicalyAvailablePostID: []int64{7123}}
	})

	res := ts.publisher(30).Publish(context.Background(), ts.request())
	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, "7123", res.PlatformPostID)
	assert.Equal(t, "https://www.tiktok.com/@creator/video/7123", res.PlatformURL)
	assert.Equal(t, int32(2), ts.statuses.Load())

	assert.Equal(t, "dance", ts.init.PostInfo.Title)
	assert.Equal(t, "PUBLIC_TO_EVERYONE", ts.init.PostInfo.PrivacyLevel)
	assert.True(t, ts.init.PostInfo.DisableDuet)
	assert.Equal(t, "FILE_UPLOAD", ts.init.SourceInfo.Source)
	assert.Equal(t, int64(len(mp4Header)), ts.init.SourceInfo.VideoSize)
	assert.Equal(t, 1, ts.init.SourceInfo.TotalChunkCount)

	assert.Equal(t, []string{"bytes 0-31/32"}, ts.ranges)
	assert.Equal(t, mp4Header, ts.uploaded.Bytes())
}

func TestTiktokPublishWithoutPublicID(t *testing.T) {
	ts := newTiktokServer(t, mp4Header, func(int32) transfer.TiktokStatusData {
		return transfer.TiktokStatusData{Status: "PUBLISH_COMPLETE"}
	})

	res := ts.publisher(30).Publish(context.Background(), ts.request())
	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, "v_pub_1", res.PlatformPostID)
	assert.Empty(t, res.PlatformURL)
}

func TestTiktokPublishTimesOutAfterThirtyChecks(t *testing.T) {
	ts := newTiktokServer(t, mp4Header, func(int32) transfer.TiktokStatusData {
		return transfer.TiktokStatusData{Status: "PROCESSING_DOWNLOAD"}
	})

	res := ts.publisher(30).Publish(context.Background(), ts.request())
	assert.False(t, res.Success)
	assert.Equal(t, "TikTok publish timeout: status PROCESSING_DOWNLOAD after 30 checks", res.ErrorMessage)
	assert.Equal(t, int32(30), ts.statuses.Load())
}

func TestTiktokPublishFailedStatus(t *testing.T) {
	ts := newTiktokServer(t, mp4Header, func(int32) transfer.TiktokStatusData {
		return transfer.TiktokStatusData{Status: "FAILED", FailReason: "video_pull_failed"}
	})

	res := ts.publisher(30).Publish(context.Background(), ts.request())
	assert.False(t, res.Success)
	assert.Equal(t, "TikTok publish failed: video_pull_failed", res.ErrorMessage)
	assert.Equal(t, int32(1), ts.statuses.Load())
}

func TestTiktokRejectsNonVideo(t *testing.T) {
	ts := newTiktokServer(t, []byte("plain text"), nil)
	p := ts.publisher(30)

	req := ts.request()
	req.MimeType = "image/png"
	res := p.Publish(context.Background(), req)
	assert.False(t, res.Success)
	assert.Equal(t, errNeedVideo.Error(), res.ErrorMessage)

	req.MediaURL = ""
	assert.Equal(t, errNoMedia.Error(), p.Publish(context.Background(), req).ErrorMessage)

	assert.False(t, p.DeletePost(context.Background(), "v_pub_1", models.Credentials{}))
	assert.False(t, p.UpdateCaption(context.Background(), "v_pub_1", "new", models.Credentials{}))
}

func TestTiktokSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(t, w, map[string]any{"error": map[string]any{"code": "access_token_invalid", "message": "The access token is invalid"}})
	}))
	defer srv.Close()

	res := NewTiktokPublisher(srv.URL, srv.Client(), fastPoller(30)).
		Publish(context.Background(), Request{MediaURL: srv.URL + "/video.mp4", MimeType: "video/mp4", AccessToken: "bad"})
	assert.False(t, res.Success)
	assert.Contains(t, res.ErrorMessage, "access_token_invalid")
}
