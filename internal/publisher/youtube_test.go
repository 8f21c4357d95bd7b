package publisher

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/maheshrc27/multipost/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type youtubeServer struct {
	srv       *httptest.Server
	uploads   atomic.Int32
	driveHits atomic.Int32
	uploadBody string
	authHeader string
}

func newYoutubeServer(t *testing.T) *youtubeServer {
	ys := &youtubeServer{}
	ys.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/video.mp4":
			w.Write(mp4Header)
		case strings.HasPrefix(r.URL.Path, "/drive/v3/files/"):
			ys.driveHits.Add(1)
			assert.Equal(t, "/drive/v3/files/1AbCdEfGhIjKlMnOpQrStUvWxYz012", r.URL.Path)
			w.Write(mp4Header)
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/youtube/v3/videos"):
			ys.uploads.Add(1)
			ys.authHeader = r.Header.Get("Authorization")
			body, _ := io.ReadAll(r.Body)
			ys.uploadBody = string(body)
			writeJSON(t, w, map[string]any{"id": "vid123"})
		case r.Method == http.MethodDelete && strings.HasSuffix(r.URL.Path, "/youtube/v3/videos"):
			if r.URL.Query().Get("id") != "vid123" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/youtube/v3/videos"):
			writeJSON(t, w, map[string]any{"items": []map[string]any{
				{"id": "vid123", "snippet": map[string]any{"title": "Launch", "description": "old", "categoryId": "22"}},
			}})
		case r.Method == http.MethodPut && strings.HasSuffix(r.URL.Path, "/youtube/v3/videos"):
			body, _ := io.ReadAll(r.Body)
			assert.Contains(t, string(body), `"description":"new caption"`)
			writeJSON(t, w, map[string]any{"id": "vid123"})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(ys.srv.Close)
	return ys
}

func (ys *youtubeServer) publisher() *YoutubePublisher {
	return NewYoutubePublisher(YoutubeConfig{
		Endpoint:      ys.srv.URL + "/",
		DriveEndpoint: ys.srv.URL + "/drive/v3/",
		HTTPClient:    ys.srv.Client(),
	})
}

func TestYoutubePublishFromURL(t *testing.T) {
	ys := newYoutubeServer(t)

	res := ys.publisher().Publish(context.Background(), Request{
		Caption:     "Launch day\nShipping it #golang #Release #golang",
		MediaURL:    ys.srv.URL + "/video.mp4",
		MimeType:    "video/mp4",
		AccessToken: "yt-token",
	})
	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, "vid123", res.PlatformPostID)
	assert.Equal(t, "https://www.youtube.com/watch?v=vid123", res.PlatformURL)
	assert.Equal(t, int32(1), ys.uploads.Load())
	assert.Equal(t, "Bearer yt-token", ys.authHeader)
	assert.Contains(t, ys.uploadBody, `"title":"Launch day"`)
	assert.Contains(t, ys.uploadBody, `"categoryId":"22"`)
	assert.Contains(t, ys.uploadBody, `"privacyStatus":"public"`)
}

func TestYoutubePublishFromDrive(t *testing.T) {
	ys := newYoutubeServer(t)

	res := ys.publisher().Publish(context.Background(), Request{
		Caption:     "from drive",
		MediaURL:    "https://drive.google.com/file/d/1AbCdEfGhIjKlMnOpQrStUvWxYz012/view?usp=sharing",
		MimeType:    "video/mp4",
		AccessToken: "yt-token",
	})
	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, int32(1), ys.driveHits.Load())
	assert.Equal(t, int32(1), ys.uploads.Load())
}

func TestYoutubeRejectsInvalidSources(t *testing.T) {
	ys := newYoutubeServer(t)
	p := ys.publisher()

	res := p.Publish(context.Background(), Request{MediaURL: "https://drive.google.com/file/d/short/view", MimeType: "video/mp4"})
	assert.False(t, res.Success)
	assert.Equal(t, "Invalid Google Drive URL", res.ErrorMessage)

	res = p.Publish(context.Background(), Request{MediaURL: ys.srv.URL + "/video.mp4", MimeType: "image/jpeg"})
	assert.Equal(t, errNeedVideo.Error(), res.ErrorMessage)

	res = p.Publish(context.Background(), Request{Caption: "text only"})
	assert.Equal(t, errNoMedia.Error(), res.ErrorMessage)
	assert.Equal(t, int32(0), ys.uploads.Load())
}

func TestYoutubeDeleteAndUpdate(t *testing.T) {
	ys := newYoutubeServer(t)
	p := ys.publisher()
	creds := models.Credentials{AccessToken: "yt-token"}

	assert.True(t, p.DeletePost(context.Background(), "vid123", creds))
	assert.False(t, p.DeletePost(context.Background(), "missing", creds))
	assert.True(t, p.UpdateCaption(context.Background(), "vid123", "new caption", creds))
}

func TestDriveFileID(t *testing.T) {
	id, err := driveFileID("https://drive.google.com/open?id=1AbCdEfGhIjKlMnOpQrStUvWxYz012")
	require.NoError(t, err)
	assert.Equal(t, "1AbCdEfGhIjKlMnOpQrStUvWxYz012", id)

	id, err = driveFileID("https://drive.google.com/file/d/1AbCdEfGhIjKlMnOpQrStUvWxYz012/view")
	require.NoError(t, err)
	assert.Equal(t, "1AbCdEfGhIjKlMnOpQrStUvWxYz012", id)

	_, err = driveFileID("https://drive.google.com/file/d/abc/view")
	assert.ErrorIs(t, err, errInvalidDriveURL)

	assert.True(t, isDriveURL("https://drive.google.com/file/d/x/view"))
	assert.False(t, isDriveURL("https://cdn.example.com/video.mp4"))
}

func TestYoutubeTitleAndTags(t *testing.T) {
	assert.Equal(t, youtubeUntitled, youtubeTitle(""))
	assert.Len(t, []rune(youtubeTitle(strings.Repeat("x", 300))), 100)
	assert.Equal(t, []string{"golang", "Release"}, hashtags("Ship #golang and #Release then #GoLang"))
	assert.Nil(t, hashtags("no tags"))
}
