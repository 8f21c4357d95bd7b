package publisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"

	"github.com/h2non/filetype"
)

// mediaFile is a source file downloaded to local disk.
type mediaFile struct {
	Path     string
	Size     int64
	MimeType string
}

func (m *mediaFile) Remove() {
	os.Remove(m.Path)
}

// Open returns a reader over the file that deletes it on Close.
func (m *mediaFile) Open() (io.ReadCloser, error) {
	f, err := os.Open(m.Path)
	if err != nil {
		m.Remove()
		return nil, fmt.Errorf("error opening media file: %w", err)
	}
	return &tempReader{File: f}, nil
}

type tempReader struct {
	*os.File
}

func (t *tempReader) Close() error {
	err := t.File.Close()
	os.Remove(t.File.Name())
	return err
}

// downloadMedia fetches mediaURL into a temp file. The content type is sniffed
// from the file header when the caller does not know it.
func downloadMedia(ctx context.Context, client *http.Client, mediaURL, mimeType string) (*mediaFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating download request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error downloading media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected response status downloading media: %d", resp.StatusCode)
	}

	tempFile, err := os.CreateTemp("", "multipost-media-*")
	if err != nil {
		return nil, fmt.Errorf("error creating temporary file: %w", err)
	}
	defer tempFile.Close()

	size, err := io.Copy(tempFile, resp.Body)
	if err != nil {
		os.Remove(tempFile.Name())
		return nil, fmt.Errorf("error saving media to temporary file: %w", err)
	}

	if size == 0 {
		os.Remove(tempFile.Name())
		return nil, errors.New("downloaded media is empty")
	}

	file := &mediaFile{Path: tempFile.Name(), Size: size, MimeType: mimeType}
	if file.MimeType == "" {
		file.MimeType = sniffMimeType(tempFile.Name())
	}
	return file, nil
}

func sniffMimeType(path string) string {
	kind, err := filetype.MatchFile(path)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}

// sniffHeaderSize covers every signature filetype matches on.
const sniffHeaderSize = 262

var errUnknownMedia = errors.New("could not determine media type")

// detectMimeType reads the first bytes of mediaURL and matches their
// signature, falling back to the Content-Type the server reports.
func detectMimeType(ctx context.Context, client *http.Client, mediaURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return "", fmt.Errorf("error creating download request: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", sniffHeaderSize-1))

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error downloading media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return "", fmt.Errorf("unexpected response status downloading media: %d", resp.StatusCode)
	}

	head, err := io.ReadAll(io.LimitReader(resp.Body, sniffHeaderSize))
	if err != nil {
		return "", fmt.Errorf("error reading media: %w", err)
	}
	if kind, err := filetype.Match(head); err == nil && kind != filetype.Unknown {
		return kind.MIME.Value, nil
	}

	if mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil {
		if strings.HasPrefix(mediaType, "video/") || strings.HasPrefix(mediaType, "image/") {
			return mediaType, nil
		}
	}
	return "", errUnknownMedia
}
