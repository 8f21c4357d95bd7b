package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/maheshrc27/multipost/internal/transfer"
)

const DefaultGraphBaseURL = "https://graph.facebook.com/v18.0"

// graphClient talks to the Facebook Graph API shared by the Facebook and
// Instagram publishers.
type graphClient struct {
	baseURL    string
	httpClient *http.Client
}

func newGraphClient(baseURL string, httpClient *http.Client) graphClient {
	if baseURL == "" {
		baseURL = DefaultGraphBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return graphClient{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

func (g graphClient) get(ctx context.Context, path string, params url.Values, out any) error {
	reqURL := g.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	return g.do(req, out)
}

func (g graphClient) post(ctx context.Context, path string, payload map[string]any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return g.do(req, out)
}

func (g graphClient) delete(ctx context.Context, path, accessToken string) error {
	params := url.Values{"access_token": {accessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, g.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	return g.do(req, nil)
}

func (g graphClient) do(req *http.Request, out any) error {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var graphErr transfer.GraphErrorResponse
		if json.Unmarshal(respBody, &graphErr) == nil && graphErr.Error.Message != "" {
			return fmt.Errorf("graph api error (code %d): %s", graphErr.Error.Code, graphErr.Error.Message)
		}
		return fmt.Errorf("unexpected status code from graph api: %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("error parsing response: %w", err)
	}
	return nil
}
