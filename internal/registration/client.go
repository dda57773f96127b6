package registration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// HTTPClient fetches registration documents over HTTP.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient constructs a registration client. Index URLs are
// {baseURL}/{lowercase id}/index.json. A nil httpClient falls back to
// http.DefaultClient.
func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
	}
}

type indexDocument struct {
	Items []struct {
		URL   string          `json:"@id"`
		Items json.RawMessage `json:"items"`
	} `json:"items"`
}

// GetIndex fetches the registration index for id. A 404 means the package no
// longer exists upstream and yields (nil, nil).
func (c *HTTPClient) GetIndex(ctx context.Context, id string) (*Index, error) {
	url := fmt.Sprintf("%s/%s/index.json", c.baseURL, strings.ToLower(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	var doc indexDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}

	pages := make([]PageRef, 0, len(doc.Items))
	for _, item := range doc.Items {
		pages = append(pages, PageRef{
			URL:     item.URL,
			Inlined: hasInlineItems(item.Items),
		})
	}
	return &Index{Pages: pages}, nil
}

// GetPage fetches url and drains the body without retaining it.
func (c *HTTPClient) GetPage(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("drain %s: %w", url, err)
	}
	return nil
}

func hasInlineItems(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed != "" && trimmed != "null"
}
