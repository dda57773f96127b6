package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// HTTPClient fetches catalog documents over HTTP and decodes the V3 JSON
// shape.
type HTTPClient struct {
	indexURL string
	client   *http.Client
}

// NewHTTPClient constructs a catalog client rooted at indexURL. A nil
// httpClient falls back to http.DefaultClient.
func NewHTTPClient(indexURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{
		indexURL: indexURL,
		client:   httpClient,
	}
}

type indexDocument struct {
	CommitTimestamp time.Time `json:"commitTimeStamp"`
	Items           []struct {
		URL             string    `json:"@id"`
		CommitTimestamp time.Time `json:"commitTimeStamp"`
	} `json:"items"`
}

type pageDocument struct {
	CommitTimestamp time.Time `json:"commitTimeStamp"`
	Items           []struct {
		ID              string    `json:"nuget:id"`
		Version         string    `json:"nuget:version"`
		CommitTimestamp time.Time `json:"commitTimeStamp"`
	} `json:"items"`
}

// GetIndex fetches the catalog root. The feed only reports each page's
// newest commit, so the covered interval of a page runs from the previous
// page's commit (exclusive) up to its own (inclusive); the first page starts
// at the epoch.
func (c *HTTPClient) GetIndex(ctx context.Context) (Index, error) {
	var doc indexDocument
	if err := c.getJSON(ctx, c.indexURL, &doc); err != nil {
		return Index{}, err
	}

	sort.Slice(doc.Items, func(i, j int) bool {
		return doc.Items[i].CommitTimestamp.Before(doc.Items[j].CommitTimestamp)
	})

	pages := make([]PageRef, 0, len(doc.Items))
	var lo time.Time
	for _, item := range doc.Items {
		pages = append(pages, PageRef{
			URL: item.URL,
			Lo:  lo,
			Hi:  item.CommitTimestamp,
		})
		lo = item.CommitTimestamp
	}
	return Index{
		CommitTimestamp: doc.CommitTimestamp,
		Pages:           pages,
	}, nil
}

// GetPage fetches one catalog page and returns its change records.
func (c *HTTPClient) GetPage(ctx context.Context, url string) (Page, error) {
	var doc pageDocument
	if err := c.getJSON(ctx, url, &doc); err != nil {
		return Page{}, err
	}

	items := make([]Leaf, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, Leaf{
			ID:              item.ID,
			Version:         item.Version,
			CommitTimestamp: item.CommitTimestamp,
		})
	}
	return Page{
		CommitTimestamp: doc.CommitTimestamp,
		Items:           items,
	}, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, url string, out any) error {
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
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
