// Package registration models the per-package metadata service.
package registration

import "context"

// PageRef identifies one page of a package's registration index. Inlined
// pages carry their items inside the index document and need no extra fetch.
type PageRef struct {
	URL     string
	Inlined bool
}

// Index is the registration document for one package.
type Index struct {
	Pages []PageRef
}

// Client reads registration metadata.
type Client interface {
	// GetIndex returns nil with no error when the package does not exist
	// upstream.
	GetIndex(ctx context.Context, id string) (*Index, error)
	// GetPage fetches a registration page to warm the remote cache. The
	// content is discarded.
	GetPage(ctx context.Context, url string) error
}
