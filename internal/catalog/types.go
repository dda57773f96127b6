// Package catalog models the remote catalog feed: an append-only log of
// package change events, split into pages that each cover a commit-timestamp
// window.
package catalog

import (
	"context"
	"time"
)

// PageRef identifies one remotely fetchable catalog page and the half-open
// commit interval (Lo, Hi] it covers.
type PageRef struct {
	URL string
	Lo  time.Time
	Hi  time.Time
}

// Index is the root catalog document.
type Index struct {
	// CommitTimestamp is the feed's "as of" instant, used as the upper
	// cursor bound for the cycle that fetched it.
	CommitTimestamp time.Time
	Pages           []PageRef
}

// Leaf is one change record inside a catalog page.
type Leaf struct {
	ID              string
	Version         string
	CommitTimestamp time.Time
}

// Page is the content of one fetched catalog page.
type Page struct {
	CommitTimestamp time.Time
	Items           []Leaf
}

// Client reads the catalog feed.
type Client interface {
	GetIndex(ctx context.Context) (Index, error)
	GetPage(ctx context.Context, url string) (Page, error)
}
