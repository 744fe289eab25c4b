// Package feeds resolves feed identifiers and turns fetch results into response envelopes
package feeds

import (
	"errors"
	"sort"

	"github.com/samber/lo"
)

var ErrInvalidFeed = errors.New("invalid feed")

// Feed is a configured RSS source
type Feed struct {
	ID  string
	URL string
}

// FeedMap maps feed IDs to their Feed instances
type FeedMap map[string]*Feed

// Resolver maps the identifiers a caller may request to upstream URLs.
// It is read-only after construction.
type Resolver struct {
	feeds FeedMap
}

func NewResolver(urls map[string]string) *Resolver {
	feeds := make(FeedMap, len(urls))
	for id, url := range urls {
		feeds[id] = &Feed{ID: id, URL: url}
	}
	return &Resolver{feeds: feeds}
}

// Resolve returns the URL for id, or ErrInvalidFeed for anything not configured
func (r *Resolver) Resolve(id string) (string, error) {
	feed, ok := r.feeds[id]
	if !ok {
		return "", ErrInvalidFeed
	}
	return feed.URL, nil
}

// IDs returns the configured identifiers in sorted order
func (r *Resolver) IDs() []string {
	ids := lo.Keys(r.feeds)
	sort.Strings(ids)
	return ids
}
