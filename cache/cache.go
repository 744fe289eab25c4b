// Package cache keeps successful feed fetches for a fixed time window
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"feedgrid/fetcher"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedgrid_cache_hits_total",
		Help: "The total number of feed requests served from cache",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedgrid_cache_misses_total",
		Help: "The total number of feed requests that required a fetch",
	})

	cacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedgrid_cache_evictions_total",
		Help: "The total number of entries evicted after a failed fetch",
	})
)

const (
	DefaultTTL = time.Hour
	keyPrefix  = "feedgrid:xml:"
)

// Entry is a successful fetch result
type Entry struct {
	StatusCode int       `json:"status_code"`
	Body       string    `json:"body"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// Store holds entries until their TTL runs out. Implementations must be safe
// for concurrent use and must never return a partially written entry.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry) error
	Delete(ctx context.Context, key string) error
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) (fetcher.Response, error)
}

// Cache fronts a Fetcher with a Store. Concurrent misses for the same URL
// each trigger their own fetch.
type Cache struct {
	store   Store
	fetcher Fetcher
}

func New(store Store, fetcher Fetcher) *Cache {
	return &Cache{
		store:   store,
		fetcher: fetcher,
	}
}

// Key derives the store key for a feed URL
func Key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// GetOrFetch returns the cached entry for url, fetching it on a miss. A failed
// fetch leaves no entry behind so the next call fetches again.
func (c *Cache) GetOrFetch(ctx context.Context, url string) (Entry, error) {
	key := Key(url)

	entry, found, err := c.store.Get(ctx, key)
	if err != nil {
		log.WithFields(log.Fields{
			"key":   key,
			"error": err,
		}).Warn("Cache read failed, treating as miss")
	}
	if err == nil && found {
		cacheHits.Inc()
		log.WithFields(log.Fields{
			"url":        url,
			"fetched_at": entry.FetchedAt,
		}).Debug("Cache hit")
		return entry, nil
	}

	cacheMisses.Inc()
	resp, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		if delErr := c.store.Delete(ctx, key); delErr != nil {
			log.WithFields(log.Fields{
				"key":   key,
				"error": delErr,
			}).Warn("Failed to evict cache entry")
		}
		cacheEvictions.Inc()
		return Entry{}, err
	}

	entry = Entry{
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
		FetchedAt:  time.Now(),
	}
	if err := c.store.Set(ctx, key, entry); err != nil {
		log.WithFields(log.Fields{
			"key":   key,
			"error": err,
		}).Warn("Failed to store cache entry")
	}

	return entry, nil
}
