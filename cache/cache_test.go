package cache_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"feedgrid/cache"
	"feedgrid/fetcher"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedURL = "https://example.com/feed/"

type stubFetcher struct {
	calls atomic.Int32
	body  string
	err   error
}

func (f *stubFetcher) Fetch(_ context.Context, _ string) (fetcher.Response, error) {
	f.calls.Add(1)
	if f.err != nil {
		return fetcher.Response{}, f.err
	}
	return fetcher.Response{StatusCode: 200, Body: f.body}, nil
}

func TestKey(t *testing.T) {
	a := cache.Key(feedURL)
	b := cache.Key("https://example.com/other/")

	assert.Equal(t, a, cache.Key(feedURL))
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^feedgrid:xml:[0-9a-f]{64}$`, a)
}

func TestGetOrFetchServesFromCache(t *testing.T) {
	f := &stubFetcher{body: "<rss/>"}
	c := cache.New(cache.NewMemoryStore(8, time.Hour), f)

	first, err := c.GetOrFetch(context.Background(), feedURL)
	require.NoError(t, err)
	second, err := c.GetOrFetch(context.Background(), feedURL)
	require.NoError(t, err)

	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, "<rss/>", first.Body)
	assert.Equal(t, 200, first.StatusCode)
	assert.Equal(t, first, second)
}

func TestGetOrFetchFailureLeavesNoEntry(t *testing.T) {
	store := cache.NewMemoryStore(8, time.Hour)
	f := &stubFetcher{err: errors.New("connection refused")}
	c := cache.New(store, f)

	_, err := c.GetOrFetch(context.Background(), feedURL)
	assert.EqualError(t, err, "connection refused")
	assert.Equal(t, 0, store.Len())

	_, err = c.GetOrFetch(context.Background(), feedURL)
	assert.Error(t, err)
	assert.Equal(t, int32(2), f.calls.Load())

	f.err = nil
	f.body = "<rss/>"
	entry, err := c.GetOrFetch(context.Background(), feedURL)
	require.NoError(t, err)
	assert.Equal(t, "<rss/>", entry.Body)
	assert.Equal(t, 1, store.Len())
}

func TestGetOrFetchRefetchesAfterExpiry(t *testing.T) {
	f := &stubFetcher{body: "<rss/>"}
	c := cache.New(cache.NewMemoryStore(8, 50*time.Millisecond), f)

	_, err := c.GetOrFetch(context.Background(), feedURL)
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)
	_, err = c.GetOrFetch(context.Background(), feedURL)
	require.NoError(t, err)

	assert.Equal(t, int32(2), f.calls.Load())
}

func TestGetOrFetchKeysByURL(t *testing.T) {
	f := &stubFetcher{body: "<rss/>"}
	c := cache.New(cache.NewMemoryStore(8, time.Hour), f)

	_, err := c.GetOrFetch(context.Background(), feedURL)
	require.NoError(t, err)
	_, err = c.GetOrFetch(context.Background(), "https://example.com/other/")
	require.NoError(t, err)

	assert.Equal(t, int32(2), f.calls.Load())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	store, err := cache.ConnectRedis(ctx, "redis://"+mr.Addr(), time.Hour, time.Second)
	require.NoError(t, err)
	defer store.Close()

	f := &stubFetcher{body: "<rss><channel/></rss>"}
	c := cache.New(store, f)

	entry, err := c.GetOrFetch(ctx, feedURL)
	require.NoError(t, err)
	assert.Equal(t, "<rss><channel/></rss>", entry.Body)

	key := cache.Key(feedURL)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Hour, mr.TTL(key))

	cached, found, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, entry.Body, cached.Body)
	assert.True(t, entry.FetchedAt.Equal(cached.FetchedAt))

	_, err = c.GetOrFetch(ctx, feedURL)
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.calls.Load())

	mr.FastForward(2 * time.Hour)
	_, found, err = store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisStoreEvictsOnFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	store, err := cache.ConnectRedis(ctx, "redis://"+mr.Addr(), time.Hour, time.Second)
	require.NoError(t, err)
	defer store.Close()

	key := cache.Key(feedURL)
	// A corrupt value reads as a miss, the failed fetch then removes it
	require.NoError(t, mr.Set(key, "not json"))

	f := &stubFetcher{err: errors.New("timeout")}
	_, err = cache.New(store, f).GetOrFetch(ctx, feedURL)
	assert.Error(t, err)
	assert.False(t, mr.Exists(key))
}

func TestConnectRedisUnreachable(t *testing.T) {
	_, err := cache.ConnectRedis(context.Background(), "redis://127.0.0.1:1", time.Hour, 200*time.Millisecond)
	assert.Error(t, err)
}

func TestConnectRedisInvalidURL(t *testing.T) {
	_, err := cache.ConnectRedis(context.Background(), "http://nope", time.Hour, time.Second)
	assert.ErrorContains(t, err, "invalid redis url")
}
