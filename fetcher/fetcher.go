// Package fetcher retrieves raw feed documents over HTTP
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"feedgrid/config"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/labstack/gommon/bytes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedgrid_fetch_total",
		Help: "The total number of feed fetches by outcome",
	}, []string{"outcome"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feedgrid_fetch_duration_seconds",
		Help:    "Duration of feed fetches",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // Start at 50ms, double each bucket, 10 buckets
	})
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultMaxBodySize = 10 * bytes.MB
)

var ErrBodyTooLarge = errors.New("feed body exceeds size limit")

// StatusError is returned when the feed server answers with a non-2xx status
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d", e.StatusCode)
}

// Response is a successful fetch
type Response struct {
	StatusCode int
	Body       string
}

type Config struct {
	Timeout     time.Duration
	MaxBodySize int64
	UserAgent   string
}

// HTTPFetcher performs bounded-timeout GET requests. It never retries.
type HTTPFetcher struct {
	client *http.Client
	config Config
}

func New(cfg Config) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}

	client := cleanhttp.DefaultPooledClient()
	client.Timeout = cfg.Timeout

	return &HTTPFetcher{
		client: client,
		config: cfg,
	}
}

// NewFromConfig builds a fetcher from the [fetcher] config table
func NewFromConfig(cfg config.TomlFetcher) (*HTTPFetcher, error) {
	var maxBodySize int64
	if cfg.MaxBodySize != "" {
		size, err := bytes.Parse(cfg.MaxBodySize)
		if err != nil {
			return nil, fmt.Errorf("invalid max_body_size %q: %w", cfg.MaxBodySize, err)
		}
		maxBodySize = size
	}

	return New(Config{
		Timeout:     cfg.Timeout.Duration,
		MaxBodySize: maxBodySize,
		UserAgent:   cfg.UserAgent,
	}), nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (Response, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	resp, err := f.fetch(ctx, url)
	fetchDuration.Observe(time.Since(start).Seconds())

	fields := log.Fields{
		"url":      url,
		"duration": time.Since(start),
	}
	if err != nil {
		fields["error"] = err
		fields["timeout"] = IsTimeout(err)
		log.WithFields(fields).Warn("Feed fetch failed")
		fetchTotal.WithLabelValues(outcome(err)).Inc()
		return Response{}, err
	}

	fields["status"] = resp.StatusCode
	fields["size"] = bytes.Format(int64(len(resp.Body)))
	log.WithFields(fields).Info("Fetched feed")
	fetchTotal.WithLabelValues("success").Inc()

	return resp, nil
}

func (f *HTTPFetcher) fetch(ctx context.Context, url string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Response{}, err
	}
	if f.config.UserAgent != "" {
		req.Header.Set("User-Agent", f.config.UserAgent)
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Response{}, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodySize+1))
	if err != nil {
		return Response{}, fmt.Errorf("reading feed body: %w", err)
	}
	if int64(len(body)) > f.config.MaxBodySize {
		return Response{}, fmt.Errorf("%w (%s)", ErrBodyTooLarge, bytes.Format(f.config.MaxBodySize))
	}

	return Response{
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}, nil
}

// IsTimeout reports whether err was caused by the fetch deadline
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func outcome(err error) string {
	var statusErr *StatusError
	switch {
	case errors.As(err, &statusErr):
		return "status"
	case IsTimeout(err):
		return "timeout"
	default:
		return "error"
	}
}
