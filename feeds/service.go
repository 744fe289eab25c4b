package feeds

import (
	"context"
	"errors"
	"net/http"

	"feedgrid/cache"
	"feedgrid/models"
	"feedgrid/parser"

	log "github.com/sirupsen/logrus"
)

const (
	msgInvalidFeed = "Invalid feed"
	msgEmptyBody   = "Empty feed body"
	msgInvalidXML  = "Invalid XML"
	msgFetchFailed = "Fetch failed"
)

type Cache interface {
	GetOrFetch(ctx context.Context, url string) (cache.Entry, error)
}

type Parser interface {
	Parse(body string, opts models.FormatOptions) ([]models.FeedItem, error)
}

// Service runs a feed request through resolve, cache, parse and builds the
// response envelope
type Service struct {
	resolver *Resolver
	cache    Cache
	parser   Parser
}

func NewService(resolver *Resolver, cache Cache, parser Parser) *Service {
	return &Service{
		resolver: resolver,
		cache:    cache,
		parser:   parser,
	}
}

func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// Get never returns an error; every failure is reported in the envelope
func (s *Service) Get(ctx context.Context, req models.FeedRequest) models.Envelope {
	url, err := s.resolver.Resolve(req.FeedID)
	if err != nil {
		log.WithFields(log.Fields{
			"feed": req.FeedID,
		}).Info("Rejected unknown feed")
		return failure(http.StatusBadRequest, msgInvalidFeed)
	}

	entry, err := s.cache.GetOrFetch(ctx, url)
	if err != nil {
		log.WithFields(log.Fields{
			"feed":  req.FeedID,
			"url":   url,
			"error": err,
		}).Error("Error fetching feed")
		msg := err.Error()
		if msg == "" {
			msg = msgFetchFailed
		}
		return failure(http.StatusInternalServerError, msg)
	}

	items, err := s.parser.Parse(entry.Body, req.FormatOptions())
	switch {
	case errors.Is(err, parser.ErrEmptyBody):
		return failure(http.StatusInternalServerError, msgEmptyBody)
	case err != nil:
		log.WithFields(log.Fields{
			"feed":  req.FeedID,
			"error": err,
		}).Warn("Error parsing feed")
		return failure(http.StatusInternalServerError, msgInvalidXML)
	}

	log.WithFields(log.Fields{
		"feed":  req.FeedID,
		"count": len(items),
	}).Debug("Built feed response")

	return models.Envelope{
		Status: http.StatusOK,
		Items:  items,
	}
}

func failure(status int, msg string) models.Envelope {
	return models.Envelope{
		Status: status,
		Error:  msg,
	}
}
