/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"feedgrid/cache"
	"feedgrid/config"
	"feedgrid/db"
	"feedgrid/feeds"
	"feedgrid/fetcher"
	"feedgrid/parser"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// loadConfig reads the config named by the global flags and applies the
// logging settings
func loadConfig(ctx *cli.Context) (*config.TomlConfig, error) {
	cfg, err := config.LoadConfig(ctx.String("config"))
	if err != nil {
		return nil, err
	}

	if level := ctx.String("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if err := configureLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		return nil, err
	}

	return cfg, nil
}

func configureLogging(level, format string) error {
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(parsed)

	if format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// pipeline wires resolver, fetcher, cache store and parser into a feed service.
// The returned closer stops background work and then releases the cache store.
func pipeline(ctx context.Context, cfg *config.TomlConfig) (*feeds.Service, func(), error) {
	f, err := fetcher.NewFromConfig(cfg.Fetcher)
	if err != nil {
		return nil, nil, err
	}

	store, err := newStore(ctx, cfg.Cache)
	if err != nil {
		return nil, nil, err
	}
	closer := storeCloser(ctx, store, cfg.Cache.TTL.Duration)

	resolver := feeds.NewResolver(cfg.Feeds)
	log.WithFields(log.Fields{
		"feeds":   resolver.IDs(),
		"backend": cfg.Cache.Backend,
		"ttl":     cfg.Cache.TTL,
	}).Info("Feed pipeline ready")

	return feeds.NewService(resolver, cache.New(store, f), parser.New()), closer, nil
}

type tidier interface {
	RunTidy(ctx context.Context, interval time.Duration)
}

var _ tidier = (*db.DB)(nil)

// storeCloser starts the store's tidy loop when it has one and returns a func
// that stops the loop before closing the store
func storeCloser(ctx context.Context, store cache.Store, interval time.Duration) func() {
	tidyCtx, stopTidy := context.WithCancel(ctx)
	tidyDone := make(chan struct{})
	if t, ok := store.(tidier); ok {
		go func() {
			defer close(tidyDone)
			t.RunTidy(tidyCtx, interval)
		}()
	} else {
		close(tidyDone)
	}

	return func() {
		stopTidy()
		<-tidyDone
		if c, ok := store.(io.Closer); ok {
			if err := c.Close(); err != nil {
				log.Warnf("Error closing cache store: %v", err)
			}
		}
	}
}

const redisConnectTimeout = 30 * time.Second

// newStore builds the cache store selected by the config
func newStore(ctx context.Context, cfg config.TomlCache) (cache.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return cache.NewMemoryStore(cfg.Size, cfg.TTL.Duration), nil
	case "redis":
		store, err := cache.ConnectRedis(ctx, cfg.RedisURL, cfg.TTL.Duration, redisConnectTimeout)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		store, err := db.NewDB(ctx, cfg.DatabaseURL, cfg.TTL.Duration)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
