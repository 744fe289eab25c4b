/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"feedgrid/server"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// serveCmd represents the serve command
func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the feed API",
		Description: `Starts the feedgrid HTTP server.

Serves GET /<api_namespace>/xml-feed?feed=<id>&dateFormat=<pattern>&imageSize=<size>
together with /healthz and /metrics. Only feeds listed in the config file
can be requested.`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on, overrides the config file",
				EnvVars: []string{"FEEDGRID_PORT"},
			},
		},
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			if ctx.IsSet("port") {
				cfg.Server.Port = ctx.Int("port")
			}

			svc, closeStore, err := pipeline(ctx.Context, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			app := server.Server(&server.ServerConfig{
				APINamespace: cfg.Server.APINamespace,
				AllowOrigins: cfg.Server.AllowOrigins,
				Feeds:        svc,
			})

			// Graceful shutdown
			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigs)

			go func() {
				<-sigs
				log.Info("Gracefully shutting down...")
				if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
					log.Errorf("Error shutting down server: %v", err)
				}
			}()

			log.WithFields(log.Fields{
				"port": cfg.Server.Port,
				"path": server.FeedPath(cfg.Server.APINamespace),
			}).Info("Starting server")

			if err := app.Listen(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
				return fmt.Errorf("server stopped: %w", err)
			}

			log.Info("Done!")
			return nil
		},
	}
}
