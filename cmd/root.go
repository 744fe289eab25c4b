/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/urfave/cli/v2"
)

func RootApp() *cli.App {
	return &cli.App{
		Name:  "feedgrid",
		Usage: "A JSON API for configured RSS feeds",
		Description: `Serves a small allow-list of RSS feeds as JSON for a
		front-end feed grid block.

		Feedgrid fetches the upstream RSS document, caches it for an hour,
		extracts every item including media, content and dublin core fields,
		formats publication dates and rewrites thumbnail sizes on request.

		Flags can generally be set via environment variables, e.g.:

		--config => FEEDGRID_CONFIG=feedgrid.toml
		--port => FEEDGRID_PORT=8080
		`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML configuration file",
				EnvVars: []string{"FEEDGRID_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error), overrides the config file",
				EnvVars: []string{"FEEDGRID_LOG_LEVEL"},
			},
		},
		Commands: []*cli.Command{
			serveCmd(),
			fetchCmd(),
			feedsCmd(),
		},
		Action: func(ctx *cli.Context) error {
			// Show help if no command is specified
			return ctx.App.Run([]string{"", "help"})
		},
	}
}
