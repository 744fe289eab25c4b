/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"feedgrid/models"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func fetchCmd() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Fetch a configured feed once and print the JSON response",
		Description: `Runs a single feed request through the same pipeline as the
HTTP endpoint and prints the response body as JSON on stdout.

Prints all log messages to stderr. Exits non-zero when the response is an error.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "feed",
				Aliases:  []string{"f"},
				Usage:    "Feed identifier",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "date-format",
				Usage: "Date pattern for pubDate, e.g. Y-m-d",
			},
			&cli.StringFlag{
				Name:  "image-size",
				Usage: "Thumbnail width to request, e.g. 640",
			},
		},
		Action: func(ctx *cli.Context) error {
			// Keep stdout for the JSON output
			log.SetOutput(os.Stderr)

			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			svc, closeStore, err := pipeline(ctx.Context, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			env := svc.Get(ctx.Context, models.FeedRequest{
				FeedID:     ctx.String("feed"),
				DateFormat: ctx.String("date-format"),
				ImageSize:  ctx.String("image-size"),
			})

			out, err := json.Marshal(env.Body())
			if err != nil {
				return err
			}
			fmt.Fprintln(ctx.App.Writer, string(out))

			if env.Error != "" {
				return cli.Exit(fmt.Sprintf("request failed with status %d", env.Status), 1)
			}
			return nil
		},
	}
}
