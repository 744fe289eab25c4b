/*
Copyright © 2023 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"feedgrid/feeds"

	"github.com/urfave/cli/v2"
)

func feedsCmd() *cli.Command {
	return &cli.Command{
		Name:  "feeds",
		Usage: "List the configured feeds",
		Action: func(ctx *cli.Context) error {
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}

			resolver := feeds.NewResolver(cfg.Feeds)
			for _, id := range resolver.IDs() {
				url, _ := resolver.Resolve(id)
				fmt.Fprintf(ctx.App.Writer, "%s\t%s\n", id, url)
			}
			return nil
		},
	}
}
