package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func syncCommand() *cli.Command {
	var cfg config

	flags := append([]cli.Flag{}, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "sync",
		Usage: "Synchronize the vector store with the drive folder once",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogging(ctx)

			pipeline, err := cfg.newPipeline(ctx)
			if err != nil {
				return err
			}

			report, err := pipeline.Run(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer,
				"sync finished: %d files (%d added, %d updated, %d deleted, %d skipped, %d failed)\n",
				report.Total, report.Added, report.Updated, report.Deleted, report.Skipped, report.Failed)
			return nil
		},
	}
}
