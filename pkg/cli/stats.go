package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func statsCommand() *cli.Command {
	var cfg config

	flags := append([]cli.Flag{}, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "stats",
		Usage: "Show vector store statistics",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogging(ctx)

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}
			store, err := cfg.newStore(ctx, gemini)
			if err != nil {
				return err
			}

			stats, err := store.GetStats(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "collection %q: %d document(s)\n", stats.Name, stats.Count)
			return nil
		},
	}
}

func resetCommand() *cli.Command {
	var (
		cfg   config
		force bool
	)

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "force",
			Aliases:     []string{"f"},
			Usage:       "Skip the safety check",
			Destination: &force,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "reset",
		Usage: "Empty the vector store collection",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogging(ctx)

			if !force {
				return goerr.New("refusing to reset without --force")
			}

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}
			store, err := cfg.newStore(ctx, gemini)
			if err != nil {
				return err
			}

			if err := store.Reset(ctx); err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "collection emptied\n")
			return nil
		},
	}
}
