package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/m-mizutani/fennec/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v3"
)

func serveCommand() *cli.Command {
	var (
		cfg      config
		schedule string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "schedule",
			Usage:       "Cron expression for periodic sync",
			Value:       "*/30 * * * *",
			Sources:     cli.EnvVars("FENNEC_SYNC_SCHEDULE"),
			Destination: &schedule,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Run the sync pipeline periodically until interrupted",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogging(ctx)
			logger := logging.From(ctx)

			pipeline, err := cfg.newPipeline(ctx)
			if err != nil {
				return err
			}

			runner := cron.New()
			if _, err := runner.AddFunc(schedule, func() {
				if report, err := pipeline.Run(ctx); err != nil {
					logger.Error("scheduled sync failed", "error", err)
				} else if report.Changed() {
					logger.Info("scheduled sync applied changes",
						"added", report.Added, "updated", report.Updated, "deleted", report.Deleted)
				}
			}); err != nil {
				return goerr.Wrap(err, "invalid schedule", goerr.V("schedule", schedule))
			}

			// First sync immediately so the store is usable before the first tick.
			if _, err := pipeline.Run(ctx); err != nil {
				return goerr.Wrap(err, "initial sync failed")
			}

			runner.Start()
			defer runner.Stop()

			fmt.Fprintf(c.Root().Writer, "sync scheduled (%s), press Ctrl-C to stop\n", schedule)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-sig:
			case <-ctx.Done():
			}

			return nil
		},
	}
}
