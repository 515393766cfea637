package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/m-mizutani/fennec/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func taskCommand() *cli.Command {
	var (
		cfg           config
		maxIterations int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "max-iterations",
			Aliases:     []string{"n"},
			Usage:       "Maximum number of agent loop iterations (1-10)",
			Value:       0,
			Destination: &maxIterations,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, agentFlags(&cfg)...)

	return &cli.Command{
		Name:      "task",
		Usage:     "Run one agent task and print the answer",
		ArgsUsage: "<prompt>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.setupLogging(ctx)

			prompt := c.Args().First()
			if prompt == "" {
				return goerr.New("prompt argument is required")
			}

			orchestrator, err := cfg.newOrchestrator(ctx)
			if err != nil {
				return err
			}

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
			sp.Suffix = " working..."
			sp.Start()
			result, err := orchestrator.ExecuteTask(ctx, prompt, int(maxIterations))
			sp.Stop()
			if err != nil {
				return err
			}

			printResult(c, result)
			return nil
		},
	}
}

func printResult(c *cli.Command, result *model.TaskResult) {
	w := c.Root().Writer
	fmt.Fprintf(w, "%s\n", result.Answer)
	if len(result.ToolCalls) > 0 {
		fmt.Fprintf(w, "\n--- %d tool call(s), %d iteration(s) ---\n",
			len(result.ToolCalls), result.Iterations)
		for i, call := range result.ToolCalls {
			fmt.Fprintf(w, "%d. %s(%v)\n", i+1, call.Name, call.Args)
		}
	}
}
