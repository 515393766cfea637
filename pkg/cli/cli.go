package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "fennec",
		Usage: "Document retrieval agent for Google Drive",
		Commands: []*cli.Command{
			taskCommand(),
			chatCommand(),
			syncCommand(),
			serveCommand(),
			statsCommand(),
			resetCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
