package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/templateschile/kalifinder-search/cmd"
	"github.com/templateschile/kalifinder-search/pkg/config"
	"github.com/templateschile/kalifinder-search/pkg/log"
)

func main() {
	logger := log.ForComponent("main")

	app := &cli.Command{
		Name:  "kalifinder",
		Usage: "Embeddable product-search widget engine",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
				Value: false,
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path",
				Value: getDefaultConfigPathOrExit(logger),
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if c.Bool("debug") {
				log.SetGlobalDebug(true)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmd.InitCommand(),
			cmd.ServeCommand(),
			cmd.SearchCommand(),
			cmd.SuggestCommand(),
			cmd.HistoryCommand(),
			cmd.VersionCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func getDefaultConfigPathOrExit(logger *log.Logger) string {
	path, err := config.GetDefaultConfigPath()
	if err != nil {
		logger.Errorf("failed to get default config path: %v", err)
		os.Exit(1)
	}
	return path
}
