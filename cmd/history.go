package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/templateschile/kalifinder-search/pkg/config"
	"github.com/templateschile/kalifinder-search/pkg/history"
)

// HistoryCommand creates the history command
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show or clear the recent-search history",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "clear",
				Usage: "Clear the history instead of listing it",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return showHistory(c.String("config"), c.Bool("clear"))
		},
	}
}

func showHistory(configPath string, clear bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := history.Open(cfg.HistoryDB)
	if err != nil {
		return fmt.Errorf("opening history database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Printf("Warning: failed to close history database: %v\n", err)
		}
	}()

	if clear {
		if err := store.Clear(); err != nil {
			return fmt.Errorf("clearing history: %w", err)
		}
		fmt.Println("Search history cleared")
		return nil
	}

	searches, err := store.Recent()
	if err != nil {
		return fmt.Errorf("reading history: %w", err)
	}

	if len(searches) == 0 {
		fmt.Println("No recent searches")
		return nil
	}

	for i, q := range searches {
		fmt.Printf("%d. %s\n", i+1, q)
	}
	return nil
}
