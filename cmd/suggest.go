package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/templateschile/kalifinder-search/pkg/backend"
	"github.com/templateschile/kalifinder-search/pkg/config"
)

// SuggestCommand creates the suggest command
func SuggestCommand() *cli.Command {
	return &cli.Command{
		Name:      "suggest",
		Usage:     "Fetch autocomplete suggestions for a partial query",
		ArgsUsage: "<query>",
		Action: func(ctx context.Context, c *cli.Command) error {
			query := strings.Join(c.Args().Slice(), " ")
			if query == "" {
				return fmt.Errorf("a query is required")
			}
			return suggest(ctx, c.String("config"), query)
		},
	}
}

func suggest(ctx context.Context, configPath, query string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	client := backend.NewClient(cfg.APIBase, cfg.StoreURL, cfg.RequestTimeout.Duration)
	suggestions, err := client.Autocomplete(ctx, query)
	if err != nil {
		return fmt.Errorf("fetching suggestions: %w", err)
	}

	if len(suggestions) == 0 {
		fmt.Printf("No suggestions for %q\n", query)
		return nil
	}

	for i, s := range suggestions {
		fmt.Printf("%d. %s\n", i+1, s.Title)
	}
	return nil
}
