package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/templateschile/kalifinder-search/pkg/backend"
	"github.com/templateschile/kalifinder-search/pkg/config"
	"github.com/templateschile/kalifinder-search/pkg/core"
	"github.com/templateschile/kalifinder-search/pkg/facets"
)

// Define styles using lipgloss
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	productStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1).
			Margin(0, 0, 1, 2)

	priceStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))

	saleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	facetHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("32")).
				Margin(1, 0, 0, 0)
)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Run a one-shot product search against the store",
		ArgsUsage: "[query]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "category",
				Usage: "Filter by category. Can be used multiple times",
			},
			&cli.StringSliceFlag{
				Name:  "brand",
				Usage: "Filter by brand. Can be used multiple times",
			},
			&cli.StringSliceFlag{
				Name:  "color",
				Usage: "Filter by color. Can be used multiple times",
			},
			&cli.BoolFlag{
				Name:  "insale",
				Usage: "Only products on sale",
			},
			&cli.StringFlag{
				Name:  "sort",
				Usage: "Sort order (relevance, featured, price_asc, price_desc, newest)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of results",
				Value: 12,
			},
			&cli.IntFlag{
				Name:  "page",
				Usage: "Result page",
				Value: 1,
			},
			&cli.BoolFlag{
				Name:  "facets",
				Usage: "Show facet counts alongside results",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the raw JSON response",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			req := backend.SearchRequest{
				Query:      strings.Join(c.Args().Slice(), " "),
				Page:       c.Int("page"),
				Limit:      c.Int("limit"),
				Categories: c.StringSlice("category"),
				Brands:     c.StringSlice("brand"),
				Colors:     c.StringSlice("color"),
				Sort:       c.String("sort"),
			}
			if c.Bool("insale") {
				v := true
				req.InSale = &v
			}
			return searchProducts(ctx, c.String("config"), req, c.Bool("facets"), c.Bool("json"))
		},
	}
}

// searchProducts runs one search request and renders the response.
func searchProducts(ctx context.Context, configPath string, req backend.SearchRequest, showFacets, asJSON bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	client := backend.NewClient(cfg.APIBase, cfg.StoreURL, cfg.RequestTimeout.Duration)
	resp, err := client.Search(ctx, req)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if asJSON {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding response: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	header := fmt.Sprintf("%d results", resp.Total)
	if req.Query != "" {
		header = fmt.Sprintf("%d results for %q", resp.Total, req.Query)
	}
	fmt.Println(titleStyle.Render(header))

	if len(resp.Products) == 0 {
		fmt.Println(metaStyle.Render("No products found"))
		return nil
	}

	for i, p := range resp.Products {
		fmt.Print(productStyle.Render(renderProduct(i+1, p, resp.Currency)))
		fmt.Println()
	}

	if resp.HasMore {
		fmt.Println(metaStyle.Render(fmt.Sprintf("More results available (page %d shown)", req.Page)))
	}

	if showFacets {
		renderFacets(resp.Facets)
	}

	return nil
}

func renderProduct(n int, p core.Product, currency string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%d. %s", n, p.Title)
	if p.Vendor != "" {
		fmt.Fprintf(&b, "  %s", metaStyle.Render(p.Vendor))
	}
	b.WriteString("\n")

	price := strings.TrimSpace(fmt.Sprintf("%.2f %s", p.Price, currency))
	if p.OnSale && p.CompareAtPrice > p.Price {
		b.WriteString(saleStyle.Render(price))
		fmt.Fprintf(&b, "  %s", metaStyle.Render(fmt.Sprintf("was %.2f", p.CompareAtPrice)))
	} else {
		b.WriteString(priceStyle.Render(price))
	}

	if !p.Available {
		fmt.Fprintf(&b, "  %s", metaStyle.Render("out of stock"))
	}
	if p.URL != "" {
		fmt.Fprintf(&b, "\n%s", metaStyle.Render(p.URL))
	}
	return b.String()
}

// renderFacets prints bucket counts per dimension, skipping dimensions
// the response did not aggregate.
func renderFacets(payload map[string]json.RawMessage) {
	titleCaser := cases.Title(language.English)

	for _, dim := range core.SetDimensions() {
		counts := facets.ParseDimensionCounts(payload, dim)
		if len(counts) == 0 {
			continue
		}

		fmt.Println(facetHeaderStyle.Render(titleCaser.String(facets.FieldFor(dim))))
		for _, entry := range sortedCounts(counts) {
			fmt.Printf("  %s (%d)\n", entry.key, entry.count)
		}
	}
}

type countEntry struct {
	key   string
	count int
}

func sortedCounts(counts map[string]int) []countEntry {
	entries := make([]countEntry, 0, len(counts))
	for k, v := range counts {
		entries = append(entries, countEntry{k, v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].key < entries[j].key
	})
	return entries
}
