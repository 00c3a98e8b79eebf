// Package seed loads demo catalog data into a running origin server by
// exercising the public admin API end to end.
package seed

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/ppoulin/vitrine/internal/catalog"
	"github.com/ppoulin/vitrine/internal/services/kiosk/origin"
)

// Config holds seeding configuration.
type Config struct {
	OriginURL string
	Username  string
	Password  string
	Set       string
	Verbose   bool
	Out       io.Writer
}

// DefaultConfig returns a Config pointing at a local origin.
func DefaultConfig() Config {
	return Config{
		OriginURL: "http://localhost:8080",
		Set:       "demo",
		Out:       io.Discard,
	}
}

// fixtureSet is a named batch of demo data.
type fixtureSet struct {
	products []catalog.CreateProductInput
	pdfs     []catalog.CreateWeeklyPDFInput
}

var fixtureSets = map[string]fixtureSet{
	"demo": {
		products: []catalog.CreateProductInput{
			{Name: "Sourdough Loaf", Description: "Baked every morning", Price: 6.50, Category: catalog.CategoryBakery, Featured: true, Order: 1},
			{Name: "Dry-Aged Ribeye", Description: "28 days, AAA", Price: 32.00, Category: catalog.CategoryButcher, Featured: true, Order: 2},
			{Name: "House Prosciutto", Description: "Sliced to order", Price: 9.75, Category: catalog.CategoryDeli, Featured: true, Order: 3},
			{Name: "Heirloom Tomatoes", Description: "Local when in season", Price: 4.25, Category: catalog.CategoryGrocery},
			{Name: "Maple Syrup 500ml", Description: "Dark, robust taste", Price: 11.00, Category: catalog.CategorySeasonal},
		},
		pdfs: []catalog.CreateWeeklyPDFInput{
			{Name: "Weekly Specials", URL: "/assets/pdfs/specials.pdf", Week: currentWeek(), Year: time.Now().Year()},
		},
	},
	"minimal": {
		products: []catalog.CreateProductInput{
			{Name: "Baguette", Price: 3.50, Category: catalog.CategoryBakery},
		},
	},
}

// ListSets returns the available fixture set names, sorted.
func ListSets() []string {
	names := make([]string, 0, len(fixtureSets))
	for name := range fixtureSets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run seeds the origin with the configured fixture set.
func Run(ctx context.Context, cfg Config) error {
	set, ok := fixtureSets[cfg.Set]
	if !ok {
		return fmt.Errorf("unknown fixture set %q (available: %v)", cfg.Set, ListSets())
	}
	out := cfg.Out
	if out == nil {
		out = io.Discard
	}

	client, err := origin.New(cfg.OriginURL)
	if err != nil {
		return err
	}
	if _, err := client.Login(ctx, cfg.Username, cfg.Password); err != nil {
		return fmt.Errorf("admin login: %w", err)
	}

	for _, input := range set.products {
		created, err := client.CreateProduct(ctx, input)
		if err != nil {
			return fmt.Errorf("create product %q: %w", input.Name, err)
		}
		if cfg.Verbose {
			fmt.Fprintf(out, "created product %s (%s)\n", created.Name, created.ID)
		}
	}
	for _, input := range set.pdfs {
		created, err := client.CreateWeeklyPDF(ctx, input)
		if err != nil {
			return fmt.Errorf("create flyer %q: %w", input.Name, err)
		}
		if cfg.Verbose {
			fmt.Fprintf(out, "created flyer %s (%s)\n", created.Name, created.ID)
		}
	}

	fmt.Fprintf(out, "seeded %d products and %d flyers from set %q\n",
		len(set.products), len(set.pdfs), cfg.Set)
	return nil
}

func currentWeek() int {
	_, week := time.Now().ISOWeek()
	return week
}
