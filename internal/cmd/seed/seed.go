// Package seed parses seeding flags and runs the catalog seeder.
package seed

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/ppoulin/vitrine/internal/tools/seed"
)

// Config holds seed command configuration.
type Config struct {
	SeedConfig seed.Config
	List       bool
}

// EnvLookup returns the value for a key when present.
type EnvLookup func(string) (string, bool)

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string, lookup EnvLookup) (Config, error) {
	seedCfg := seed.DefaultConfig()
	seedCfg.OriginURL = envOrDefault(lookup, "VITRINE_ORIGIN_URL", seedCfg.OriginURL)
	seedCfg.Username = envOrDefault(lookup, "VITRINE_ADMIN_USER", seedCfg.Username)
	seedCfg.Password = envOrDefault(lookup, "VITRINE_ADMIN_PASSWORD", seedCfg.Password)
	var list bool

	fs.StringVar(&seedCfg.OriginURL, "origin", seedCfg.OriginURL, "catalog origin base URL")
	fs.StringVar(&seedCfg.Username, "user", seedCfg.Username, "admin username")
	fs.StringVar(&seedCfg.Password, "password", seedCfg.Password, "admin password")
	fs.StringVar(&seedCfg.Set, "set", seedCfg.Set, "fixture set to load")
	fs.BoolVar(&seedCfg.Verbose, "v", false, "verbose output")
	fs.BoolVar(&list, "list", false, "list available fixture sets")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	return Config{SeedConfig: seedCfg, List: list}, nil
}

// Run executes the seed command.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if cfg.List {
		fmt.Fprintln(out, "Available fixture sets:")
		for _, name := range seed.ListSets() {
			fmt.Fprintf(out, "  %s\n", name)
		}
		return nil
	}

	seedCfg := cfg.SeedConfig
	seedCfg.Out = out
	return seed.Run(ctx, seedCfg)
}

func envOrDefault(lookup EnvLookup, key, fallback string) string {
	if lookup == nil {
		return fallback
	}
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}
