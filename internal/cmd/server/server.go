// Package server parses catalog origin flags and launches the service.
package server

import (
	"context"
	"flag"

	entrypoint "github.com/ppoulin/vitrine/internal/platform/cmd"
	app "github.com/ppoulin/vitrine/internal/services/catalog/app"
)

// Config holds catalog origin command configuration.
type Config struct {
	Port int `env:"VITRINE_SERVER_PORT" envDefault:"8080"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The catalog HTTP server port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the catalog origin service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(context.Context) error {
		return app.Run(ctx, cfg.Port)
	})
}
