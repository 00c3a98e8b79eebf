// Package kiosk parses kiosk flags and launches the edge client daemon.
package kiosk

import (
	"context"
	"flag"

	entrypoint "github.com/ppoulin/vitrine/internal/platform/cmd"
	app "github.com/ppoulin/vitrine/internal/services/kiosk/app"
)

// Config holds kiosk command configuration.
type Config struct {
	Port int `env:"VITRINE_KIOSK_PORT" envDefault:"8081"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The kiosk HTTP server port")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the kiosk daemon.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceKiosk, func(context.Context) error {
		return app.Run(ctx, cfg.Port)
	})
}
