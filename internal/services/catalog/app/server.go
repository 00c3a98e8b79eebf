// Package app wires the catalog runtime and HTTP lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppoulin/vitrine/internal/auth/session"
	"github.com/ppoulin/vitrine/internal/platform/config"
	"github.com/ppoulin/vitrine/internal/services/catalog/api/rest"
	"github.com/ppoulin/vitrine/internal/services/catalog/storage/assets"
	catalogsqlite "github.com/ppoulin/vitrine/internal/services/catalog/storage/sqlite"
)

// shutdownTimeout bounds the graceful HTTP drain on context cancellation.
const shutdownTimeout = 10 * time.Second

type serverEnv struct {
	DBPath        string `env:"VITRINE_CATALOG_DB_PATH"`
	AssetRoot     string `env:"VITRINE_ASSET_ROOT"`
	AdminUser     string `env:"VITRINE_ADMIN_USER"`
	AdminPassword string `env:"VITRINE_ADMIN_PASSWORD"`
}

func loadServerEnv() serverEnv {
	var cfg serverEnv
	_ = config.ParseEnv(&cfg)
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "catalog.db")
	}
	if strings.TrimSpace(cfg.AssetRoot) == "" {
		cfg.AssetRoot = filepath.Join("data", "assets")
	}
	return cfg
}

// Server hosts the catalog HTTP API and storage lifecycle.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *catalogsqlite.Store
}

// New creates a configured catalog server listening on the provided port.
func New(port int) (*Server, error) {
	return NewWithAddr(fmt.Sprintf(":%d", port))
}

// NewWithAddr creates a configured catalog server for the provided address.
func NewWithAddr(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	env := loadServerEnv()
	store, err := catalogsqlite.Open(env.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	blobStore, err := assets.Open(env.AssetRoot)
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, err
	}

	sessionCfg, err := session.LoadConfigFromEnv(nil)
	if err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, err
	}

	handler := rest.NewHandler(store, store, blobStore, sessionCfg, rest.AdminCredentials{
		Username: env.AdminUser,
		Password: env.AdminPassword,
	})

	return &Server{
		listener: listener,
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		store: store,
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a catalog server until context cancellation.
func Run(ctx context.Context, port int) error {
	server, err := New(port)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the HTTP server until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("catalog server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		err := <-serveErr
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close releases the server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close catalog store: %v", err)
		}
	}
}
