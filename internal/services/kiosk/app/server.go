// Package app wires the kiosk runtime: the local cache, the resource
// hooks, and the HTTP surface that serves the cached catalog.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/ppoulin/vitrine/internal/catalog"
	"github.com/ppoulin/vitrine/internal/platform/config"
	"github.com/ppoulin/vitrine/internal/services/kiosk/cache"
	"github.com/ppoulin/vitrine/internal/services/kiosk/origin"
	"github.com/ppoulin/vitrine/internal/services/kiosk/resource"
)

const (
	// shutdownTimeout bounds the graceful HTTP drain on context
	// cancellation.
	shutdownTimeout = 10 * time.Second
	// defaultRefreshInterval is how often hooks re-check the origin when
	// no cadence is configured. The persisted fresh window still throttles
	// the actual probes.
	defaultRefreshInterval = 15 * time.Minute
)

type kioskEnv struct {
	OriginURL       string        `env:"VITRINE_ORIGIN_URL"`
	CachePath       string        `env:"VITRINE_KIOSK_CACHE_PATH"`
	RefreshInterval time.Duration `env:"VITRINE_KIOSK_REFRESH_INTERVAL"`
}

func loadKioskEnv() kioskEnv {
	var cfg kioskEnv
	_ = config.ParseEnv(&cfg)
	if strings.TrimSpace(cfg.CachePath) == "" {
		if path, err := xdg.DataFile(filepath.Join("vitrine", "kiosk.db")); err == nil {
			cfg.CachePath = path
		} else {
			cfg.CachePath = filepath.Join("data", "kiosk.db")
		}
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaultRefreshInterval
	}
	return cfg
}

// Server hosts the kiosk HTTP surface over the local cache.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	store      *cache.Store
	products   *resource.ProductsHook
	pdfs       *resource.PDFsHook
	session    *resource.SessionHook
	refresh    time.Duration
}

// New creates a configured kiosk server listening on the provided port.
func New(port int) (*Server, error) {
	return NewWithAddr(fmt.Sprintf(":%d", port))
}

// NewWithAddr creates a configured kiosk server for the provided address.
func NewWithAddr(addr string) (*Server, error) {
	env := loadKioskEnv()
	if strings.TrimSpace(env.OriginURL) == "" {
		return nil, errors.New("VITRINE_ORIGIN_URL is required")
	}

	client, err := origin.New(env.OriginURL)
	if err != nil {
		return nil, err
	}

	store, err := cache.Open(env.CachePath)
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	server := &Server{
		listener: listener,
		store:    store,
		products: resource.NewProductsHook(store, client, resource.NewBroadcast[[]catalog.Product]()),
		pdfs:     resource.NewPDFsHook(store, client, resource.NewBroadcast[[]catalog.WeeklyPDF]()),
		session:  resource.NewSessionHook(client),
		refresh:  env.RefreshInterval,
	}
	server.httpServer = &http.Server{
		Handler:           server.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a kiosk server until context cancellation.
func Run(ctx context.Context, port int) error {
	server, err := New(port)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve mounts the hooks, starts the revalidation loop, and serves HTTP
// until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	// Hooks mount lazily on first request; a valid cached copy makes that
	// first answer instant even when the origin is down.
	go s.revalidateLoop(ctx)

	log.Printf("kiosk serving cached catalog at %v", s.listener.Addr())
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

// revalidateLoop re-checks the origin on the configured cadence. The
// hooks' persisted fresh windows keep redundant probes off the wire.
func (s *Server) revalidateLoop(ctx context.Context) {
	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.products.Revalidate(ctx)
			s.pdfs.Revalidate(ctx)
		}
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /catalog/products", func(w http.ResponseWriter, r *http.Request) {
		s.products.Mount(r.Context())
		writeSnapshot(w, s.products.Snapshot())
	})
	mux.HandleFunc("GET /catalog/products/featured", func(w http.ResponseWriter, r *http.Request) {
		s.products.Mount(r.Context())
		snap := s.products.Snapshot()
		writeSnapshot(w, resource.Snapshot[[]catalog.Product]{
			State:      snap.State,
			Data:       catalog.FeaturedProducts(snap.Data),
			HasData:    snap.HasData,
			Err:        snap.Err,
			LastUpdate: snap.LastUpdate,
		})
	})
	mux.HandleFunc("GET /catalog/pdfs", func(w http.ResponseWriter, r *http.Request) {
		s.pdfs.Mount(r.Context())
		writeSnapshot(w, s.pdfs.Snapshot())
	})
	mux.HandleFunc("GET /catalog/pdfs/latest", func(w http.ResponseWriter, r *http.Request) {
		s.pdfs.Mount(r.Context())
		snap := s.pdfs.Snapshot()
		latest, ok := catalog.LatestWeeklyPDF(snap.Data)
		if !ok {
			writeSnapshot(w, resource.Snapshot[[]catalog.WeeklyPDF]{
				State: snap.State,
				Err:   snap.Err,
			})
			return
		}
		writeSnapshot(w, resource.Snapshot[catalog.WeeklyPDF]{
			State:      snap.State,
			Data:       latest,
			HasData:    true,
			Err:        snap.Err,
			LastUpdate: snap.LastUpdate,
		})
	})
	mux.HandleFunc("POST /admin/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
			return
		}
		if err := s.session.Login(r.Context(), body.Username, body.Password); err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"state": string(resource.SessionAuthenticated)})
	})
	mux.HandleFunc("GET /admin/session", func(w http.ResponseWriter, r *http.Request) {
		state := s.session.Check(r.Context())
		status := http.StatusOK
		if state != resource.SessionAuthenticated {
			status = http.StatusUnauthorized
		}
		snap := s.session.Snapshot()
		writeJSON(w, status, map[string]string{
			"state":   string(snap.State),
			"subject": snap.Subject,
		})
	})
	mux.HandleFunc("POST /admin/logout", func(w http.ResponseWriter, r *http.Request) {
		s.session.Logout()
		writeJSON(w, http.StatusOK, map[string]string{"state": string(resource.SessionUnauthenticated)})
	})
	mux.HandleFunc("POST /catalog/refresh", func(w http.ResponseWriter, r *http.Request) {
		s.products.Refresh(r.Context())
		s.pdfs.Refresh(r.Context())
		writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
	})
	return mux
}

// snapshotBody is the kiosk wire shape: state flags ride alongside the
// data so consumers can render staleness notices.
type snapshotBody[T any] struct {
	State      string `json:"state"`
	Data       T      `json:"data"`
	Notice     string `json:"notice,omitempty"`
	LastUpdate *int64 `json:"lastUpdate,omitempty"`
}

func writeSnapshot[T any](w http.ResponseWriter, snap resource.Snapshot[T]) {
	body := snapshotBody[T]{
		State:  string(snap.State),
		Data:   snap.Data,
		Notice: snap.Err,
	}
	if !snap.LastUpdate.IsZero() {
		millis := snap.LastUpdate.UnixMilli()
		body.LastUpdate = &millis
	}
	status := http.StatusOK
	if snap.State == resource.StateError {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("encode kiosk response: %v", err)
	}
}

// Close releases the kiosk resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.products != nil {
		s.products.Close()
	}
	if s.pdfs != nil {
		s.pdfs.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close kiosk cache: %v", err)
		}
	}
}
