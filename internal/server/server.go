// Package server serves noise previews and map tiles over HTTP.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"github.com/MeKo-Tech/noisesynth/internal/config"
	"github.com/MeKo-Tech/noisesynth/internal/fractal"
	"github.com/MeKo-Tech/noisesynth/internal/imageio"
)

// Config configures the preview server.
type Config struct {
	// State is the configuration previews and tiles start from. Its seed
	// must already be fixed.
	State       config.State
	Calibration fractal.Calibration
	// MaxConcurrent bounds simultaneous tile renders and previews each.
	MaxConcurrent  int
	MaxPreviewSize int
	RequestTimeout time.Duration
	CacheControl   string
	// MBTilesPath, when set, is an exported tileset served under /mbtiles.
	MBTilesPath string
}

// DefaultPreviewSize is the preview edge length when none is requested.
const DefaultPreviewSize = 256

// Server holds the handlers and their shared render state.
type Server struct {
	cfg    Config
	logger *slog.Logger
	tiles  *OnDemandTiles
	store  *MBTilesHandler
	sem    chan struct{}

	previews atomic.Int64
}

// ErrorResponse is the JSON body of failed API requests.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// New validates cfg and prepares the tile generators.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = runtime.NumCPU()
	}
	if cfg.MaxPreviewSize <= 0 {
		cfg.MaxPreviewSize = 1024
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 2 * time.Minute
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "no-store"
	}
	if cfg.State.RandomSeed {
		return nil, errors.New("server state needs a fixed seed")
	}
	if err := cfg.State.Validate(); err != nil {
		return nil, err
	}
	settings, err := cfg.State.Resolve()
	if err != nil {
		return nil, err
	}

	tiles, err := NewOnDemandTiles(settings, cfg.Calibration, cfg.MaxConcurrent, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		tiles:  tiles,
		sem:    make(chan struct{}, cfg.MaxConcurrent),
	}

	if cfg.MBTilesPath != "" {
		s.store, err = NewMBTilesHandler(cfg.MBTilesPath, logger)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Close releases the tileset reader.
func (s *Server) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

func middlewares(timeout time.Duration) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Noise-Seed"},
			AllowCredentials: false,
			MaxAge:           300,
		}),
		middleware.Timeout(timeout),
	}
}

// Routes builds the router.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()
	for _, m := range middlewares(s.cfg.RequestTimeout) {
		r.Use(m)
	}
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/health", s.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/bases", s.bases)
		r.Get("/status", s.status)
		r.Get("/preview.png", s.preview)
	})

	r.Get("/tiles/{z}/{x}/{y}.png", s.tiles.ServeTile(s))

	if s.store != nil {
		r.Get("/mbtiles/metadata", s.store.ServeMetadata(s))
		r.Get("/mbtiles/{z}/{x}/{y}.png", s.store.ServeTile(s))
	}
	return r
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Routes(), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving noise previews", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// acquire takes a render slot, giving up when the request ends.
func (s *Server) acquire(ctx context.Context) bool {
	select {
	case s.sem <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Server) release() { <-s.sem }

func (s *Server) writePNG(w http.ResponseWriter, r *http.Request, img image.Image) {
	var buf bytes.Buffer
	if err := imageio.Encode(&buf, img, imageio.PNG); err != nil {
		s.renderError(w, r, http.StatusInternalServerError, "failed to encode image", err)
		return
	}
	s.writeBytes(w, buf.Bytes())
}

func (s *Server) writeBytes(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", s.cfg.CacheControl)
	if _, err := w.Write(data); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	resp := ErrorResponse{Error: message, Code: status, Message: message}
	if err != nil {
		if status >= 500 {
			s.logger.Error("request failed", "error", err, "message", message, "path", r.URL.Path)
			resp.Error = "Internal server error"
		} else {
			resp.Message = fmt.Sprintf("%s: %v", message, err)
		}
	}
	render.Status(r, status)
	render.JSON(w, r, resp)
}
