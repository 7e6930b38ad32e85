package server

import (
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/render"

	"github.com/MeKo-Tech/noisesynth/internal/config"
	noiserender "github.com/MeKo-Tech/noisesynth/internal/render"
)

// Status reports the render activity of the server.
type Status struct {
	Tiles         TileStatus `json:"tiles"`
	Previews      int64      `json:"previews"`
	MaxConcurrent int        `json:"max_concurrent"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"service":   "noisesynth",
	})
}

func (s *Server) bases(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, config.Names())
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	render.Status(r, http.StatusOK)
	render.JSON(w, r, Status{
		Tiles:         s.tiles.Status(),
		Previews:      s.previews.Load(),
		MaxConcurrent: s.cfg.MaxConcurrent,
	})
}

// preview renders a small image. width and height pick the size; every
// other query parameter overrides the setting of the same name.
func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	width, err := sizeParam(q, "width", s.cfg.MaxPreviewSize)
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, "invalid width", err)
		return
	}
	height, err := sizeParam(q, "height", s.cfg.MaxPreviewSize)
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, "invalid height", err)
		return
	}
	q.Del("width")
	q.Del("height")

	st, err := config.Override(s.cfg.State, q)
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, "invalid settings", err)
		return
	}
	st = st.Seeded(rand.Uint32)
	if err := st.Validate(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "invalid settings", err)
		return
	}
	settings, err := st.Resolve()
	if err != nil {
		s.renderError(w, r, http.StatusBadRequest, "invalid settings", err)
		return
	}
	if settings.ColorSource == config.ColorWarp {
		s.renderError(w, r, http.StatusBadRequest, "invalid settings", fmt.Errorf("the warp colour source needs an input image"))
		return
	}

	if !s.acquire(r.Context()) {
		s.renderError(w, r, http.StatusRequestTimeout, "request cancelled", r.Context().Err())
		return
	}
	defer s.release()

	start := time.Now()
	img, err := noiserender.RenderImage(r.Context(), noiserender.Job{
		Settings:    settings,
		Calibration: s.cfg.Calibration,
		Width:       width,
		Height:      height,
		Workers:     1,
	})
	if err != nil {
		s.renderError(w, r, http.StatusInternalServerError, "failed to render preview", err)
		return
	}
	s.previews.Add(1)
	s.logger.Debug("preview rendered", "basis", st.Basis, "size", fmt.Sprintf("%dx%d", width, height),
		"ms", time.Since(start).Milliseconds())

	w.Header().Set("X-Noise-Seed", strconv.FormatUint(uint64(st.Seed), 10))
	s.writePNG(w, r, img)
}

func sizeParam(q url.Values, key string, limit int) (int, error) {
	v := q.Get(key)
	if v == "" {
		return min(DefaultPreviewSize, limit), nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n <= 0 || n > limit {
		return 0, fmt.Errorf("%d outside 1..%d", n, limit)
	}
	return n, nil
}
