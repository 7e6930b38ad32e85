package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MeKo-Tech/noisesynth/internal/config"
	"github.com/MeKo-Tech/noisesynth/internal/fractal"
	"github.com/MeKo-Tech/noisesynth/internal/render"
	"github.com/MeKo-Tech/noisesynth/internal/tile"
)

// OnDemandTiles renders noise tiles per request. Each generator owns its
// renderer, so the pool size bounds concurrent renders.
type OnDemandTiles struct {
	gens   chan *render.TileGenerator
	size   int
	logger *slog.Logger

	activeRenders atomic.Int32
	queuedRenders atomic.Int32
	totalRendered atomic.Int64
	totalFailed   atomic.Int64
	current       sync.Map // tile key -> start time
}

// TileStatus reports tile render activity.
type TileStatus struct {
	ActiveRenders int      `json:"active_renders"`
	QueuedRenders int      `json:"queued_renders"`
	TotalRendered int64    `json:"total_rendered"`
	TotalFailed   int64    `json:"total_failed"`
	CurrentTiles  []string `json:"current_tiles"`
}

// NewOnDemandTiles creates n generators for s.
func NewOnDemandTiles(s config.Settings, cal fractal.Calibration, n int, logger *slog.Logger) (*OnDemandTiles, error) {
	if n <= 0 {
		n = 1
	}
	t := &OnDemandTiles{
		gens:   make(chan *render.TileGenerator, n),
		size:   n,
		logger: logger,
	}
	for i := 0; i < n; i++ {
		g, err := render.NewTileGenerator(s, cal)
		if err != nil {
			return nil, fmt.Errorf("failed to init tile generator: %w", err)
		}
		t.gens <- g
	}
	return t, nil
}

// Status returns a snapshot of render activity.
func (t *OnDemandTiles) Status() TileStatus {
	current := []string{}
	t.current.Range(func(key, _ any) bool {
		current = append(current, key.(string))
		return true
	})
	sort.Strings(current)

	return TileStatus{
		ActiveRenders: int(t.activeRenders.Load()),
		QueuedRenders: int(t.queuedRenders.Load()),
		TotalRendered: t.totalRendered.Load(),
		TotalFailed:   t.totalFailed.Load(),
		CurrentTiles:  current,
	}
}

// ServeTile handles /tiles/{z}/{x}/{y}.png.
func (t *OnDemandTiles) ServeTile(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		coords, err := tileParams(r)
		if err != nil {
			s.renderError(w, r, http.StatusBadRequest, "invalid tile", err)
			return
		}

		t.queuedRenders.Add(1)
		var g *render.TileGenerator
		select {
		case g = <-t.gens:
			t.queuedRenders.Add(-1)
		case <-r.Context().Done():
			t.queuedRenders.Add(-1)
			s.renderError(w, r, http.StatusRequestTimeout, "request cancelled", r.Context().Err())
			return
		}
		defer func() { t.gens <- g }()

		key := coords.String()
		start := time.Now()
		t.activeRenders.Add(1)
		t.current.Store(key, start)

		img, err := g.Render(coords)

		t.activeRenders.Add(-1)
		t.current.Delete(key)

		if err != nil {
			t.totalFailed.Add(1)
			s.renderError(w, r, http.StatusInternalServerError, "failed to render tile", err)
			return
		}
		t.totalRendered.Add(1)
		t.logger.Debug("tile rendered on demand", "coords", key, "ms", time.Since(start).Milliseconds())

		s.writePNG(w, r, img)
	}
}

// tileParams reads z, x and y route parameters.
func tileParams(r *http.Request) (tile.Coords, error) {
	var v [3]uint32
	for i, name := range []string{"z", "x", "y"} {
		n, err := strconv.ParseUint(chi.URLParam(r, name), 10, 32)
		if err != nil {
			return tile.Coords{}, fmt.Errorf("invalid %s: %w", name, err)
		}
		v[i] = uint32(n)
	}
	c := tile.NewCoords(v[0], v[1], v[2])
	return c, c.Validate()
}
