package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/MeKo-Tech/noisesynth/internal/mbtiles"
)

// MBTilesHandler serves tiles from an exported MBTiles database.
type MBTilesHandler struct {
	reader *mbtiles.Reader
	logger *slog.Logger
}

// NewMBTilesHandler opens the tileset at path.
func NewMBTilesHandler(path string, logger *slog.Logger) (*MBTilesHandler, error) {
	reader, err := mbtiles.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MBTiles: %w", err)
	}
	meta, err := reader.Metadata()
	if err != nil {
		reader.Close()
		return nil, err
	}
	logger.Info("serving tileset", "path", path, "name", meta.Name, "minzoom", meta.MinZoom, "maxzoom", meta.MaxZoom)

	return &MBTilesHandler{reader: reader, logger: logger}, nil
}

// ServeTile handles /mbtiles/{z}/{x}/{y}.png.
func (h *MBTilesHandler) ServeTile(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		coords, err := tileParams(r)
		if err != nil {
			s.renderError(w, r, http.StatusBadRequest, "invalid tile", err)
			return
		}

		data, err := h.reader.ReadTile(coords)
		if errors.Is(err, mbtiles.ErrTileNotFound) {
			s.renderError(w, r, http.StatusNotFound, "tile not found", err)
			return
		}
		if err != nil {
			s.renderError(w, r, http.StatusInternalServerError, "failed to read tile", err)
			return
		}
		s.writeBytes(w, data)
	}
}

// ServeMetadata handles /mbtiles/metadata.
func (h *MBTilesHandler) ServeMetadata(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meta, err := h.reader.Metadata()
		if err != nil {
			s.renderError(w, r, http.StatusInternalServerError, "failed to read metadata", err)
			return
		}
		render.Status(r, http.StatusOK)
		render.JSON(w, r, meta)
	}
}

// Close closes the reader.
func (h *MBTilesHandler) Close() error {
	return h.reader.Close()
}
