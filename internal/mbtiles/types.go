// Package mbtiles stores exported noise tiles in MBTiles databases.
package mbtiles

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// presetKey holds the preset the tileset was rendered from, so an export
// can be reproduced.
const presetKey = "noisesynth:preset"

// Metadata contains the MBTiles metadata rows of a noise tileset.
type Metadata struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Format      string    `json:"format"` // always png for noise tiles
	Type        string    `json:"type,omitempty"`
	Version     string    `json:"version,omitempty"`
	Bounds      orb.Bound `json:"bounds"`
	Center      orb.Point `json:"center"`
	CenterZoom  int       `json:"center_zoom"`
	MinZoom     int       `json:"minzoom"`
	MaxZoom     int       `json:"maxzoom"`
	// Preset is the YAML preset the tiles were rendered from.
	Preset string `json:"preset,omitempty"`
}

// NewMetadata fills bounds, centre and zoom range for a bbox export.
func NewMetadata(name string, bbox [4]float64, minZoom, maxZoom int) Metadata {
	b := orb.Bound{Min: orb.Point{bbox[0], bbox[1]}, Max: orb.Point{bbox[2], bbox[3]}}
	return Metadata{
		Name:       name,
		Format:     "png",
		Type:       "overlay",
		Version:    "1.0",
		Bounds:     b,
		Center:     b.Center(),
		CenterZoom: minZoom,
		MinZoom:    minZoom,
		MaxZoom:    maxZoom,
	}
}

// rows converts m to metadata rows.
func (m Metadata) rows() map[string]string {
	out := map[string]string{
		"minzoom": strconv.Itoa(m.MinZoom),
		"maxzoom": strconv.Itoa(m.MaxZoom),
	}
	set := func(k, v string) {
		if v != "" {
			out[k] = v
		}
	}
	set("name", m.Name)
	set("description", m.Description)
	set("format", m.Format)
	set("type", m.Type)
	set("version", m.Version)
	set(presetKey, m.Preset)

	if !m.Bounds.IsEmpty() {
		out["bounds"] = fmt.Sprintf("%.6f,%.6f,%.6f,%.6f",
			m.Bounds.Min.Lon(), m.Bounds.Min.Lat(), m.Bounds.Max.Lon(), m.Bounds.Max.Lat())
		out["center"] = fmt.Sprintf("%.6f,%.6f,%d", m.Center.Lon(), m.Center.Lat(), m.CenterZoom)
	}
	return out
}

// parseRows is the inverse of rows. Malformed numeric rows are errors.
func parseRows(rows map[string]string) (Metadata, error) {
	m := Metadata{
		Name:        rows["name"],
		Description: rows["description"],
		Format:      rows["format"],
		Type:        rows["type"],
		Version:     rows["version"],
		Preset:      rows[presetKey],
	}

	var err error
	if v, ok := rows["minzoom"]; ok {
		if m.MinZoom, err = strconv.Atoi(v); err != nil {
			return Metadata{}, fmt.Errorf("invalid minzoom %q: %w", v, err)
		}
	}
	if v, ok := rows["maxzoom"]; ok {
		if m.MaxZoom, err = strconv.Atoi(v); err != nil {
			return Metadata{}, fmt.Errorf("invalid maxzoom %q: %w", v, err)
		}
	}

	if v, ok := rows["bounds"]; ok {
		f, err := parseFloats(v, 4)
		if err != nil {
			return Metadata{}, fmt.Errorf("invalid bounds: %w", err)
		}
		m.Bounds = orb.Bound{Min: orb.Point{f[0], f[1]}, Max: orb.Point{f[2], f[3]}}
	}
	if v, ok := rows["center"]; ok {
		f, err := parseFloats(v, 3)
		if err != nil {
			return Metadata{}, fmt.Errorf("invalid center: %w", err)
		}
		m.Center = orb.Point{f[0], f[1]}
		m.CenterZoom = int(f[2])
	}
	return m, nil
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d values in %q", n, s)
	}
	out := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
