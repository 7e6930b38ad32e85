// Package tile handles XYZ web-map tile addressing for noise tile export.
package tile

import (
	"fmt"
	"image"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// Size is the edge length of an exported tile in pixels.
const Size = 256

// MaxZoom bounds the zoom levels accepted by export and the tile server.
const MaxZoom = 22

// Coords represents a tile coordinate in the Web Mercator tile system (z/x/y)
type Coords struct {
	Z uint32 // Zoom level
	X uint32 // X coordinate (column)
	Y uint32 // Y coordinate (row)
}

// String returns the tile coordinate as a string in format "z{zoom}_x{x}_y{y}"
func (c Coords) String() string {
	return fmt.Sprintf("z%d_x%d_y%d", c.Z, c.X, c.Y)
}

// NewCoords creates a new Coords from zoom, x, y values
func NewCoords(z, x, y uint32) Coords {
	return Coords{Z: z, X: x, Y: y}
}

// ParseCoords parses a tile string like "z13_x4297_y2754" into Coords
func ParseCoords(s string) (Coords, error) {
	var c Coords
	_, err := fmt.Sscanf(s, "z%d_x%d_y%d", &c.Z, &c.X, &c.Y)
	if err != nil {
		return c, fmt.Errorf("invalid tile coordinate format: %s", s)
	}
	return c, c.Validate()
}

// Validate checks that x and y exist at zoom z.
func (c Coords) Validate() error {
	if c.Z > MaxZoom {
		return fmt.Errorf("zoom %d above maximum %d", c.Z, MaxZoom)
	}
	n := uint32(1) << c.Z
	if c.X >= n || c.Y >= n {
		return fmt.Errorf("tile %s outside the %dx%d grid", c, n, n)
	}
	return nil
}

// Tile returns the maptile.Tile for this coordinate
func (c Coords) Tile() maptile.Tile {
	return maptile.New(c.X, c.Y, maptile.Zoom(c.Z))
}

// Bounds returns the geographic bounding box for this tile in WGS84 (EPSG:4326)
// Returns [minLon, minLat, maxLon, maxLat]
func (c Coords) Bounds() [4]float64 {
	bound := c.Tile().Bound()
	return [4]float64{bound.Min.Lon(), bound.Min.Lat(), bound.Max.Lon(), bound.Max.Lat()}
}

// Center returns the center point of the tile in WGS84 (lon, lat)
func (c Coords) Center() (float64, float64) {
	b := c.Bounds()
	return (b[0] + b[2]) / 2.0, (b[1] + b[3]) / 2.0
}

// WorldSize is the edge length in pixels of the whole map at zoom z.
func WorldSize(z uint32) int {
	return Size << z
}

// Scale is the factor applied to feature sizes at zoom z so the noise
// keeps its geographic scale across zoom levels.
func Scale(z uint32) float64 {
	return float64(uint64(1) << z)
}

// Region returns the pixel rectangle the tile covers in the world buffer.
func (c Coords) Region() image.Rectangle {
	x, y := int(c.X)*Size, int(c.Y)*Size
	return image.Rect(x, y, x+Size, y+Size)
}

// xyRange returns the tile index span of bbox at zoom.
func xyRange(bbox [4]float64, zoom maptile.Zoom) (minX, maxX, minY, maxY uint32) {
	minTile := maptile.At(orb.Point{bbox[0], bbox[1]}, zoom)
	maxTile := maptile.At(orb.Point{bbox[2], bbox[3]}, zoom)

	minX, maxX = minTile.X, maxTile.X
	if minX > maxX {
		minX, maxX = maxX, minX
	}
	// y grows southwards, so the min latitude gives the larger row
	minY, maxY = minTile.Y, maxTile.Y
	if minY > maxY {
		minY, maxY = maxY, minY
	}
	// lon 180 falls one column past the grid
	last := uint32(1)<<zoom - 1
	return min(minX, last), min(maxX, last), min(minY, last), min(maxY, last)
}

// TilesInBBox returns all tile coordinates within a bounding box across a zoom range.
// bbox: [minLon, minLat, maxLon, maxLat] in WGS84
func TilesInBBox(bbox [4]float64, zoomMin, zoomMax int) []Coords {
	tiles := make([]Coords, 0, TileCount(bbox, zoomMin, zoomMax))

	for z := zoomMin; z <= zoomMax; z++ {
		minX, maxX, minY, maxY := xyRange(bbox, maptile.Zoom(z))
		for x := minX; x <= maxX; x++ {
			for y := minY; y <= maxY; y++ {
				tiles = append(tiles, NewCoords(uint32(z), x, y))
			}
		}
	}
	return tiles
}

// TileCount returns the number of tiles in a bounding box across a zoom range
// without allocating the list.
func TileCount(bbox [4]float64, zoomMin, zoomMax int) int {
	count := 0
	for z := zoomMin; z <= zoomMax; z++ {
		minX, maxX, minY, maxY := xyRange(bbox, maptile.Zoom(z))
		count += int(maxX-minX+1) * int(maxY-minY+1)
	}
	return count
}

// ValidateBBox checks a [minLon, minLat, maxLon, maxLat] box.
func ValidateBBox(bbox [4]float64) error {
	if bbox[0] >= bbox[2] || bbox[1] >= bbox[3] {
		return fmt.Errorf("invalid bbox %v: min must be below max", bbox)
	}
	if bbox[0] < -180 || bbox[2] > 180 || bbox[1] < -85.0511 || bbox[3] > 85.0511 {
		return fmt.Errorf("bbox %v outside the web mercator extent", bbox)
	}
	return nil
}
