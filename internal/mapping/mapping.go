// Package mapping lifts raster coordinates into the dimension of the noise
// basis: a tilted plane, a sphere sweep or a torus.
package mapping

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/noisesynth/internal/basis"
)

// Mode selects the embedding.
type Mode int

const (
	Planar Mode = iota
	Tileable
	Spherical
)

var modeNames = []string{"planar", "tileable", "spherical"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// Modes returns every mapping mode.
func Modes() []Mode {
	return []Mode{Planar, Tileable, Spherical}
}

// ParseMode resolves a mapping name.
func ParseMode(name string) (Mode, error) {
	for i, n := range modeNames {
		if n == name {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown mapping %q", name)
}

// Dim returns the basis dimension the mode samples. Ignoring the phase drops
// the phase axis of the sphere and torus embeddings.
func (m Mode) Dim(ignorePhase bool) int {
	switch m {
	case Spherical:
		if ignorePhase {
			return 3
		}
		return 4
	case Tileable:
		if ignorePhase {
			return 4
		}
		return 5
	default:
		return 3
	}
}

// Plane offsets keep the channels of one render on unrelated parts of the
// field.
const (
	planeOffset1 = 78479.20945239
	planeOffset2 = 11824.19784571
)

// tilt mixes the phase into the planar embedding.
const (
	tiltA = 0.957826
	tiltB = 0.287348
	tiltC = 0.917431
	tiltD = 0.275229
)

// Region describes the rendered window inside the full buffer. The buffer
// size fixes the circle radii, so every region of one buffer lines up.
type Region struct {
	// BufferWidth and BufferHeight are the full image size.
	BufferWidth  int
	BufferHeight int
	// OffsetX and OffsetY shift the origin of the noise field.
	OffsetX int
	OffsetY int
	// X, Y, Width and Height select the window to render.
	X      int
	Y      int
	Width  int
	Height int
}

// Validate checks that the region fits its buffer.
func (r Region) Validate() error {
	if r.BufferWidth <= 0 || r.BufferHeight <= 0 {
		return fmt.Errorf("buffer size must be positive, got %dx%d", r.BufferWidth, r.BufferHeight)
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("region size must be positive, got %dx%d", r.Width, r.Height)
	}
	return nil
}

// Mapper turns region-relative pixel positions into basis points.
type Mapper struct {
	mode        Mode
	ignorePhase bool
	phase       float64
	region      Region

	// planar step per pixel
	dx, dy float64

	// circle radii and angular steps
	rad1, rad2   float64
	dang1, dang2 float64
}

// New builds a mapper. sizeX and sizeY are the feature size in pixels.
func New(mode Mode, sizeX, sizeY float64, region Region, phase float64, ignorePhase bool) (*Mapper, error) {
	if err := region.Validate(); err != nil {
		return nil, err
	}
	if sizeX <= 0 || sizeY <= 0 {
		return nil, fmt.Errorf("feature size must be positive, got %gx%g", sizeX, sizeY)
	}

	m := &Mapper{
		mode:        mode,
		ignorePhase: ignorePhase,
		region:      region,
		dx:          0.5 / sizeX,
		dy:          0.5 / sizeY,
	}
	if !ignorePhase {
		m.phase = phase
	}

	bw := float64(region.BufferWidth)
	bh := float64(region.BufferHeight)
	m.rad1 = bh * m.dy / (2 * math.Pi)
	m.rad2 = bw * m.dx / (2 * math.Pi)
	m.dang2 = 2 * math.Pi / bw
	switch mode {
	case Spherical:
		m.dang1 = math.Pi / bh
	case Tileable:
		m.dang1 = 2 * math.Pi / bh
	}

	return m, nil
}

// Mode returns the embedding in use.
func (m *Mapper) Mode() Mode { return m.mode }

// Dim returns the number of coordinates Map fills.
func (m *Mapper) Dim() int { return m.mode.Dim(m.ignorePhase) }

// Region returns the window the mapper was built for.
func (m *Mapper) Region() Region { return m.region }

// column returns the absolute field column of a region-relative column.
func (m *Mapper) column(col int) int {
	return m.region.X - m.region.OffsetX + col
}

func (m *Mapper) row(row int) int {
	return m.region.Y - m.region.OffsetY + row
}

// Map returns the basis point for pixel (col, row) of the region. plane
// separates independently rendered channels.
func (m *Mapper) Map(col, row int, plane float64) basis.Point {
	plane1 := plane + planeOffset1
	plane2 := plane + planeOffset2

	switch m.mode {
	case Tileable:
		alpha := float64(wrap(m.row(row), m.region.BufferHeight)) * m.dang1
		c1 := math.Cos(alpha) * m.rad1
		s1 := math.Sin(alpha)
		beta := float64(wrap(m.column(col), m.region.BufferWidth)) * m.dang2
		c2 := math.Cos(beta) * m.rad2
		s2 := math.Sin(beta) * m.rad2
		return basis.Point{c1 + plane1, s1 * m.rad1, c2 + plane2, s2, m.phase}

	case Spherical:
		alpha := float64(m.row(row)) * m.dang1
		c1 := math.Cos(alpha) * m.rad1
		s1 := math.Sin(alpha)
		beta := float64(wrap(m.column(col), m.region.BufferWidth)) * m.dang2
		c2 := math.Cos(beta) * m.rad2
		s2 := math.Sin(beta) * m.rad2
		return basis.Point{c2 * s1, s2*s1 + plane1, c1 + plane2, m.phase}

	default:
		px := m.dx * float64(m.column(col))
		py := m.dy * float64(m.row(row))
		ph := m.phase
		return basis.Point{
			tiltA*px + tiltB*ph + plane1,
			tiltA*py + tiltB*ph + plane2,
			tiltC*ph - tiltD*(px+py),
		}
	}
}

// wrap reduces i into [0, n).
func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
