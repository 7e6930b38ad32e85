package mapping

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullRegion(w, h int) Region {
	return Region{BufferWidth: w, BufferHeight: h, Width: w, Height: h}
}

func TestParseMode(t *testing.T) {
	for _, m := range Modes() {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMode("cylindrical")
	assert.Error(t, err)
}

func TestMode_Dim(t *testing.T) {
	tests := []struct {
		mode        Mode
		ignorePhase bool
		want        int
	}{
		{Planar, false, 3},
		{Planar, true, 3},
		{Spherical, false, 4},
		{Spherical, true, 3},
		{Tileable, false, 5},
		{Tileable, true, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.mode.Dim(tt.ignorePhase), "%s ignore=%v", tt.mode, tt.ignorePhase)
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Planar, 10, 10, Region{}, 0, true)
	assert.Error(t, err)

	_, err = New(Planar, 0, 10, fullRegion(8, 8), 0, true)
	assert.Error(t, err)

	_, err = New(Planar, 10, 10, Region{BufferWidth: 8, BufferHeight: 8}, 0, true)
	assert.Error(t, err)
}

func TestMap_SeamMatches(t *testing.T) {
	const w, h = 64, 48

	for _, mode := range []Mode{Tileable, Spherical} {
		t.Run(mode.String(), func(t *testing.T) {
			m, err := New(mode, 10, 10, fullRegion(w, h), 0.3, false)
			require.NoError(t, err)

			for row := 0; row < h; row++ {
				assert.Equal(t, m.Map(0, row, 0), m.Map(w, row, 0), "row %d", row)
			}
		})
	}
}

func TestMap_TileableRowsWrap(t *testing.T) {
	const w, h = 32, 40
	m, err := New(Tileable, 7, 9, fullRegion(w, h), 0, true)
	require.NoError(t, err)

	for col := 0; col < w; col++ {
		assert.Equal(t, m.Map(col, 0, 1), m.Map(col, h, 1))
		assert.Equal(t, m.Map(col, -1, 1), m.Map(col, h-1, 1))
	}
}

func TestMap_TileableCircles(t *testing.T) {
	const w, h = 50, 30
	const sizeX, sizeY = 8.0, 5.0
	m, err := New(Tileable, sizeX, sizeY, fullRegion(w, h), 2.5, false)
	require.NoError(t, err)

	rad1 := float64(h) * (0.5 / sizeY) / (2 * math.Pi)
	rad2 := float64(w) * (0.5 / sizeX) / (2 * math.Pi)

	for _, px := range [][2]int{{0, 0}, {13, 7}, {49, 29}, {25, 15}} {
		p := m.Map(px[0], px[1], 0)
		r1 := math.Hypot(p[0]-planeOffset1, p[1])
		r2 := math.Hypot(p[2]-planeOffset2, p[3])
		assert.InDelta(t, rad1, r1, 1e-9)
		assert.InDelta(t, rad2, r2, 1e-9)
		assert.Equal(t, 2.5, p[4])
	}
}

func TestMap_PhaseIgnored(t *testing.T) {
	region := fullRegion(16, 16)
	a, err := New(Planar, 10, 10, region, 0, true)
	require.NoError(t, err)
	b, err := New(Planar, 10, 10, region, 42, true)
	require.NoError(t, err)

	assert.Equal(t, a.Map(3, 4, 0), b.Map(3, 4, 0))
}

func TestMap_Planar(t *testing.T) {
	region := Region{BufferWidth: 100, BufferHeight: 100, OffsetX: 10, OffsetY: 20, X: 30, Y: 40, Width: 10, Height: 10}
	m, err := New(Planar, 5, 10, region, 0, false)
	require.NoError(t, err)

	p := m.Map(2, 3, 1)
	px := 0.1 * float64(30-10+2)
	py := 0.05 * float64(40-20+3)
	assert.InDelta(t, tiltA*px+1+planeOffset1, p[0], 1e-9)
	assert.InDelta(t, tiltA*py+1+planeOffset2, p[1], 1e-9)
	assert.InDelta(t, -tiltD*(px+py), p[2], 1e-12)
	assert.Equal(t, 3, m.Dim())
}

func TestMap_RegionsLineUp(t *testing.T) {
	// a sub-region maps its pixels to the same points as the full buffer
	full, err := New(Spherical, 12, 12, fullRegion(64, 64), 0, false)
	require.NoError(t, err)
	sub, err := New(Spherical, 12, 12, Region{BufferWidth: 64, BufferHeight: 64, X: 16, Y: 32, Width: 16, Height: 16}, 0, false)
	require.NoError(t, err)

	for row := 0; row < 16; row++ {
		for col := 0; col < 16; col++ {
			assert.Equal(t, full.Map(col+16, row+32, 2), sub.Map(col, row, 2))
		}
	}
}

func TestMap_SphericalPoles(t *testing.T) {
	const h = 32
	m, err := New(Spherical, 10, 10, fullRegion(40, h), 0, true)
	require.NoError(t, err)

	// sin(0) is zero, so the whole top row collapses onto one point
	top := m.Map(0, 0, 0)
	for col := 1; col < 40; col++ {
		p := m.Map(col, 0, 0)
		assert.InDelta(t, top[0], p[0], 1e-12)
		assert.InDelta(t, top[1], p[1], 1e-9)
		assert.InDelta(t, top[2], p[2], 1e-9)
	}
}
