package render

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/noisesynth/internal/config"
	"github.com/MeKo-Tech/noisesynth/internal/fractal"
	"github.com/MeKo-Tech/noisesynth/internal/mapping"
	"github.com/MeKo-Tech/noisesynth/internal/random"
	"github.com/MeKo-Tech/noisesynth/internal/tone"
	"github.com/MeKo-Tech/noisesynth/internal/warp"
)

func testSettings(t testing.TB, modify func(*config.State)) config.Settings {
	t.Helper()
	st := config.Defaults()
	st.Seed = 12345
	st.RandomSeed = false
	if modify != nil {
		modify(&st)
	}
	s, err := st.Resolve()
	require.NoError(t, err)
	return s
}

func newRenderer(s config.Settings, w, h int, f Format) *Renderer {
	r := New(s, nil)
	r.SetBuffer(w, h, 0, 0, f)
	r.SetRegion(image.Rect(0, 0, w, h))
	return r
}

func TestTag_String(t *testing.T) {
	assert.Equal(t, "none", Tag(0).String())
	assert.Equal(t, "region|basis", (TagRegion | TagBasis).String())
	assert.Equal(t, Tag(511), TagAll)
}

func TestDiff(t *testing.T) {
	base := testSettings(t, nil)

	tests := []struct {
		name   string
		modify func(*config.State)
		want   Tag
	}{
		{"nothing", func(*config.State) {}, 0},
		{"size", func(s *config.State) { s.SizeX = 20 }, TagFeatureSize},
		{"seed", func(s *config.State) { s.Seed = 1 }, TagBasis},
		{"octaves", func(s *config.State) { s.Octaves = 4 }, TagBasis},
		{"mapping", func(s *config.State) { s.Mapping = "tileable" }, TagMapping},
		{"phase", func(s *config.State) { s.Phase = 0.3 }, TagMapping},
		{"function", func(s *config.State) { s.Function = "sine" }, TagOutputFunction},
		{"reverse", func(s *config.State) { s.Reverse = true }, TagOutputFunction},
		{"gain", func(s *config.State) { s.Gain = 10 }, TagToneCurve},
		{"foreground", func(s *config.State) { s.Foreground = "#ff0000" }, TagColor},
		{"gradient", func(s *config.State) { s.Gradient = []string{"#000", "#888", "#fff"} }, TagColor},
		{"channels", func(s *config.State) { s.Channels = []string{"2", "2", "2", "solid"} }, TagColor},
		{"warp", func(s *config.State) { s.Warp.Caustics = 30 }, TagWarp},
		{"two groups", func(s *config.State) { s.Hurst = 1; s.Bias = 5 }, TagBasis | TagToneCurve},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Diff(base, testSettings(t, tt.modify)))
		})
	}
}

func TestMemo_RebuildsOnlyAffectedValues(t *testing.T) {
	s := testSettings(t, nil)
	r := newRenderer(s, 8, 8, FormatRGBA)
	require.NoError(t, r.RenderRegion(0))

	comp := r.compositor.value
	mapper := r.mapper.value
	lut := r.lookup.value

	s2 := testSettings(t, func(st *config.State) { st.Gain = 40 })
	assert.Equal(t, TagToneCurve, r.SetState(s2))
	require.NoError(t, r.RenderRegion(0))
	assert.Same(t, comp, r.compositor.value, "evaluator kept")
	assert.Same(t, mapper, r.mapper.value, "mapper kept")
	assert.Same(t, &lut[0], &r.lookup.value[0], "lookup kept")

	s3 := testSettings(t, func(st *config.State) { st.Gain = 40; st.Basis = "puffy" })
	assert.Equal(t, TagBasis, r.SetState(s3))
	require.NoError(t, r.RenderRegion(0))
	assert.NotSame(t, comp, r.compositor.value, "evaluator rebuilt")
	assert.Same(t, mapper, r.mapper.value, "mapper kept")

	r.SetRegion(image.Rect(0, 0, 4, 4))
	require.NoError(t, r.RenderRegion(0))
	assert.NotSame(t, mapper, r.mapper.value, "mapper rebuilt for the new region")
}

func TestMemo_CachedValueRebuildsAfterError(t *testing.T) {
	m := newMemo()
	c := cached[int]{deps: TagColor}
	calls := 0
	build := func() (int, error) {
		calls++
		if calls == 1 {
			return 0, assert.AnError
		}
		return calls, nil
	}

	_, err := c.get(m, build)
	assert.Error(t, err)
	v, err := c.get(m, build)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	v, _ = c.get(m, build)
	assert.Equal(t, 2, v)

	m.invalidate(TagRegion)
	v, _ = c.get(m, build)
	assert.Equal(t, 2, v, "unrelated tag")

	m.invalidate(TagColor)
	v, _ = c.get(m, build)
	assert.Equal(t, 3, v)
}

func TestRenderField_MatchesPipeline(t *testing.T) {
	s := testSettings(t, nil)
	const size = 32

	r := newRenderer(s, size, size, FormatGrayAlpha)
	field, err := r.RenderField(0)
	require.NoError(t, err)
	require.Len(t, field, size*size)

	m, err := mapping.New(s.Mapping, s.SizeX, s.SizeY,
		mapping.Region{BufferWidth: size, BufferHeight: size, Width: size, Height: size}, s.Phase, s.IgnorePhase)
	require.NoError(t, err)
	c, err := fractal.New(random.NewContext(12345), s.Selector(), s.Params, nil)
	require.NoError(t, err)
	sh := tone.New(s.Tone)

	want := float32(sh.Shape(c.Eval(m.Map(10, 10, 0))))
	assert.Equal(t, math.Float32bits(want), math.Float32bits(field[10*size+10]))
}

func TestRender_Reproducible(t *testing.T) {
	s := testSettings(t, func(st *config.State) {
		st.Basis = "sparse_noise"
		st.Fractal = "multifractal"
	})
	a := newRenderer(s, 16, 16, FormatRGBA)
	b := newRenderer(s, 16, 16, FormatRGBA)
	require.NoError(t, a.RenderRegion(0))
	require.NoError(t, b.RenderRegion(0))
	assert.Equal(t, a.Buffer().Pix, b.Buffer().Pix)

	stats, ok := a.CacheStats()
	assert.True(t, ok)
	assert.Positive(t, stats.Hits+stats.Misses)
}

func TestRender_RegionsLineUp(t *testing.T) {
	for _, mode := range []string{"planar", "tileable", "spherical"} {
		t.Run(mode, func(t *testing.T) {
			s := testSettings(t, func(st *config.State) {
				st.Mapping = mode
				st.Basis = "crystals"
			})
			const w, h = 24, 16

			full := newRenderer(s, w, h, FormatGrayAlpha)
			whole, err := full.RenderField(0)
			require.NoError(t, err)
			whole = append([]float32(nil), whole...)

			part := New(s, nil)
			part.SetBuffer(w, h, 0, 0, FormatGrayAlpha)
			part.SetRegion(image.Rect(10, 5, 20, 12))
			sub, err := part.RenderField(0)
			require.NoError(t, err)

			for y := 0; y < 7; y++ {
				for x := 0; x < 10; x++ {
					assert.Equal(t, whole[(y+5)*w+x+10], sub[y*10+x], "pixel %d,%d", x+10, y+5)
				}
			}
		})
	}
}

func TestRender_TileableWraps(t *testing.T) {
	s := testSettings(t, func(st *config.State) { st.Mapping = "tileable" })
	const w, h = 16, 12

	r := New(s, nil)
	r.SetBuffer(w, h, 0, 0, FormatGrayAlpha)
	r.SetRegion(image.Rect(0, 0, w, h))
	f, err := r.RenderField(1)
	require.NoError(t, err)

	row := w + 1
	for y := 0; y < h; y++ {
		assert.Equal(t, f[y*row], f[y*row+w], "column wraps on row %d", y)
	}
	for x := 0; x < w; x++ {
		assert.Equal(t, f[x], f[h*row+x], "row wraps on column %d", x)
	}
}

func TestLookup_FgBg(t *testing.T) {
	s := testSettings(t, func(st *config.State) {
		st.Foreground = "#ff0000"
		st.Background = "#0000ff80"
	})

	lut := buildLookup(s, FormatRGBA)
	require.Len(t, lut, GradientSamples*4)
	assert.Equal(t, []float32{0, 0, 1, float32(128) / 255}, lut[:4], "value 0 is the background")
	assert.Equal(t, []float32{1, 0, 0, 1}, lut[len(lut)-4:], "value 1 is the foreground")

	grey := buildLookup(s, FormatGrayAlpha)
	require.Len(t, grey, GradientSamples*2)
	assert.InDelta(t, 0.11, grey[0], 1e-6)
	assert.InDelta(t, 0.30, grey[len(grey)-2], 1e-6)
}

func TestLookup_GradientStops(t *testing.T) {
	s := testSettings(t, func(st *config.State) {
		st.ColorSource = "gradient"
		st.Gradient = []string{"#000000", "#ffffff", "#000000"}
	})
	lut := buildLookup(s, FormatRGBA)

	mid := lookupIndex(0.5)
	assert.InDelta(t, 1, lut[mid*4], 0.01)
	assert.InDelta(t, 0, lut[0], 1e-6)
	assert.InDelta(t, 0, lut[(GradientSamples-1)*4], 1e-6)

	assert.Equal(t, 0, lookupIndex(-0.2))
	assert.Equal(t, GradientSamples-1, lookupIndex(1.5))
}

func TestRenderRegion_UsesLookupColours(t *testing.T) {
	s := testSettings(t, func(st *config.State) {
		st.Foreground = "#ff0000"
		st.Background = "#00ff00"
	})
	r := newRenderer(s, 8, 8, FormatRGBA)
	require.NoError(t, r.RenderRegion(0))

	b := r.Buffer()
	assert.Equal(t, 4, b.Stride)
	for i := 0; i < b.Width*b.Height; i++ {
		px := b.Pix[i*4 : i*4+4]
		assert.InDelta(t, 1, px[0]+px[1], 1e-5, "red and green sum to one")
		assert.Equal(t, float32(0), px[2])
		assert.Equal(t, float32(1), px[3])
	}
}

func TestRenderChannels_Constants(t *testing.T) {
	tests := []struct {
		reverse bool
		want    []float32
	}{
		{false, []float32{1, 0.5, 0, 1}},
		{true, []float32{0, 0.5, 1, 1}},
	}
	for _, tt := range tests {
		s := testSettings(t, func(st *config.State) {
			st.ColorSource = "channels"
			st.Channels = []string{"light", "mid", "dark", "solid"}
			st.Reverse = tt.reverse
		})
		r := newRenderer(s, 3, 2, FormatRGBA)
		require.NoError(t, r.RenderChannels())
		for i := 0; i < 6; i++ {
			assert.Equal(t, tt.want, r.Buffer().Pix[i*4:i*4+4], "reverse=%v pixel %d", tt.reverse, i)
		}
	}
}

func TestRenderChannels_PlanesAndReverse(t *testing.T) {
	s := testSettings(t, func(st *config.State) {
		st.ColorSource = "channels"
		st.Channels = []string{"1", "inv_1", "2", "dark"}
	})
	const w, h = 6, 5
	r := newRenderer(s, w, h, FormatRGBA)
	require.NoError(t, r.RenderChannels())
	pix := append([]float32(nil), r.Buffer().Pix...)

	single := newRenderer(s, w, h, FormatGrayAlpha)
	plane0, err := single.RenderField(0)
	require.NoError(t, err)
	plane0 = append([]float32(nil), plane0...)

	// inv_1 is plane 1 with the output reversed
	m, err := mapping.New(s.Mapping, s.SizeX, s.SizeY,
		mapping.Region{BufferWidth: w, BufferHeight: h, Width: w, Height: h}, 0, true)
	require.NoError(t, err)
	c, err := fractal.New(random.NewContext(s.Seed), s.Selector(), s.Params, nil)
	require.NoError(t, err)
	p := s.Tone
	p.Reverse = true
	rev := tone.New(p)

	for i := 0; i < w*h; i++ {
		x, y := i%w, i/w
		assert.Equal(t, plane0[i], pix[i*4], "channel 1 at %d", i)
		assert.Equal(t, float32(rev.Shape(c.Eval(m.Map(x, y, 1)))), pix[i*4+1], "inv_1 at %d", i)
		assert.Equal(t, float32(0), pix[i*4+3])
	}
}

func TestRenderChannels_GrayUsesFirstAndAlphaSources(t *testing.T) {
	s := testSettings(t, func(st *config.State) {
		st.ColorSource = "channels"
		st.Channels = []string{"mid", "1", "1", "light"}
	})
	r := newRenderer(s, 2, 2, FormatGrayAlpha)
	require.NoError(t, r.RenderChannels())
	assert.Equal(t, []float32{0.5, 1, 0.5, 1, 0.5, 1, 0.5, 1}, r.Buffer().Pix)
}

func TestRender_Errors(t *testing.T) {
	s := testSettings(t, nil)

	r := New(s, nil)
	assert.Error(t, r.RenderRegion(0), "buffer not set")

	r.SetBuffer(4, 4, 0, 0, FormatRGBA)
	assert.Error(t, r.RenderChannels(), "region not set")

	r.SetRegion(image.Rect(0, 0, 4, 4))
	assert.Error(t, r.RenderWarp(warp.NewImage(4, 4, 3)), "source not set")

	bad := New(s, fractal.Calibration{})
	bad.SetBuffer(4, 4, 0, 0, FormatRGBA)
	bad.SetRegion(image.Rect(0, 0, 4, 4))
	assert.Error(t, bad.RenderRegion(0), "calibration lacks the entry")
}

func TestBlend(t *testing.T) {
	r := New(testSettings(t, nil), nil)
	r.buf.resize(3, 1, 4)
	copy(r.buf.Pix, []float32{
		1, 0, 0, 1, // opaque red
		0, 0, 1, 0.5, // half blue
		0, 1, 0, 0.5, // half green over transparent
	})

	dst := image.NewNRGBA(image.Rect(0, 0, 5, 2))
	dst.SetNRGBA(1, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	dst.SetNRGBA(2, 1, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	require.NoError(t, r.Blend(dst, image.Pt(1, 1)))
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, dst.NRGBAAt(1, 1))
	assert.Equal(t, color.NRGBA{R: 128, G: 128, B: 255, A: 255}, dst.NRGBAAt(2, 1))
	assert.Equal(t, color.NRGBA{G: 255, A: 128}, dst.NRGBAAt(3, 1))
	assert.Equal(t, color.NRGBA{}, dst.NRGBAAt(0, 0), "outside the region")

	assert.Error(t, r.Blend(dst, image.Pt(3, 1)), "region does not fit")
}

func TestBlend_GrayBuffer(t *testing.T) {
	r := New(testSettings(t, nil), nil)
	r.buf.resize(1, 1, 2)
	copy(r.buf.Pix, []float32{0.5, 0.25})

	dst := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	dst.SetNRGBA(0, 0, color.NRGBA{A: 255})
	require.NoError(t, r.Blend(dst, image.Point{}))

	got := dst.NRGBAAt(0, 0)
	assert.Equal(t, got.R, got.G)
	assert.Equal(t, got.R, got.B)
	assert.InDelta(t, 32, float64(got.R), 1)
	assert.Equal(t, uint8(255), got.A)
}

func TestDraw_ColourSources(t *testing.T) {
	src := warp.NewImage(12, 10, 3)
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 7)
	}

	for _, cs := range []string{"fg_bg", "gradient", "channels", "warp"} {
		t.Run(cs, func(t *testing.T) {
			s := testSettings(t, func(st *config.State) { st.ColorSource = cs })
			r := New(s, nil)
			r.SetBuffer(12, 10, 0, 0, FormatRGBA)
			r.SetSource(warp.NewFetcher(src, warp.EdgeWrap, [4]uint8{}))

			dst := image.NewNRGBA(image.Rect(0, 0, 12, 10))
			for _, rect := range []image.Rectangle{image.Rect(0, 0, 6, 10), image.Rect(6, 0, 12, 10)} {
				r.SetRegion(rect)
				require.NoError(t, r.Draw(dst, rect.Min))
			}

			opaque := 0
			for i := 3; i < len(dst.Pix); i += 4 {
				if dst.Pix[i] == 255 {
					opaque++
				}
			}
			assert.Equal(t, 120, opaque)
		})
	}
}
