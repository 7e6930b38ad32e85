// Package render turns resolved settings into pixels. A Renderer owns the
// random context, the fractal evaluator and its caches, so each goroutine
// needs its own.
package render

import (
	"fmt"
	"image"
	"slices"

	"github.com/MeKo-Tech/noisesynth/internal/basis"
	"github.com/MeKo-Tech/noisesynth/internal/config"
	"github.com/MeKo-Tech/noisesynth/internal/fractal"
	"github.com/MeKo-Tech/noisesynth/internal/mapping"
	"github.com/MeKo-Tech/noisesynth/internal/random"
	"github.com/MeKo-Tech/noisesynth/internal/tone"
	"github.com/MeKo-Tech/noisesynth/internal/warp"
)

// Renderer renders rectangular regions of a noise buffer.
type Renderer struct {
	cal      fractal.Calibration
	settings config.Settings
	memo     *memo

	bufWidth  int
	bufHeight int
	offsetX   int
	offsetY   int
	format    Format
	region    image.Rectangle
	source    *warp.Fetcher

	mapper     cached[*mapping.Mapper]
	compositor cached[*fractal.Compositor]
	shapers    [2]cached[*tone.Shaper]
	lookup     cached[[]float32]
	warper     cached[*warp.Warper]

	buf   Buffer
	field []float32
}

// New creates a renderer for s. A nil cal uses the built-in calibration.
func New(s config.Settings, cal fractal.Calibration) *Renderer {
	if cal == nil {
		cal = fractal.DefaultCalibration()
	}
	r := &Renderer{
		cal:      cal,
		settings: s,
		memo:     newMemo(),
	}
	r.mapper.deps = TagFeatureSize | TagRegion | TagMapping | TagBuffer
	r.compositor.deps = TagBasis | TagMapping
	r.shapers[0].deps = TagOutputFunction | TagToneCurve
	r.shapers[1].deps = TagOutputFunction | TagToneCurve
	r.lookup.deps = TagColor | TagBuffer
	r.warper.deps = TagFeatureSize | TagBasis | TagWarp
	return r
}

// Settings returns the current settings.
func (r *Renderer) Settings() config.Settings { return r.settings }

// SetState replaces the settings and returns the inputs that changed.
func (r *Renderer) SetState(s config.Settings) Tag {
	tags := Diff(r.settings, s)
	r.settings = s
	r.memo.invalidate(tags)
	return tags
}

// Invalidate forces the derived values depending on tags to be rebuilt.
func (r *Renderer) Invalidate(tags Tag) {
	r.memo.invalidate(tags)
}

// Diff reports which inputs differ between a and b.
func Diff(a, b config.Settings) Tag {
	var t Tag
	if a.SizeX != b.SizeX || a.SizeY != b.SizeY {
		t |= TagFeatureSize
	}
	if a.Mapping != b.Mapping || a.Phase != b.Phase || a.IgnorePhase != b.IgnorePhase {
		t |= TagMapping
	}
	if a.Seed != b.Seed || a.Basis != b.Basis || a.Fractal != b.Fractal || a.Params != b.Params {
		t |= TagBasis
	}
	if a.Tone.Function != b.Tone.Function || a.Tone.Frequency != b.Tone.Frequency ||
		a.Tone.Shift != b.Tone.Shift || a.Tone.Reverse != b.Tone.Reverse {
		t |= TagOutputFunction
	}
	if a.Tone.Gain != b.Tone.Gain || a.Tone.Bias != b.Tone.Bias || a.Tone.Pinch != b.Tone.Pinch {
		t |= TagToneCurve
	}
	if a.ColorSource != b.ColorSource || a.Foreground != b.Foreground || a.Background != b.Background ||
		!slices.Equal(a.Gradient, b.Gradient) || a.Channels != b.Channels {
		t |= TagColor
	}
	if a.Warp != b.Warp {
		t |= TagWarp
	}
	return t
}

// SetBuffer describes the full image the regions belong to. offsetX and
// offsetY move the origin of the noise field.
func (r *Renderer) SetBuffer(width, height, offsetX, offsetY int, f Format) {
	r.bufWidth, r.bufHeight = width, height
	r.offsetX, r.offsetY = offsetX, offsetY
	r.format = f
	r.memo.invalidate(TagBuffer)
}

// Format returns the colour buffer layout.
func (r *Renderer) Format() Format { return r.format }

// SetRegion selects the window rendered next, in buffer coordinates.
func (r *Renderer) SetRegion(rect image.Rectangle) {
	if rect == r.region {
		return
	}
	r.region = rect
	r.memo.invalidate(TagRegion)
}

// Region returns the current window.
func (r *Renderer) Region() image.Rectangle { return r.region }

// SetSource sets the image the warp colour source resamples.
func (r *Renderer) SetSource(f *warp.Fetcher) {
	r.source = f
	r.memo.invalidate(TagWarp)
}

// Buffer returns the colour buffer filled by the last RenderRegion or
// RenderChannels call.
func (r *Renderer) Buffer() *Buffer { return &r.buf }

// CacheStats reports the point cache counters of a sparse or cellular
// basis. ok is false for lattice bases or before the first render.
func (r *Renderer) CacheStats() (stats basis.CacheStats, ok bool) {
	if !r.compositor.ok {
		return basis.CacheStats{}, false
	}
	switch b := r.compositor.value.Basis().(type) {
	case *basis.SparseNoise:
		return b.Stats(), true
	case *basis.CellLook:
		return b.Cells().Stats(), true
	}
	return basis.CacheStats{}, false
}

func (r *Renderer) mapperFor(width, height int) (*mapping.Mapper, error) {
	return r.mapper.get(r.memo, func() (*mapping.Mapper, error) {
		s := r.settings
		reg := mapping.Region{
			BufferWidth:  r.bufWidth,
			BufferHeight: r.bufHeight,
			OffsetX:      r.offsetX,
			OffsetY:      r.offsetY,
			X:            r.region.Min.X,
			Y:            r.region.Min.Y,
			Width:        width,
			Height:       height,
		}
		m, err := mapping.New(s.Mapping, s.SizeX, s.SizeY, reg, s.Phase, s.IgnorePhase)
		if err != nil {
			return nil, fmt.Errorf("failed to set up %s mapping: %w", s.Mapping, err)
		}
		return m, nil
	})
}

func (r *Renderer) evaluator() (*fractal.Compositor, error) {
	return r.compositor.get(r.memo, func() (*fractal.Compositor, error) {
		s := r.settings
		c, err := fractal.New(random.NewContext(s.Seed), s.Selector(), s.Params, r.cal)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s evaluator: %w", s.Selector(), err)
		}
		return c, nil
	})
}

// shaper returns the tone shaper, with the output reversed relative to the
// settings when flip is set.
func (r *Renderer) shaper(flip bool) *tone.Shaper {
	reverse := r.settings.Tone.Reverse != flip
	idx := 0
	if reverse {
		idx = 1
	}
	sh, _ := r.shapers[idx].get(r.memo, func() (*tone.Shaper, error) {
		p := r.settings.Tone
		p.Reverse = reverse
		return tone.New(p), nil
	})
	return sh
}

func (r *Renderer) colorLookup() []float32 {
	lut, _ := r.lookup.get(r.memo, func() ([]float32, error) {
		return buildLookup(r.settings, r.format), nil
	})
	return lut
}

func (r *Renderer) checkReady() error {
	if r.bufWidth <= 0 || r.bufHeight <= 0 {
		return fmt.Errorf("render buffer not set")
	}
	if r.region.Empty() {
		return fmt.Errorf("render region is empty")
	}
	return nil
}

// renderPlane writes width x height shaped values into dst, stride values
// apart. With a lookup each value is expanded to stride colour values.
func (r *Renderer) renderPlane(dst []float32, stride, width, height int, plane float64, flip bool, lut []float32) error {
	m, err := r.mapperFor(r.region.Dx(), r.region.Dy())
	if err != nil {
		return err
	}
	c, err := r.evaluator()
	if err != nil {
		return err
	}
	sh := r.shaper(flip)

	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := sh.Shape(c.Eval(m.Map(x, y, plane)))
			if lut == nil {
				dst[i] = float32(v)
			} else {
				e := lookupIndex(v) * stride
				copy(dst[i:i+stride], lut[e:e+stride])
			}
			i += stride
		}
	}
	return nil
}

// RenderRegion fills the colour buffer with the fg/bg or gradient colours
// of the given plane.
func (r *Renderer) RenderRegion(plane float64) error {
	if err := r.checkReady(); err != nil {
		return err
	}
	w, h := r.region.Dx(), r.region.Dy()
	stride := r.format.Stride()
	r.buf.resize(w, h, stride)
	return r.renderPlane(r.buf.Pix, stride, w, h, plane, false, r.colorLookup())
}

// channelSources returns the source of each buffer channel. Grey buffers
// use the first source for grey and the last for alpha.
func (r *Renderer) channelSources() []config.ChannelSource {
	ch := r.settings.Channels
	if r.format == FormatGrayAlpha {
		return []config.ChannelSource{ch[0], ch[3]}
	}
	return ch[:]
}

// RenderChannels fills every buffer channel independently. Noise channels
// use their source index as the plane, and odd sources are reversed.
func (r *Renderer) RenderChannels() error {
	if err := r.checkReady(); err != nil {
		return err
	}
	w, h := r.region.Dx(), r.region.Dy()
	stride := r.format.Stride()
	r.buf.resize(w, h, stride)

	reverse := r.settings.Tone.Reverse
	for cnum, src := range r.channelSources() {
		dst := r.buf.Pix[cnum:]
		if plane, inverted, ok := src.Plane(); ok {
			if err := r.renderPlane(dst, stride, w, h, float64(plane), inverted, nil); err != nil {
				return err
			}
			continue
		}

		v := src.Constant()
		alpha := cnum == stride-1
		if reverse && !alpha && (src == config.ChannelLight || src == config.ChannelDark) {
			v = 1 - v
		}
		fillPlane(dst, stride, w*h, float32(v))
	}
	return nil
}

func fillPlane(dst []float32, stride, n int, v float32) {
	for i := 0; i < n; i++ {
		dst[i*stride] = v
	}
}

// RenderField returns the shaped values of plane 0 for the region grown
// by overscan columns and rows.
func (r *Renderer) RenderField(overscan int) ([]float32, error) {
	if err := r.checkReady(); err != nil {
		return nil, err
	}
	w := r.region.Dx() + overscan
	h := r.region.Dy() + overscan
	if cap(r.field) < w*h {
		r.field = make([]float32, w*h)
	}
	r.field = r.field[:w*h]
	if err := r.renderPlane(r.field, 1, w, h, 0, false, nil); err != nil {
		return nil, err
	}
	return r.field, nil
}

func (r *Renderer) warpFor() (*warp.Warper, error) {
	return r.warper.get(r.memo, func() (*warp.Warper, error) {
		s := r.settings
		w, err := warp.New(warp.Params{
			FeatureX: s.SizeX,
			FeatureY: s.SizeY,
			WarpX:    s.Warp.SizeX,
			WarpY:    s.Warp.SizeY,
			Caustics: s.Warp.Caustics,
			Quality:  s.Warp.Quality,
			Jitter:   s.Warp.Jitter,
			Seed:     int64(s.Seed),
		}, r.source)
		if err != nil {
			return nil, fmt.Errorf("failed to set up warp: %w", err)
		}
		return w, nil
	})
}

// RenderWarp resamples the source image through the noise field into dst,
// which must have the source's channel count and the region's size.
func (r *Renderer) RenderWarp(dst *warp.Image) error {
	if r.source == nil {
		return fmt.Errorf("warp source image not set")
	}
	field, err := r.RenderField(warp.Overscan)
	if err != nil {
		return err
	}
	w, err := r.warpFor()
	if err != nil {
		return err
	}
	return w.Apply(field, r.region.Dx(), r.region.Dy(), r.region.Min.X, r.region.Min.Y, dst)
}
