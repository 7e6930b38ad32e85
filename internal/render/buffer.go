package render

import (
	"fmt"
	"image/color"

	"github.com/MeKo-Tech/noisesynth/internal/config"
)

// Format is the layout of a colour buffer.
type Format int

const (
	// FormatRGBA stores red, green, blue and alpha per pixel.
	FormatRGBA Format = iota
	// FormatGrayAlpha stores grey and alpha per pixel.
	FormatGrayAlpha
)

func (f Format) String() string {
	switch f {
	case FormatRGBA:
		return "rgba"
	case FormatGrayAlpha:
		return "gray_alpha"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Stride is the number of values per pixel.
func (f Format) Stride() int {
	if f == FormatGrayAlpha {
		return 2
	}
	return 4
}

// FormatFor picks the buffer layout matching a raster with the given
// channel count.
func FormatFor(channels int) Format {
	if channels <= 2 {
		return FormatGrayAlpha
	}
	return FormatRGBA
}

// Buffer holds float samples in [0, 1], Stride values per pixel.
type Buffer struct {
	Pix    []float32
	Stride int
	Width  int
	Height int
}

// Offset returns the index of the first value of pixel (x, y).
func (b *Buffer) Offset(x, y int) int {
	return (y*b.Width + x) * b.Stride
}

// resize reuses the backing array when it is large enough.
func (b *Buffer) resize(width, height, stride int) {
	n := width * height * stride
	if cap(b.Pix) < n {
		b.Pix = make([]float32, n)
	}
	b.Pix = b.Pix[:n]
	b.Width, b.Height, b.Stride = width, height, stride
}

// GradientSamples is the size of the colour lookup.
const GradientSamples = 512

// luminance weights used when a colour lookup is reduced to grey.
const (
	lumR = 0.30
	lumG = 0.59
	lumB = 0.11
)

// buildLookup samples the colour ramp for s at GradientSamples evenly spaced
// positions. Shaped value 0 maps to the first entry.
func buildLookup(s config.Settings, f Format) []float32 {
	stops := colorStops(s)
	stride := f.Stride()
	lut := make([]float32, GradientSamples*stride)

	for i := 0; i < GradientSamples; i++ {
		t := float64(i) / float64(GradientSamples-1)
		r, g, b, a := sampleStops(stops, t)
		e := lut[i*stride:]
		if f == FormatGrayAlpha {
			e[0] = float32(lumR*r + lumG*g + lumB*b)
			e[1] = float32(a)
			continue
		}
		e[0], e[1], e[2], e[3] = float32(r), float32(g), float32(b), float32(a)
	}
	return lut
}

// colorStops returns the evenly spaced ramp for the colour source. fg/bg
// runs from background to foreground.
func colorStops(s config.Settings) []color.NRGBA {
	if s.ColorSource == config.ColorGradient && len(s.Gradient) >= 2 {
		return s.Gradient
	}
	return []color.NRGBA{s.Background, s.Foreground}
}

func sampleStops(stops []color.NRGBA, t float64) (r, g, b, a float64) {
	segments := len(stops) - 1
	pos := t * float64(segments)
	i := int(pos)
	if i >= segments {
		i = segments - 1
	}
	f := pos - float64(i)

	c0, c1 := stops[i], stops[i+1]
	mix := func(x, y uint8) float64 {
		return (float64(x) + (float64(y)-float64(x))*f) / 255
	}
	return mix(c0.R, c1.R), mix(c0.G, c1.G), mix(c0.B, c1.B), mix(c0.A, c1.A)
}

// lookupIndex maps a shaped value to its lookup entry.
func lookupIndex(v float64) int {
	i := int((GradientSamples - 1) * v)
	if i < 0 {
		return 0
	}
	if i > GradientSamples-1 {
		return GradientSamples - 1
	}
	return i
}
