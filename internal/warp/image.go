// Package warp displaces and relights a source image using the gradient of
// a rendered noise field.
package warp

import (
	"fmt"
	"image"
	"image/color"
)

// Image is an interleaved 8-bit raster with 1 to 4 bytes per pixel:
// grey, grey+alpha, RGB or RGBA.
type Image struct {
	Pix      []uint8
	Stride   int
	Width    int
	Height   int
	Channels int
}

// NewImage allocates a zeroed raster.
func NewImage(width, height, channels int) *Image {
	return &Image{
		Pix:      make([]uint8, width*height*channels),
		Stride:   width * channels,
		Width:    width,
		Height:   height,
		Channels: channels,
	}
}

// Format splits a channel count into colour channels and alpha presence.
func Format(channels int) (colors int, alpha bool) {
	switch channels {
	case 1:
		return 1, false
	case 2:
		return 1, true
	case 3:
		return 3, false
	default:
		return 3, true
	}
}

// Offset returns the index of the first byte of pixel (x, y).
func (img *Image) Offset(x, y int) int {
	return y*img.Stride + x*img.Channels
}

// FromImage copies src into a raster. Opaque grey sources become 1 channel,
// other grey sources 2, opaque colour 3 and everything else 4.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	gray := isGray(src)
	opaque := isOpaque(src)

	channels := 4
	switch {
	case gray && opaque:
		channels = 1
	case gray:
		channels = 2
	case opaque:
		channels = 3
	}

	out := NewImage(b.Dx(), b.Dy(), channels)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := out.Offset(x, y)
			switch channels {
			case 1:
				out.Pix[i] = c.R
			case 2:
				out.Pix[i] = c.R
				out.Pix[i+1] = c.A
			case 3:
				out.Pix[i], out.Pix[i+1], out.Pix[i+2] = c.R, c.G, c.B
			default:
				out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = c.R, c.G, c.B, c.A
			}
		}
	}
	return out
}

// ToNRGBA converts the raster for encoding.
func (img *Image) ToNRGBA() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			i := img.Offset(x, y)
			var c color.NRGBA
			switch img.Channels {
			case 1:
				c = color.NRGBA{R: img.Pix[i], G: img.Pix[i], B: img.Pix[i], A: 255}
			case 2:
				c = color.NRGBA{R: img.Pix[i], G: img.Pix[i], B: img.Pix[i], A: img.Pix[i+1]}
			case 3:
				c = color.NRGBA{R: img.Pix[i], G: img.Pix[i+1], B: img.Pix[i+2], A: 255}
			default:
				c = color.NRGBA{R: img.Pix[i], G: img.Pix[i+1], B: img.Pix[i+2], A: img.Pix[i+3]}
			}
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}

func isGray(src image.Image) bool {
	switch src.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	return false
}

func isOpaque(src image.Image) bool {
	if o, ok := src.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}

// EdgeMode selects what is fetched outside the source.
type EdgeMode int

const (
	EdgeWrap EdgeMode = iota
	EdgeSmear
	EdgeBlack
	EdgeBackground
)

var edgeNames = []string{"wrap", "smear", "black", "background"}

func (e EdgeMode) String() string {
	if e < 0 || int(e) >= len(edgeNames) {
		return fmt.Sprintf("EdgeMode(%d)", int(e))
	}
	return edgeNames[e]
}

// EdgeModes returns every edge mode.
func EdgeModes() []EdgeMode {
	return []EdgeMode{EdgeWrap, EdgeSmear, EdgeBlack, EdgeBackground}
}

// ParseEdgeMode resolves an edge mode name.
func ParseEdgeMode(name string) (EdgeMode, error) {
	for i, n := range edgeNames {
		if n == name {
			return EdgeMode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown edge mode %q", name)
}

// Fetcher reads source pixels with edge handling.
type Fetcher struct {
	src        *Image
	edge       EdgeMode
	background [4]uint8
}

// NewFetcher wraps src. background is used by EdgeBackground, in the
// source's channel layout.
func NewFetcher(src *Image, edge EdgeMode, background [4]uint8) *Fetcher {
	return &Fetcher{src: src, edge: edge, background: background}
}

// Source returns the wrapped raster.
func (f *Fetcher) Source() *Image { return f.src }

// Pixel copies the pixel at (x, y) into dst, which must hold Channels bytes.
func (f *Fetcher) Pixel(x, y int, dst []uint8) {
	w, h := f.src.Width, f.src.Height
	if x < 0 || y < 0 || x >= w || y >= h {
		switch f.edge {
		case EdgeWrap:
			x = wrap(x, w)
			y = wrap(y, h)
		case EdgeSmear:
			x = clampInt(x, 0, w-1)
			y = clampInt(y, 0, h-1)
		case EdgeBlack:
			for i := range dst[:f.src.Channels] {
				dst[i] = 0
			}
			return
		default:
			copy(dst[:f.src.Channels], f.background[:f.src.Channels])
			return
		}
	}

	i := f.src.Offset(x, y)
	copy(dst[:f.src.Channels], f.src.Pix[i:i+f.src.Channels])
}

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
