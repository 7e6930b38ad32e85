package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/gift"

	"github.com/MeKo-Tech/noisesynth/internal/config"
	"github.com/MeKo-Tech/noisesynth/internal/warp"
)

// opaqueAlpha is the foreground alpha above which blending is skipped.
const opaqueAlpha = 0.996

// Blend composites the colour buffer over dst with its top-left corner at
// at. The existing dst pixels are the background.
func (r *Renderer) Blend(dst *image.NRGBA, at image.Point) error {
	b := &r.buf
	rect := image.Rect(at.X, at.Y, at.X+b.Width, at.Y+b.Height)
	if !rect.In(dst.Bounds()) {
		return fmt.Errorf("region %v outside destination %v", rect, dst.Bounds())
	}

	gray := b.Stride == 2
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			fg := b.Pix[b.Offset(x, y):]
			var s color.NRGBA
			var sa float64
			if gray {
				v := to8(fg[0])
				s = color.NRGBA{R: v, G: v, B: v}
				sa = float64(fg[1])
			} else {
				s = color.NRGBA{R: to8(fg[0]), G: to8(fg[1]), B: to8(fg[2])}
				sa = float64(fg[3])
			}
			s.A = to8(float32(sa))

			d := dst.NRGBAAt(at.X+x, at.Y+y)
			if d.A == 0 || sa > opaqueAlpha {
				dst.SetNRGBA(at.X+x, at.Y+y, s)
				continue
			}

			dst.SetNRGBA(at.X+x, at.Y+y, alphaOver(fg, gray, sa, d))
		}
	}
	return nil
}

// alphaOver blends a float foreground pixel over an 8-bit background with
// premultiplied alpha.
func alphaOver(fg []float32, gray bool, sa float64, d color.NRGBA) color.NRGBA {
	da := float64(d.A) / 255.0
	outA := sa + da*(1.0-sa)
	if outA == 0 {
		return color.NRGBA{}
	}

	blend := func(srcVal float32, dstVal uint8) uint8 {
		srcPremult := float64(srcVal) * 255.0 * sa
		dstPremult := float64(dstVal) * da
		outPremult := srcPremult + dstPremult*(1.0-sa)
		return uint8(math.Min(255, math.Round(outPremult/outA)))
	}

	if gray {
		return color.NRGBA{
			R: blend(fg[0], d.R),
			G: blend(fg[0], d.G),
			B: blend(fg[0], d.B),
			A: uint8(math.Round(outA * 255.0)),
		}
	}
	return color.NRGBA{
		R: blend(fg[0], d.R),
		G: blend(fg[1], d.G),
		B: blend(fg[2], d.B),
		A: uint8(math.Round(outA * 255.0)),
	}
}

func to8(v float32) uint8 {
	f := float64(v)*255.0 + 0.5
	if f <= 0 {
		return 0
	}
	if f >= 255 {
		return 255
	}
	return uint8(f)
}

// Draw renders the current region with the configured colour source and
// writes it into dst at at. Colour and channel output is blended over the
// existing pixels; warp output replaces them.
func (r *Renderer) Draw(dst *image.NRGBA, at image.Point) error {
	switch r.settings.ColorSource {
	case config.ColorChannels:
		if err := r.RenderChannels(); err != nil {
			return err
		}
		return r.Blend(dst, at)

	case config.ColorWarp:
		if r.source == nil {
			return fmt.Errorf("warp source image not set")
		}
		out := warp.NewImage(r.region.Dx(), r.region.Dy(), r.source.Source().Channels)
		if err := r.RenderWarp(out); err != nil {
			return err
		}
		gift.New().DrawAt(dst, out.ToNRGBA(), at, gift.CopyOperator)
		return nil

	default:
		if err := r.RenderRegion(0); err != nil {
			return err
		}
		return r.Blend(dst, at)
	}
}
