package render

import (
	"context"
	"image"
	"testing"

	"github.com/MeKo-Tech/noisesynth/internal/basis"
	"github.com/MeKo-Tech/noisesynth/internal/config"
	"github.com/MeKo-Tech/noisesynth/internal/tile"
	"github.com/MeKo-Tech/noisesynth/internal/warp"
)

// BenchmarkRenderRegion renders one 128x128 region per basis.
func BenchmarkRenderRegion(b *testing.B) {
	for _, k := range basis.Kinds() {
		b.Run(k.String(), func(b *testing.B) {
			s := testSettings(b, func(st *config.State) {
				st.Basis = k.String()
				st.Octaves = 4
			})
			r := newRenderer(s, 128, 128, FormatRGBA)

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				// the plane changes so cached values are not reused
				if err := r.RenderRegion(float64(i)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkMappings compares the embeddings at the same basis.
func BenchmarkMappings(b *testing.B) {
	for _, mode := range []string{"planar", "tileable", "spherical"} {
		b.Run(mode, func(b *testing.B) {
			s := testSettings(b, func(st *config.State) {
				st.Mapping = mode
				st.IgnorePhase = false
			})
			r := newRenderer(s, 128, 128, FormatGrayAlpha)

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := r.RenderRegion(0); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkRenderImage renders a 512x512 image through the worker pool.
func BenchmarkRenderImage(b *testing.B) {
	s := testSettings(b, func(st *config.State) { st.ColorSource = "gradient" })
	job := Job{Settings: s, Width: 512, Height: 512}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := RenderImage(context.Background(), job); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkTile renders z3 tiles.
func BenchmarkTile(b *testing.B) {
	g, err := NewTileGenerator(testSettings(b, nil), nil)
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c := tile.NewCoords(3, uint32(i%8), uint32(i/8%8))
		if _, err := g.Render(c); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkWarp compares the resampling qualities on a 256x256 source.
func BenchmarkWarp(b *testing.B) {
	src := image.NewNRGBA(image.Rect(0, 0, 256, 256))
	for i := range src.Pix {
		src.Pix[i] = uint8(i)
	}
	raster := warp.FromImage(src)

	for _, q := range []string{"faster", "better"} {
		b.Run(q, func(b *testing.B) {
			s := testSettings(b, func(st *config.State) {
				st.ColorSource = "warp"
				st.Warp.Quality = q
				st.Warp.Caustics = 30
			})
			r := newRenderer(s, 256, 256, FormatRGBA)
			r.SetSource(warp.NewFetcher(raster, s.Warp.Edge, [4]uint8{}))
			dst := warp.NewImage(256, 256, raster.Channels)

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := r.RenderWarp(dst); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
