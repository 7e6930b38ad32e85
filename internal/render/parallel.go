package render

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/gift"

	"github.com/MeKo-Tech/noisesynth/internal/basis"
	"github.com/MeKo-Tech/noisesynth/internal/config"
	"github.com/MeKo-Tech/noisesynth/internal/fractal"
	"github.com/MeKo-Tech/noisesynth/internal/tile"
	"github.com/MeKo-Tech/noisesynth/internal/warp"
	"github.com/MeKo-Tech/noisesynth/internal/worker"
)

// DefaultRegionSize is the edge length of the regions an image is split
// into for parallel rendering.
const DefaultRegionSize = 64

// Job describes a full image render.
type Job struct {
	Settings    config.Settings
	Calibration fractal.Calibration
	Width       int
	Height      int
	// Source, when set, is the background that colours are blended over
	// and the image the warp colour source resamples.
	Source     image.Image
	RegionSize int
	Workers    int
	OnProgress worker.ProgressFunc
}

// RenderImage renders a whole image in parallel regions. Each worker owns
// its own Renderer.
func RenderImage(ctx context.Context, job Job) (*image.NRGBA, error) {
	if job.Width <= 0 || job.Height <= 0 {
		return nil, fmt.Errorf("image size must be positive, got %dx%d", job.Width, job.Height)
	}
	if job.Settings.ColorSource == config.ColorWarp && job.Source == nil {
		return nil, fmt.Errorf("the warp colour source needs an input image")
	}
	size := job.RegionSize
	if size <= 0 {
		size = DefaultRegionSize
	}

	bounds := image.Rect(0, 0, job.Width, job.Height)
	dst := image.NewNRGBA(bounds)
	format := FormatRGBA
	var fetcher *warp.Fetcher

	if job.Source != nil {
		if job.Source.Bounds().Size() != bounds.Size() {
			return nil, fmt.Errorf("source image is %v, output is %v", job.Source.Bounds().Size(), bounds.Size())
		}
		gift.New().Draw(dst, job.Source)

		raster := warp.FromImage(job.Source)
		format = FormatFor(raster.Channels)
		fetcher = warp.NewFetcher(raster, job.Settings.Warp.Edge, BackgroundPixel(job.Settings.Background, raster.Channels))
	}

	pool := worker.New(worker.Config{
		Workers: job.Workers,
		NewGenerator: func() (worker.Generator, error) {
			r := New(job.Settings, job.Calibration)
			r.SetBuffer(job.Width, job.Height, 0, 0, format)
			if fetcher != nil {
				r.SetSource(fetcher)
			}
			return &regionGenerator{r: r, dst: dst}, nil
		},
		OnProgress: job.OnProgress,
	})

	results := pool.Run(ctx, worker.Split(bounds, size))
	if err, failed := worker.Errors(results); err != nil {
		return nil, fmt.Errorf("%d of %d regions failed, first: %w", failed, len(results), err)
	}
	return dst, nil
}

// regionGenerator draws regions into a shared image. Regions never
// overlap, so workers write disjoint pixels.
type regionGenerator struct {
	r   *Renderer
	dst *image.NRGBA
}

func (g *regionGenerator) Generate(_ context.Context, task worker.Task) (*image.NRGBA, error) {
	g.r.SetRegion(task.Region)
	if err := g.r.Draw(g.dst, task.Region.Min); err != nil {
		return nil, err
	}
	return g.dst.SubImage(task.Region).(*image.NRGBA), nil
}

func (g *regionGenerator) CacheStats() (basis.CacheStats, bool) { return g.r.CacheStats() }

// BackgroundPixel converts c to the layout of a raster with the given
// channel count.
func BackgroundPixel(c color.NRGBA, channels int) [4]uint8 {
	grey := uint8(lumR*float64(c.R) + lumG*float64(c.G) + lumB*float64(c.B) + 0.5)
	switch channels {
	case 1:
		return [4]uint8{grey}
	case 2:
		return [4]uint8{grey, c.A}
	case 3:
		return [4]uint8{c.R, c.G, c.B}
	default:
		return [4]uint8{c.R, c.G, c.B, c.A}
	}
}

// TileGenerator renders XYZ map tiles of the noise field. At zoom z the
// buffer is tile.WorldSize(z) pixels square and the feature size grows by
// tile.Scale(z), so the pattern stays put geographically.
type TileGenerator struct {
	r    *Renderer
	base config.Settings
	zoom int
}

// NewTileGenerator creates a generator for s. Warp output needs a source
// image and cannot be tiled.
func NewTileGenerator(s config.Settings, cal fractal.Calibration) (*TileGenerator, error) {
	if s.ColorSource == config.ColorWarp {
		return nil, fmt.Errorf("the warp colour source cannot be rendered as map tiles")
	}
	return &TileGenerator{r: New(s, cal), base: s, zoom: -1}, nil
}

// Render draws one tile.
func (g *TileGenerator) Render(c tile.Coords) (*image.NRGBA, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if int(c.Z) != g.zoom {
		s := g.base
		s.SizeX *= tile.Scale(c.Z)
		s.SizeY *= tile.Scale(c.Z)
		g.r.SetState(s)
		world := tile.WorldSize(c.Z)
		g.r.SetBuffer(world, world, 0, 0, FormatRGBA)
		g.zoom = int(c.Z)
	}

	g.r.SetRegion(c.Region())
	dst := image.NewNRGBA(image.Rect(0, 0, tile.Size, tile.Size))
	if err := g.r.Draw(dst, image.Point{}); err != nil {
		return nil, fmt.Errorf("failed to render tile %s: %w", c, err)
	}
	return dst, nil
}

// Generate implements worker.Generator for tile tasks.
func (g *TileGenerator) Generate(_ context.Context, task worker.Task) (*image.NRGBA, error) {
	return g.Render(task.Coords)
}

// CacheStats reports the point cache counters of the tile renderer.
func (g *TileGenerator) CacheStats() (basis.CacheStats, bool) { return g.r.CacheStats() }
