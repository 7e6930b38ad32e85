package warp

import (
	"fmt"
	"math"

	"github.com/aquilax/go-perlin"
)

// Overscan is the extra rows and columns a warp field needs: one on each
// side for the central differences.
const Overscan = 2

// Quality selects the resampling strategy.
type Quality int

const (
	// Faster fetches one source pixel per output pixel.
	Faster Quality = iota
	// Better averages a small grid spanning the local displacement.
	Better
)

var qualityNames = []string{"faster", "better"}

func (q Quality) String() string {
	if q < 0 || int(q) >= len(qualityNames) {
		return fmt.Sprintf("Quality(%d)", int(q))
	}
	return qualityNames[q]
}

// ParseQuality resolves a quality name.
func ParseQuality(name string) (Quality, error) {
	for i, n := range qualityNames {
		if n == name {
			return Quality(i), nil
		}
	}
	return 0, fmt.Errorf("unknown warp quality %q", name)
}

const (
	// causticGain shapes the caustics slider into a coefficient.
	causticGain = 0.8
	// minArea keeps the brightness compensation finite.
	minArea = 0.001
	// maxSamples caps the resampling grid per axis.
	maxSamples = 6
	// brightCap limits brightened channel values before conversion.
	brightCap = 255.1
)

// CausticCoefficients maps the caustics percentage (-100..100) to the
// per-axis area coefficients for the given feature and warp sizes.
func CausticCoefficients(caustics, sizeX, sizeY, warpX, warpY float64) (cx, cy float64) {
	t := math.Max(0, math.Min(1, (caustics+100)/200))
	t2 := (1/causticGain - 2) * (1 - 2*t)
	if t < 0.5 {
		t = t / (t2 + 1)
	} else {
		t = (t2 - t) / (t2 - 1)
	}
	t = -(t - 0.5) * 2

	return t * sizeX / warpX, t * sizeY / warpY
}

// Params configure a Warper.
type Params struct {
	// FeatureX and FeatureY are the noise feature size in pixels.
	FeatureX float64
	FeatureY float64
	// WarpX and WarpY scale the displacement.
	WarpX float64
	WarpY float64
	// Caustics is the area-distortion strength in percent.
	Caustics float64
	Quality  Quality
	// Jitter perturbs sample positions by up to this many pixels.
	Jitter float64
	Seed   int64
}

// Warper resamples a source through a displacement field.
type Warper struct {
	fetch  *Fetcher
	scaleX float64
	scaleY float64
	coefX  float64
	coefY  float64
	better bool
	jitter float64
	noise  *perlin.Perlin
}

// New builds a Warper reading from fetch.
func New(p Params, fetch *Fetcher) (*Warper, error) {
	if p.WarpX <= 0 || p.WarpY <= 0 {
		return nil, fmt.Errorf("warp size must be positive, got %gx%g", p.WarpX, p.WarpY)
	}
	if p.FeatureX <= 0 || p.FeatureY <= 0 {
		return nil, fmt.Errorf("feature size must be positive, got %gx%g", p.FeatureX, p.FeatureY)
	}

	w := &Warper{
		fetch:  fetch,
		scaleX: p.WarpX * p.FeatureX,
		scaleY: p.WarpY * p.FeatureY,
		better: p.Quality == Better,
		jitter: p.Jitter,
	}
	w.coefX, w.coefY = CausticCoefficients(p.Caustics, p.FeatureX, p.FeatureY, p.WarpX, p.WarpY)
	if p.Jitter > 0 {
		w.noise = perlin.NewPerlin(2.0, 2.0, 3, p.Seed)
	}
	return w, nil
}

// Apply fills dst, a width x height window whose top-left pixel sits at
// (x0, y0) in source coordinates. field holds (width+Overscan) x
// (height+Overscan) values in rows of width+Overscan; output pixel (x, y)
// uses the 3x3 neighbourhood whose top-left corner is field (x, y).
func (w *Warper) Apply(field []float32, width, height, x0, y0 int, dst *Image) error {
	row := width + Overscan
	if len(field) < row*(height+Overscan) {
		return fmt.Errorf("warp field has %d values, need %d", len(field), row*(height+Overscan))
	}
	if dst.Width < width || dst.Height < height {
		return fmt.Errorf("destination %dx%d smaller than %dx%d", dst.Width, dst.Height, width, height)
	}
	if dst.Channels != w.fetch.src.Channels {
		return fmt.Errorf("destination has %d channels, source %d", dst.Channels, w.fetch.src.Channels)
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			fg := field[y*row+x:]
			out := dst.Pix[dst.Offset(x, y):]
			if w.better {
				w.multiPoint(fg, row, x0+x, y0+y, out)
			} else {
				w.singlePoint(fg, row, x0+x, y0+y, out)
			}
		}
	}
	return nil
}

func (w *Warper) singlePoint(fg []float32, row, sx, sy int, out []uint8) {
	row2 := row * 2

	dx1 := float64(fg[1+row]-fg[row]) * w.scaleX
	dx2 := float64(fg[2+row]-fg[1+row]) * w.scaleX
	dy1 := float64(fg[row+1]-fg[1]) * w.scaleY
	dy2 := float64(fg[row2+1]-fg[row+1]) * w.scaleY

	t1 := math.Max(0, (dx1-dx2)*w.coefX+1)
	t2 := math.Max(0, (dy1-dy2)*w.coefY+1)
	areaInv := 1 / math.Max(t1*t2, minArea)

	fx := float64(sx) - float64(int((dx1+dx2)/2))
	fy := float64(sy) - float64(int((dy1+dy2)/2))

	var px [4]uint8
	w.sample(fx, fy, px[:])

	colors, alpha := Format(w.fetch.src.Channels)
	for c := 0; c < colors; c++ {
		out[c] = brighten(float64(px[c]), areaInv)
	}
	if alpha {
		out[colors] = px[colors]
	}
}

func (w *Warper) multiPoint(fg []float32, row, sx, sy int, out []uint8) {
	row2 := row * 2
	d := func(a, b int) float64 { return float64(fg[a] - fg[b]) }

	dx1 := (d(1, 0)*0.25 + d(row+1, row)*0.5 + d(row2+1, row2)*0.25) * w.scaleX
	dx2 := (d(2, 1)*0.25 + d(row+2, row+1)*0.5 + d(row2+2, row2+1)*0.25) * w.scaleX
	dy1 := (d(row, 0)*0.25 + d(row+1, 1)*0.5 + d(row+2, 2)*0.25) * w.scaleY
	dy2 := (d(row2, row)*0.25 + d(row2+1, row+1)*0.5 + d(row2+2, row+2)*0.25) * w.scaleY

	t1 := math.Max(0, (dx1-dx2)*w.coefX+1)
	t2 := math.Max(0, (dy1-dy2)*w.coefY+1)
	areaInv := 1 / math.Max(t1*t2, minArea)

	nx, stepX := sampleGrid(dx1, dx2)
	ny, stepY := sampleGrid(dy1, dy2)

	var sum [4]float64
	var px [4]uint8
	channels := w.fetch.src.Channels
	for j := 0; j < ny; j++ {
		fy := float64(sy) - dy1 + float64(j)*stepY
		for i := 0; i < nx; i++ {
			fx := float64(sx) - dx1 + float64(i)*stepX
			w.sample(fx, fy, px[:])
			for c := 0; c < channels; c++ {
				sum[c] += float64(px[c])
			}
		}
	}

	n := float64(nx * ny)
	colors, alpha := Format(channels)
	for c := 0; c < colors; c++ {
		out[c] = brighten(sum[c]/n, areaInv)
	}
	if alpha {
		out[colors] = uint8(math.Min(255, sum[colors]/n+0.5))
	}
}

// sampleGrid spreads samples across the derivative extent. The step is
// taken before the count is capped, so a capped grid covers only the start
// of a large extent.
func sampleGrid(d1, d2 float64) (count int, step float64) {
	count = int(math.Ceil(math.Abs(d2-d1))) + 1
	if count > 1 {
		step = (d2 - d1) / float64(count-1)
	}
	if count > maxSamples {
		count = maxSamples
	}
	return count, step
}

func (w *Warper) sample(fx, fy float64, dst []uint8) {
	if w.noise != nil {
		fx += w.noise.Noise2D(fx*0.1, fy*0.1) * w.jitter
		fy += w.noise.Noise2D(fy*0.1+31.7, fx*0.1) * w.jitter
	}
	w.fetch.Pixel(int(math.Floor(fx)), int(math.Floor(fy)), dst)
}

func brighten(v, areaInv float64) uint8 {
	v *= areaInv
	if areaInv > 1 && v > brightCap {
		v = brightCap
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
