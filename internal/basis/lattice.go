package basis

import (
	"math"

	"github.com/MeKo-Tech/noisesynth/internal/random"
)

// grad3 lists the pseudo-gradients selected by the low 4 hash bits in 3-D.
// The last four repeat earlier directions to fill 16 slots.
var grad3 = [16][3]float64{
	{1, 1, 0}, {1, -1, 0}, {-1, 1, 0}, {-1, -1, 0},
	{1, 0, 1}, {1, 0, -1}, {-1, 0, 1}, {-1, 0, -1},
	{0, 1, 1}, {0, 1, -1}, {0, -1, 1}, {0, -1, -1},
	{1, 1, 0}, {-1, 1, 0}, {0, -1, 1}, {0, -1, -1},
}

// grad4 lists the 32 pseudo-gradients of the 4-D basis: every sign
// combination over each triple of axes.
var grad4 = buildGrad4()

func buildGrad4() [32][4]float64 {
	triples := [4][3]int{{0, 1, 2}, {0, 1, 3}, {0, 2, 3}, {1, 2, 3}}
	var g [32][4]float64
	for t, axes := range triples {
		for k := 0; k < 8; k++ {
			row := &g[t*8+k]
			row[axes[0]] = sign(k&2 == 0)
			row[axes[1]] = sign(k&1 == 0)
			row[axes[2]] = sign(k&4 == 0)
		}
	}
	return g
}

// grad5Axes lists, per selector, the four axes of a 5-D gradient in the
// order the hash sign bits apply to them. Axes are x, y, z, s, t.
var grad5Axes = [5][4]int{
	{0, 1, 2, 4},
	{0, 1, 3, 4},
	{0, 3, 2, 4},
	{3, 1, 2, 4},
	{0, 1, 2, 3},
}

func sign(positive bool) float64 {
	if positive {
		return 1
	}
	return -1
}

// LatticeNoise is gradient noise over the integer lattice. It holds no
// mutable state and is safe for concurrent use.
type LatticeNoise struct {
	ctx *random.Context
	dim int
}

// NewLattice returns lattice noise of the given dimension (3 to 5).
func NewLattice(ctx *random.Context, dim int) *LatticeNoise {
	return &LatticeNoise{ctx: ctx, dim: dim}
}

func (l *LatticeNoise) Dim() int { return l.dim }

// Sample evaluates the noise at p.
func (l *LatticeNoise) Sample(p Point) float64 {
	dim := l.dim

	var base [MaxDim]int
	var frac [MaxDim]float64
	for a := 0; a < dim; a++ {
		f := math.Floor(p[a])
		base[a] = int(f)
		frac[a] = p[a] - f
	}

	// corner values, bit a of the index selects the upper vertex on axis a
	corners := 1 << dim
	var dp [1 << MaxDim]float64
	var v Point
	var c [MaxDim]int
	for i := 0; i < corners; i++ {
		for a := 0; a < dim; a++ {
			bit := (i >> a) & 1
			v[a] = frac[a] - float64(bit)
			c[a] = base[a] + bit
		}
		dp[i] = l.gradient(l.ctx.HashN(c[:dim]), v)
	}

	// collapse along x, then y, and so on
	for a := 0; a < dim; a++ {
		t := Curve(frac[a])
		step := 1 << a
		for i := 0; i < corners; i += step << 1 {
			dp[i] = Lerp(t, dp[i], dp[i+step])
		}
	}

	return dp[0]
}

func (l *LatticeNoise) gradient(h int, v Point) float64 {
	switch l.dim {
	case 3:
		g := &grad3[h&15]
		return g[0]*v[0] + g[1]*v[1] + g[2]*v[2]
	case 4:
		g := &grad4[h&31]
		return g[0]*v[0] + g[1]*v[1] + g[2]*v[2] + g[3]*v[3]
	default:
		axes := &grad5Axes[(h>>4)%5]
		return sign(h&1 != 0)*v[axes[0]] +
			sign(h&2 != 0)*v[axes[1]] +
			sign(h&4 != 0)*v[axes[2]] +
			sign(h&8 != 0)*v[axes[3]]
	}
}
