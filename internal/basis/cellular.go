package basis

import (
	"math"
	"sort"

	"github.com/MeKo-Tech/noisesynth/internal/random"
)

const (
	// MaxOrder is the number of nearest features tracked.
	MaxOrder = 2

	// cellDensity scales the input before the search.
	cellDensity = 1.0

	farAway = 999999.9

	// galvanizedEpsilon guards the normalisation of the per-feature vector.
	galvanizedEpsilon = 0.001
)

// CellResult holds the nearest features found by Evaluate, closest first.
type CellResult struct {
	F     [MaxOrder]float64
	Delta [MaxOrder]Point
	ID    [MaxOrder]uint32
}

type neighbor struct {
	off  [MaxDim]int
	slot int
}

// neighborhood lists the 3^dim cells around the origin: the centre first,
// then faces, edges and corners, so pruning kicks in as early as possible.
func neighborhood(dim int) []neighbor {
	count := 1
	for a := 0; a < dim; a++ {
		count *= 3
	}

	out := make([]neighbor, count)
	for slot := 0; slot < count; slot++ {
		n := neighbor{slot: slot}
		rest := slot
		for a := 0; a < dim; a++ {
			n.off[a] = rest%3 - 1
			rest /= 3
		}
		out[slot] = n
	}

	sort.SliceStable(out, func(i, j int) bool {
		return nonZero(out[i].off) < nonZero(out[j].off)
	})
	return out
}

func nonZero(off [MaxDim]int) int {
	n := 0
	for _, o := range off {
		if o != 0 {
			n++
		}
	}
	return n
}

// CellularNoise finds the nearest Poisson-distributed feature points.
type CellularNoise struct {
	ctx       *random.Context
	dim       int
	neighbors []neighbor
	slots     []pointSlot
	stats     CacheStats
}

// NewCellular returns a cellular search with an empty point cache.
func NewCellular(ctx *random.Context, dim int) *CellularNoise {
	return &CellularNoise{
		ctx:       ctx,
		dim:       dim,
		neighbors: neighborhood(dim),
		slots:     newSlots(dim),
	}
}

func (c *CellularNoise) Dim() int { return c.dim }

// Stats returns the cache counters accumulated so far.
func (c *CellularNoise) Stats() CacheStats { return c.stats }

// Evaluate fills res with the order (1 or 2) nearest features to p.
func (c *CellularNoise) Evaluate(p Point, order int, res *CellResult) {
	if order < 1 {
		order = 1
	} else if order > MaxOrder {
		order = MaxOrder
	}

	dim := c.dim
	var at Point
	var base [MaxDim]int
	var below, above [MaxDim]float64
	for a := 0; a < dim; a++ {
		at[a] = p[a] * cellDensity
		f := math.Floor(at[a])
		base[a] = int(f)
		frac := at[a] - f
		below[a] = frac * frac
		above[a] = (1 - frac) * (1 - frac)
	}

	for i := 0; i < order; i++ {
		res.F[i] = farAway
		res.Delta[i] = Point{}
		res.ID[i] = 0
	}

	var cell [MaxDim]int
	for _, nb := range c.neighbors {
		// squared distance from p to the nearest face of this cell
		bound := 0.0
		for a := 0; a < dim; a++ {
			switch nb.off[a] {
			case -1:
				bound += below[a]
			case 1:
				bound += above[a]
			}
		}
		if bound >= res.F[order-1] {
			continue
		}

		for a := 0; a < dim; a++ {
			cell[a] = base[a] + nb.off[a]
		}
		c.addSamples(cell, nb.slot, at, order, res)
	}

	for i := 0; i < order; i++ {
		res.F[i] = math.Sqrt(res.F[i]) / cellDensity
		for a := 0; a < dim; a++ {
			res.Delta[i][a] /= cellDensity
		}
	}
}

func (c *CellularNoise) addSamples(cell [MaxDim]int, slot int, at Point, order int, res *CellResult) {
	dim := c.dim
	seed := uint32(c.ctx.HashN(cell[:dim]))
	sl := c.fill(slot, seed)

	for j := 0; j < sl.n; j++ {
		var d Point
		d2 := 0.0
		for a := 0; a < dim; a++ {
			d[a] = sl.pts[j][a] + float64(cell[a]) - at[a]
			d2 += d[a] * d[a]
		}
		if d2 >= res.F[order-1] {
			continue
		}

		// shift worse entries down and insert
		i := order - 1
		for i > 0 && d2 < res.F[i-1] {
			res.F[i] = res.F[i-1]
			res.Delta[i] = res.Delta[i-1]
			res.ID[i] = res.ID[i-1]
			i--
		}
		res.F[i] = d2
		res.Delta[i] = d
		res.ID[i] = sl.ids[j]
	}
}

func (c *CellularNoise) fill(slot int, seed uint32) *pointSlot {
	sl := &c.slots[slot]
	if sl.valid && sl.seed == seed {
		c.stats.Hits++
		return sl
	}
	c.stats.Misses++

	n := int(poissonCount[seed&255])
	x := nextSeed(seed)
	for j := 0; j < n; j++ {
		sl.ids[j] = x
		for a := 0; a < c.dim; a++ {
			x = nextSeed(x)
			sl.pts[j][a] = unitFloat(x)
		}
		x = nextSeed(x)
	}

	sl.seed = seed
	sl.valid = true
	sl.n = n
	return sl
}

// CellLook turns a cellular search into one of the scalar looks.
type CellLook struct {
	cells *CellularNoise
	kind  Kind
	scale float64
	clamp bool
	res   CellResult
}

// NewCellLook wraps cells. scale is only used by the galvanized look.
func NewCellLook(cells *CellularNoise, kind Kind, scale float64) *CellLook {
	return &CellLook{cells: cells, kind: kind, scale: scale, clamp: true}
}

// SetClamp toggles the [-0.5, 0.5] clamp of the galvanized look. Calibration
// measures the unclamped range.
func (l *CellLook) SetClamp(on bool) { l.clamp = on }

func (l *CellLook) Dim() int { return l.cells.dim }

// Cells exposes the underlying search.
func (l *CellLook) Cells() *CellularNoise { return l.cells }

func (l *CellLook) Sample(p Point) float64 {
	switch l.kind {
	case Skin:
		l.cells.Evaluate(p, 2, &l.res)
		return l.res.F[1] - l.res.F[0]
	case Fractured:
		l.cells.Evaluate(p, 2, &l.res)
		return l.res.F[1]
	case Crystals:
		l.cells.Evaluate(p, 1, &l.res)
		return float64(l.cells.ctx.Hash1(int(l.res.ID[0]))) / float64(random.TableSize-1)
	case Galvanized:
		l.cells.Evaluate(p, 1, &l.res)
		return l.galvanized()
	default:
		l.cells.Evaluate(p, 1, &l.res)
		return l.res.F[0]
	}
}

// galvanized projects the nearest delta onto a per-feature direction.
func (l *CellLook) galvanized() float64 {
	dim := l.cells.dim
	id := l.res.ID[0]

	var v Point
	n := 0.0
	for a := 0; a < dim; a++ {
		v[a] = float64(l.cells.ctx.Hash1(int(id+uint32(a)))) - 511.5
		n += v[a] * v[a]
	}
	n = math.Sqrt(n)
	if n > galvanizedEpsilon || n < -galvanizedEpsilon {
		n = l.scale / n
	}

	value := 0.0
	for a := 0; a < dim; a++ {
		value += l.res.Delta[0][a] * v[a]
	}
	value *= n

	if l.clamp {
		value = math.Max(-0.5, math.Min(0.5, value))
	}
	return value
}
