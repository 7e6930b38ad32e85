package basis

import (
	"math"

	"github.com/MeKo-Tech/noisesynth/internal/random"
)

// pointSlot memoises the feature points generated for the cell seen last at
// one position of the 3^D neighbourhood window.
type pointSlot struct {
	seed  uint32
	valid bool
	n     int
	ids   []uint32
	pts   []Point
}

func newSlots(dim int) []pointSlot {
	count := 1
	for a := 0; a < dim; a++ {
		count *= 3
	}

	slots := make([]pointSlot, count)
	for i := range slots {
		slots[i].ids = make([]uint32, maxFeatures)
		slots[i].pts = make([]Point, maxFeatures)
	}
	return slots
}

// CacheStats counts slot reuses and regenerations.
type CacheStats struct {
	Hits   int
	Misses int
}

// Add returns the sum of both counters.
func (s CacheStats) Add(o CacheStats) CacheStats {
	return CacheStats{Hits: s.Hits + o.Hits, Misses: s.Misses + o.Misses}
}

// Since returns the lookups made after earlier was taken. A basis rebuilt
// in between starts from zero, so s itself is the difference then.
func (s CacheStats) Since(earlier CacheStats) CacheStats {
	if s.Hits < earlier.Hits || s.Misses < earlier.Misses {
		return s
	}
	return CacheStats{Hits: s.Hits - earlier.Hits, Misses: s.Misses - earlier.Misses}
}

// HitRate returns the share of lookups served from the cache, or 0 when
// there were none.
func (s CacheStats) HitRate() float64 {
	n := s.Hits + s.Misses
	if n == 0 {
		return 0
	}
	return float64(s.Hits) / float64(n)
}

// SparseNoise sums a radial kernel over Poisson-distributed feature points
// in the 3^D cells around the sample.
type SparseNoise struct {
	ctx   *random.Context
	dim   int
	slots []pointSlot
	stats CacheStats
}

// NewSparse returns sparse convolution noise with an empty point cache.
func NewSparse(ctx *random.Context, dim int) *SparseNoise {
	return &SparseNoise{
		ctx:   ctx,
		dim:   dim,
		slots: newSlots(dim),
	}
}

func (s *SparseNoise) Dim() int { return s.dim }

// Stats returns the cache counters accumulated so far.
func (s *SparseNoise) Stats() CacheStats { return s.stats }

// Sample evaluates the noise at p. The result is a non-negative sum of
// kernel values and is centred by calibration.
func (s *SparseNoise) Sample(p Point) float64 {
	dim := s.dim

	var base [MaxDim]int
	var off [MaxDim]int
	for a := 0; a < dim; a++ {
		base[a] = int(math.Floor(p[a]))
		off[a] = -1
	}

	r := 0.0
	for slot := range s.slots {
		// seed chain runs from the last axis to the first
		last := dim - 1
		seed := s.ctx.Hash1(base[last] + off[last])
		for a := last - 1; a >= 0; a-- {
			seed = s.ctx.Hash1(seed + base[a] + off[a])
		}

		var fa Point
		for a := 0; a < dim; a++ {
			fa[a] = float64(base[a]+off[a]) - p[a]
		}

		sl := s.fill(slot, uint32(seed))
		for j := 0; j < sl.n; j++ {
			q := &sl.pts[j]
			d2 := 0.0
			for a := 0; a < dim; a++ {
				d := q[a] + fa[a]
				d2 += d * d
			}
			if d2 < 1.0 {
				r += kernel(d2)
			}
		}

		for a := 0; a < dim; a++ {
			off[a]++
			if off[a] <= 1 {
				break
			}
			off[a] = -1
		}
	}

	return r
}

// fill returns the slot holding the points for seed, regenerating them when
// the slot last saw a different seed.
func (s *SparseNoise) fill(slot int, seed uint32) *pointSlot {
	sl := &s.slots[slot]
	if sl.valid && sl.seed == seed {
		s.stats.Hits++
		return sl
	}
	s.stats.Misses++

	n := int(poissonCount[seed&255])
	x := seed
	for j := 0; j < n; j++ {
		for a := 0; a < s.dim; a++ {
			x = nextSeed(x)
			sl.pts[j][a] = unitFloat(x)
		}
	}

	sl.seed = seed
	sl.valid = true
	sl.n = n
	return sl
}
