// Package random provides the seeded generator and the permutation-table
// hashes every noise basis is built on.
package random

// multiplier is the multiply-with-carry factor.
const multiplier = 1791398085

// initialX is the generator state every seed starts from.
const initialX = 30903

// MWC is a 32-bit multiply-with-carry generator.
// The zero value is not seeded; use NewMWC or Seed.
type MWC struct {
	x  uint32
	c  uint32
	ah uint32
	al uint32
}

// NewMWC returns a generator seeded with seed.
func NewMWC(seed uint32) *MWC {
	r := &MWC{}
	r.Seed(seed)
	return r
}

// Seed resets the generator so that the same seed reproduces the same stream.
func (r *MWC) Seed(seed uint32) {
	r.x = initialX
	r.c = seed
	r.ah = multiplier >> 16
	r.al = multiplier & 0xffff
}

// Next advances the generator and returns the next 32-bit value.
func (r *MWC) Next() uint32 {
	xh := r.x >> 16
	xl := r.x & 0xffff

	r.x = r.x*multiplier + r.c
	r.c = xh*r.ah + ((xh * r.al) >> 16) + ((xl * r.ah) >> 16)
	// carry out of the low 32 bits of xl*al + c
	if xl*r.al >= ^r.c+1 {
		r.c++
	}

	return r.x
}

// Float64 returns the next value scaled to [0, 1).
func (r *MWC) Float64() float64 {
	return float64(r.Next()) / 4294967296.0
}
