// Package basis implements the scalar noise fields sampled by the fractal
// compositor: gradient lattice noise, sparse convolution noise and cellular
// noise, each in 3, 4 or 5 dimensions.
package basis

import (
	"fmt"

	"github.com/MeKo-Tech/noisesynth/internal/random"
)

// MaxDim is the largest supported dimension.
const MaxDim = 5

// Point is a sample position. Only the first Dim() coordinates are read.
type Point [MaxDim]float64

// Sampler evaluates one basis at a point. Samplers that memoise feature
// points are not safe for concurrent use; build one per goroutine.
type Sampler interface {
	Dim() int
	Sample(p Point) float64
}

// Kind selects a basis function.
type Kind int

const (
	Lattice Kind = iota
	LatticeTurbulence
	Sparse
	SparseTurbulence
	Skin
	Puffy
	Fractured
	Crystals
	Galvanized
)

var kindNames = []string{
	"lattice_noise",
	"lattice_turbulence",
	"sparse_noise",
	"sparse_turbulence",
	"skin",
	"puffy",
	"fractured",
	"crystals",
	"galvanized",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Kinds returns every basis kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, len(kindNames))
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// ParseKind resolves a basis name such as "sparse_noise".
func ParseKind(name string) (Kind, error) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown basis %q", name)
}

// Turbulent reports whether the fractal compositor rectifies samples of k.
func (k Kind) Turbulent() bool {
	return k == LatticeTurbulence || k == SparseTurbulence
}

// IsCellular reports whether k is one of the cellular looks.
func (k Kind) IsCellular() bool {
	return k >= Skin && k <= Galvanized
}

// Options tune basis construction.
type Options struct {
	// GalvanizedScale multiplies the normalised projection of the galvanized
	// look. It comes from the calibration table.
	GalvanizedScale float64
}

// New builds a fresh sampler with its own feature-point cache.
func New(ctx *random.Context, kind Kind, dim int, opts Options) (Sampler, error) {
	if err := checkDim(dim); err != nil {
		return nil, err
	}

	switch kind {
	case Lattice, LatticeTurbulence:
		return NewLattice(ctx, dim), nil
	case Sparse, SparseTurbulence:
		return NewSparse(ctx, dim), nil
	case Skin, Puffy, Fractured, Crystals:
		return NewCellLook(NewCellular(ctx, dim), kind, 0), nil
	case Galvanized:
		return NewCellLook(NewCellular(ctx, dim), kind, opts.GalvanizedScale), nil
	default:
		return nil, fmt.Errorf("unknown basis kind %d", int(kind))
	}
}

func checkDim(dim int) error {
	if dim < 3 || dim > MaxDim {
		return fmt.Errorf("dimension must be 3, 4 or 5, got %d", dim)
	}
	return nil
}

// Curve is the quintic ease curve with continuous second derivative.
func Curve(t float64) float64 {
	t2 := t * t
	return ((((-20.0*t)+70.0)*t-84.0)*t + 35.0) * t2 * t2
}

// Lerp interpolates between a and b.
func Lerp(t, a, b float64) float64 {
	return (b-a)*t + a
}
