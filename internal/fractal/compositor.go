package fractal

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/noisesynth/internal/basis"
	"github.com/MeKo-Tech/noisesynth/internal/random"
)

// Selector identifies one evaluator: basis kind, fractal mode and dimension.
type Selector struct {
	Basis   basis.Kind
	Fractal Kind
	Dim     int
}

func (s Selector) String() string {
	return fmt.Sprintf("%s/%s/%dd", s.Basis, s.Fractal, s.Dim)
}

// Index numbers the selector densely over all basis, fractal and
// dimension combinations.
func (s Selector) Index() int {
	return int(s.Basis)*9 + int(s.Fractal)*3 + (s.Dim - 3)
}

// Validate checks that every component of the selector is known.
func (s Selector) Validate() error {
	if s.Basis < basis.Lattice || s.Basis > basis.Galvanized {
		return fmt.Errorf("unknown basis kind %d", int(s.Basis))
	}
	if s.Fractal < FBM || s.Fractal > InverseMultifractal {
		return fmt.Errorf("unknown fractal kind %d", int(s.Fractal))
	}
	if s.Dim < 3 || s.Dim > basis.MaxDim {
		return fmt.Errorf("dimension must be 3, 4 or 5, got %d", s.Dim)
	}
	return nil
}

// Compositor evaluates one selector. It owns the basis instance and its
// point cache, so it must not be shared between goroutines.
type Compositor struct {
	sel        Selector
	src        basis.Sampler
	turbulence bool
	mid        float64
	fac        float64
	lacunarity float64
	weights    Weights
}

// New resolves sel into a compositor backed by a fresh basis instance.
func New(ctx *random.Context, sel Selector, p Params, cal Calibration) (*Compositor, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}
	if cal == nil {
		cal = DefaultCalibration()
	}

	entry, err := cal.Lookup(sel.Basis, sel.Dim)
	if err != nil {
		return nil, err
	}

	opts := basis.Options{}
	if sel.Basis == basis.Galvanized {
		opts.GalvanizedScale = entry.Fac
		entry = Entry{Mid: 0, Fac: 1}
	}

	src, err := basis.New(ctx, sel.Basis, sel.Dim, opts)
	if err != nil {
		return nil, err
	}

	return &Compositor{
		sel:        sel,
		src:        src,
		turbulence: sel.Basis.Turbulent(),
		mid:        entry.Mid,
		fac:        entry.Fac,
		lacunarity: p.Lacunarity,
		weights:    ComputeWeights(p, sel.Fractal),
	}, nil
}

// Selector returns the selector the compositor was built for.
func (c *Compositor) Selector() Selector { return c.sel }

// Dim returns the number of coordinates Eval reads.
func (c *Compositor) Dim() int { return c.sel.Dim }

// Weights returns the octave weights in use.
func (c *Compositor) Weights() Weights { return c.weights }

// Basis returns the underlying basis instance.
func (c *Compositor) Basis() basis.Sampler { return c.src }

// Eval returns the fractal value at p, approximately in [-0.5, 0.5].
func (c *Compositor) Eval(p basis.Point) float64 {
	dim := c.sel.Dim
	w := c.weights.W
	mid, fac := c.mid, c.fac

	value := 0.0
	if c.sel.Fractal != FBM {
		value = 1.0
	}

	shift := 0.0
	for i := 0; i < c.weights.Count; i++ {
		var q basis.Point
		for a := 0; a < dim; a++ {
			q[a] = p[a] + shift
		}
		v := c.src.Sample(q)

		if c.turbulence {
			v = math.Abs(v - mid)
			switch c.sel.Fractal {
			case FBM:
				value += v * w[i]
			case Multifractal:
				value *= 1 + (v*2*fac-1)*w[i]
			case InverseMultifractal:
				value *= 1 + (-v*2*fac)*w[i]
			}
		} else {
			switch c.sel.Fractal {
			case FBM:
				value += v * w[i]
			case Multifractal:
				value *= 1 + ((v-mid)*fac-0.5)*w[i]
			case InverseMultifractal:
				value *= 1 + ((v-mid)*-fac-0.5)*w[i]
			}
		}

		for a := 0; a < dim; a++ {
			p[a] *= c.lacunarity
		}
		shift += octaveShift
	}

	// a basis sample outside its calibrated range can push a factor below zero
	if c.sel.Fractal != FBM && value < 0 {
		value = 0
	}

	switch c.sel.Fractal {
	case Multifractal:
		return math.Pow(value, c.weights.Exponent) - 0.5
	case InverseMultifractal:
		return -(math.Pow(value, c.weights.Exponent) - 0.5)
	}
	if c.turbulence {
		return value*(fac*2) - 0.5
	}
	return (value - mid) * fac
}
