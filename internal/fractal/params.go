// Package fractal combines octaves of a noise basis into fBm and
// multifractal signals.
package fractal

import (
	"fmt"
	"math"
)

// Kind selects how octaves are combined.
type Kind int

const (
	FBM Kind = iota
	Multifractal
	InverseMultifractal
)

var kindNames = []string{"fbm", "multifractal", "inv_multifractal"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Kinds returns every fractal kind.
func Kinds() []Kind {
	return []Kind{FBM, Multifractal, InverseMultifractal}
}

// ParseKind resolves a fractal name such as "multifractal".
func ParseKind(name string) (Kind, error) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown fractal mode %q", name)
}

// octaveShift is added to every coordinate once per octave.
const octaveShift = 37.687322

// partialOctave is the smallest fractional octave that is still evaluated.
const partialOctave = 0.0001

// Params are the fractal controls. Octaves may be fractional; the remainder
// weights one partial octave.
type Params struct {
	Octaves    float64
	Lacunarity float64
	Hurst      float64
}

// Weights are the derived per-octave weights.
type Weights struct {
	// W has one entry per whole octave plus the partial one.
	W []float64
	// Count is the number of octaves actually evaluated.
	Count int
	// Exponent is solved for the multifractal modes so that
	// Scaling^Exponent == 0.5.
	Exponent float64
	// Scaling is the sum (fBm) or product (multifractal) the weights were
	// normalised against.
	Scaling float64
}

// ComputeWeights derives octave weights for kind.
func ComputeWeights(p Params, kind Kind) Weights {
	whole := math.Floor(p.Octaves)
	frac := p.Octaves - whole
	n := int(whole)

	w := make([]float64, n+1)
	freq := 1.0
	for i := range w {
		w[i] = math.Pow(freq, -4*p.Hurst)
		freq *= p.Lacunarity
	}
	w[n] *= frac

	out := Weights{W: w, Count: n}

	if kind == FBM {
		sum := 0.0
		for _, v := range w {
			sum += v
		}
		for i := range w {
			w[i] /= sum
		}
		out.Scaling = sum
		out.Exponent = 1
	} else {
		scaling := 1.0
		for _, v := range w {
			scaling *= 1 - 0.5*v
		}
		out.Scaling = scaling
		out.Exponent = math.Log(0.5) / math.Log(scaling)
	}

	if frac > partialOctave {
		out.Count++
	}
	return out
}
