// Package tone reshapes fractal output into [0, 1]: gain, bias and pinch
// curves followed by a periodic output function.
package tone

import (
	"fmt"
	"math"
)

// Function is the periodic output function.
type Function int

const (
	Ramp Function = iota
	Triangle
	Sine
	HalfSine
)

var functionNames = []string{"ramp", "triangle", "sine", "half_sine"}

func (f Function) String() string {
	if f < 0 || int(f) >= len(functionNames) {
		return fmt.Sprintf("Function(%d)", int(f))
	}
	return functionNames[f]
}

// Functions returns every output function.
func Functions() []Function {
	return []Function{Ramp, Triangle, Sine, HalfSine}
}

// ParseFunction resolves an output function name.
func ParseFunction(name string) (Function, error) {
	for i, n := range functionNames {
		if n == name {
			return Function(i), nil
		}
	}
	return 0, fmt.Errorf("unknown output function %q", name)
}

// Epsilon keeps the curve input away from the poles of bias and pinch.
const Epsilon = 1.0 / 1024.0

// Params are the user-facing tone controls. Gain, bias and pinch are in
// [-1, 1] (values outside are clamped); shift is a percentage.
type Params struct {
	Gain      float64
	Bias      float64
	Pinch     float64
	Function  Function
	Frequency float64
	Shift     float64
	Reverse   bool
}

// Shaper applies precomputed tone coefficients. It is immutable and safe
// for concurrent use.
type Shaper struct {
	gain      float64
	bias      [2]float64
	pinch     [5]float64
	function  Function
	reverse   bool
	frequency float64
	shift     float64
	average   float64
}

// New derives the shaper coefficients from p.
func New(p Params) *Shaper {
	s := &Shaper{
		function:  p.Function,
		reverse:   p.Reverse,
		frequency: p.Frequency,
		shift:     math.Mod(p.Shift/100, 1),
	}

	s.gain = math.Pow(6, clamp(p.Gain, -1, 1))

	// bias maps 0.5 to b
	b := clamp(p.Bias, -1, 1)*0.499 + 0.5
	tmp := 1/b - 2
	s.bias = [2]float64{tmp + 1, -tmp}

	// pinch is a pair of bias curves meeting at 0.5
	pn := clamp(p.Pinch, -1, 1)*0.499 + 0.5
	tmp = 1/(1-pn) - 2
	tmp2 := 2*tmp + 1
	s.pinch = [5]float64{tmp + 1, -2 * tmp, -tmp / tmp2, (1 - tmp) / tmp2, 2 * tmp / tmp2}

	if s.function == Sine || s.function == HalfSine {
		s.frequency *= 2 * math.Pi
	}

	s.average = s.Curve(0.5)
	return s
}

// Average is the curve value of a centred input.
func (s *Shaper) Average() float64 { return s.average }

// Curve applies the clamp, bias and pinch to a value in [0, 1]. The result
// stays in [Epsilon, 1-Epsilon].
func (s *Shaper) Curve(v float64) float64 {
	if v > 1-Epsilon {
		return 1 - Epsilon
	}
	if v < Epsilon {
		return Epsilon
	}

	v = v / (s.bias[0] + s.bias[1]*v)
	if v < 0.5 {
		return v / (s.pinch[0] + s.pinch[1]*v)
	}
	return (s.pinch[2] + v) / (s.pinch[3] + s.pinch[4]*v)
}

// Tone applies gain and Curve to a raw fractal value (about [-0.5, 0.5]).
func (s *Shaper) Tone(raw float64) float64 {
	return s.Curve(raw*s.gain + 0.5)
}

// Output applies the periodic function and the shift to a curve value.
func (s *Shaper) Output(v float64) float64 {
	switch s.function {
	case Triangle:
		v = math.Mod(v*s.frequency, 1) * 2
		if v > 1 {
			v = 2 - v
		}
		if s.reverse {
			v = 1 - v
		}
	case Sine:
		if s.reverse {
			v = (1 + math.Cos(v*s.frequency)) / 2
		} else {
			v = (1 - math.Cos(v*s.frequency)) / 2
		}
	case HalfSine:
		v = math.Abs(math.Cos(v * s.frequency))
		if s.reverse {
			v = 1 - v
		}
	default:
		v = math.Mod(v*s.frequency, 1)
		if s.reverse {
			v = 1 - v
		}
	}

	if s.shift != 0 {
		v += s.shift
		if v > 1 {
			v--
		} else if v < 0 {
			v++
		}
	}
	return v
}

// Shape maps a raw fractal value to the final output in [0, 1].
func (s *Shaper) Shape(raw float64) float64 {
	return s.Output(s.Tone(raw))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
