package config

import (
	"fmt"
	"image/color"

	"github.com/MeKo-Tech/noisesynth/internal/basis"
	"github.com/MeKo-Tech/noisesynth/internal/fractal"
	"github.com/MeKo-Tech/noisesynth/internal/mapping"
	"github.com/MeKo-Tech/noisesynth/internal/tone"
	"github.com/MeKo-Tech/noisesynth/internal/warp"
)

// ColorSource selects how the shaped value becomes pixels.
type ColorSource int

const (
	ColorFgBg ColorSource = iota
	ColorGradient
	ColorChannels
	ColorWarp
)

var colorSourceNames = []string{"fg_bg", "gradient", "channels", "warp"}

func (c ColorSource) String() string {
	if c < 0 || int(c) >= len(colorSourceNames) {
		return fmt.Sprintf("ColorSource(%d)", int(c))
	}
	return colorSourceNames[c]
}

// ParseColorSource resolves a colour source name.
func ParseColorSource(name string) (ColorSource, error) {
	for i, n := range colorSourceNames {
		if n == name {
			return ColorSource(i), nil
		}
	}
	return 0, fmt.Errorf("unknown colour source %q", name)
}

// ChannelSource fills one output channel in channels mode.
type ChannelSource int

const (
	Channel1 ChannelSource = iota
	Channel1Inverted
	Channel2
	Channel2Inverted
	Channel3
	Channel3Inverted
	Channel4
	Channel4Inverted
	ChannelLight
	ChannelMid
	ChannelDark
	ChannelSolid
)

var channelSourceNames = []string{
	"1", "inv_1", "2", "inv_2", "3", "inv_3", "4", "inv_4", "light", "mid", "dark", "solid",
}

func (c ChannelSource) String() string {
	if c < 0 || int(c) >= len(channelSourceNames) {
		return fmt.Sprintf("ChannelSource(%d)", int(c))
	}
	return channelSourceNames[c]
}

// ParseChannelSource resolves a channel source name.
func ParseChannelSource(name string) (ChannelSource, error) {
	for i, n := range channelSourceNames {
		if n == name {
			return ChannelSource(i), nil
		}
	}
	return 0, fmt.Errorf("unknown channel source %q", name)
}

// Plane returns the noise plane of a rendered source and whether it is
// inverted. Constant sources report ok == false.
func (c ChannelSource) Plane() (plane int, inverted bool, ok bool) {
	if c > Channel4Inverted {
		return 0, false, false
	}
	return int(c), int(c)&1 == 1, true
}

// Constant returns the fill value of a constant source.
func (c ChannelSource) Constant() float64 {
	switch c {
	case ChannelLight, ChannelSolid:
		return 1
	case ChannelMid:
		return 0.5
	default:
		return 0
	}
}

// Settings are the resolved, typed parameters.
type Settings struct {
	Seed uint32

	SizeX float64
	SizeY float64

	Basis   basis.Kind
	Fractal fractal.Kind
	Params  fractal.Params

	Mapping     mapping.Mode
	Phase       float64
	IgnorePhase bool

	Tone tone.Params

	ColorSource ColorSource
	Foreground  color.NRGBA
	Background  color.NRGBA
	Gradient    []color.NRGBA
	Channels    [4]ChannelSource

	Warp WarpSettings
}

// WarpSettings are the typed warp parameters.
type WarpSettings struct {
	SizeX    float64
	SizeY    float64
	Caustics float64
	Quality  warp.Quality
	Edge     warp.EdgeMode
	Jitter   float64
}

// Dim returns the basis dimension the mapping samples.
func (s Settings) Dim() int {
	return s.Mapping.Dim(s.IgnorePhase)
}

// Selector returns the evaluator selector for these settings.
func (s Settings) Selector() fractal.Selector {
	return fractal.Selector{Basis: s.Basis, Fractal: s.Fractal, Dim: s.Dim()}
}

// Validate checks numeric ranges.
func (s State) Validate() error {
	if s.SizeX <= 0 || s.SizeY <= 0 {
		return fmt.Errorf("feature size must be positive, got %gx%g", s.SizeX, s.SizeY)
	}
	if s.Octaves <= 0.0001 || s.Octaves > 16 {
		return fmt.Errorf("octaves must be in (0, 16], got %g", s.Octaves)
	}
	if s.Lacunarity < 1 {
		return fmt.Errorf("lacunarity must be at least 1, got %g", s.Lacunarity)
	}
	if s.Hurst < 0 || s.Hurst > 2 {
		return fmt.Errorf("hurst must be in [0, 2], got %g", s.Hurst)
	}
	if s.Frequency <= 0 {
		return fmt.Errorf("frequency must be positive, got %g", s.Frequency)
	}

	percents := []struct {
		name string
		v    float64
	}{
		{"gain", s.Gain},
		{"bias", s.Bias},
		{"pinch", s.Pinch},
		{"shift", s.Shift},
		{"warp.caustics", s.Warp.Caustics},
	}
	for _, p := range percents {
		if p.v < -100 || p.v > 100 {
			return fmt.Errorf("%s must be in [-100, 100], got %g", p.name, p.v)
		}
	}

	if s.Warp.SizeX <= 0 || s.Warp.SizeY <= 0 {
		return fmt.Errorf("warp size must be positive, got %gx%g", s.Warp.SizeX, s.Warp.SizeY)
	}
	if s.Warp.Jitter < 0 {
		return fmt.Errorf("warp.jitter must not be negative, got %g", s.Warp.Jitter)
	}
	return nil
}

// Resolve validates s and converts names into typed settings.
func (s State) Resolve() (Settings, error) {
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}

	out := Settings{
		Seed:        s.Seed,
		SizeX:       s.SizeX,
		SizeY:       s.SizeY,
		Params:      fractal.Params{Octaves: s.Octaves, Lacunarity: s.Lacunarity, Hurst: s.Hurst},
		Phase:       s.Phase,
		IgnorePhase: s.IgnorePhase,
		Tone: tone.Params{
			Gain:      s.Gain / 100,
			Bias:      s.Bias / 100,
			Pinch:     s.Pinch / 100,
			Frequency: s.Frequency,
			Shift:     s.Shift,
			Reverse:   s.Reverse,
		},
		Warp: WarpSettings{
			SizeX:    s.Warp.SizeX,
			SizeY:    s.Warp.SizeY,
			Caustics: s.Warp.Caustics,
			Jitter:   s.Warp.Jitter,
		},
	}

	var err error
	if out.Basis, err = basis.ParseKind(s.Basis); err != nil {
		return Settings{}, err
	}
	if out.Fractal, err = fractal.ParseKind(s.Fractal); err != nil {
		return Settings{}, err
	}
	if out.Mapping, err = mapping.ParseMode(s.Mapping); err != nil {
		return Settings{}, err
	}
	if out.Tone.Function, err = tone.ParseFunction(s.Function); err != nil {
		return Settings{}, err
	}
	if out.ColorSource, err = ParseColorSource(s.ColorSource); err != nil {
		return Settings{}, err
	}
	if out.Foreground, err = ParseColor(s.Foreground); err != nil {
		return Settings{}, fmt.Errorf("foreground: %w", err)
	}
	if out.Background, err = ParseColor(s.Background); err != nil {
		return Settings{}, fmt.Errorf("background: %w", err)
	}
	if out.Warp.Quality, err = warp.ParseQuality(s.Warp.Quality); err != nil {
		return Settings{}, err
	}
	if out.Warp.Edge, err = warp.ParseEdgeMode(s.Warp.Edge); err != nil {
		return Settings{}, err
	}

	if len(s.Gradient) < 2 {
		return Settings{}, fmt.Errorf("gradient needs at least 2 colours, got %d", len(s.Gradient))
	}
	out.Gradient = make([]color.NRGBA, len(s.Gradient))
	for i, g := range s.Gradient {
		if out.Gradient[i], err = ParseColor(g); err != nil {
			return Settings{}, fmt.Errorf("gradient stop %d: %w", i, err)
		}
	}

	if len(s.Channels) != 4 {
		return Settings{}, fmt.Errorf("channels needs 4 sources (r, g, b, a), got %d", len(s.Channels))
	}
	for i, name := range s.Channels {
		c, err := ParseChannelSource(name)
		if err != nil {
			return Settings{}, err
		}
		if c == ChannelSolid && i != 3 {
			return Settings{}, fmt.Errorf("channel source %q is only valid for alpha", name)
		}
		out.Channels[i] = c
	}

	return out, nil
}
