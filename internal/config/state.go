// Package config holds the user-facing render parameters, their defaults and
// validation, and converts them into the typed settings the renderer uses.
package config

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/MeKo-Tech/noisesynth/internal/basis"
	"github.com/MeKo-Tech/noisesynth/internal/fractal"
	"github.com/MeKo-Tech/noisesynth/internal/mapping"
	"github.com/MeKo-Tech/noisesynth/internal/tone"
	"github.com/MeKo-Tech/noisesynth/internal/warp"
)

// Key is the viper key the state lives under.
const Key = "noise"

// State is the serialisable parameter set. Names are used for enumerations
// so presets stay readable.
type State struct {
	Seed       uint32 `mapstructure:"seed"`
	RandomSeed bool   `mapstructure:"random_seed"`

	SizeX float64 `mapstructure:"size_x"`
	SizeY float64 `mapstructure:"size_y"`

	Octaves    float64 `mapstructure:"octaves"`
	Lacunarity float64 `mapstructure:"lacunarity"`
	Hurst      float64 `mapstructure:"hurst"`

	Basis   string `mapstructure:"basis"`
	Fractal string `mapstructure:"fractal"`
	Mapping string `mapstructure:"mapping"`

	Phase       float64 `mapstructure:"phase"`
	IgnorePhase bool    `mapstructure:"ignore_phase"`

	// Gain, bias and pinch are percentages in [-100, 100].
	Gain  float64 `mapstructure:"gain"`
	Bias  float64 `mapstructure:"bias"`
	Pinch float64 `mapstructure:"pinch"`

	Function  string  `mapstructure:"function"`
	Frequency float64 `mapstructure:"frequency"`
	Shift     float64 `mapstructure:"shift"`
	Reverse   bool    `mapstructure:"reverse"`

	ColorSource string   `mapstructure:"color_source"`
	Foreground  string   `mapstructure:"foreground"`
	Background  string   `mapstructure:"background"`
	Gradient    []string `mapstructure:"gradient"`
	Channels    []string `mapstructure:"channels"`

	Warp WarpState `mapstructure:"warp"`
}

// WarpState configures the warp colour source.
type WarpState struct {
	SizeX    float64 `mapstructure:"size_x"`
	SizeY    float64 `mapstructure:"size_y"`
	Caustics float64 `mapstructure:"caustics"`
	Quality  string  `mapstructure:"quality"`
	Edge     string  `mapstructure:"edge"`
	Jitter   float64 `mapstructure:"jitter"`
}

// Defaults returns the initial parameter set.
func Defaults() State {
	return State{
		Seed:        0,
		RandomSeed:  true,
		SizeX:       10,
		SizeY:       10,
		Octaves:     3,
		Lacunarity:  2,
		Hurst:       0.5,
		Basis:       basis.Lattice.String(),
		Fractal:     fractal.FBM.String(),
		Mapping:     mapping.Planar.String(),
		IgnorePhase: true,
		Function:    tone.Ramp.String(),
		Frequency:   1,
		ColorSource: ColorFgBg.String(),
		Foreground:  "#000000",
		Background:  "#ffffff",
		Gradient:    []string{"#000000", "#ffffff"},
		Channels:    []string{"1", "2", "3", "solid"},
		Warp: WarpState{
			SizeX:   10,
			SizeY:   10,
			Quality: warp.Faster.String(),
			Edge:    warp.EdgeWrap.String(),
		},
	}
}

// Seeded draws a new seed when RandomSeed is set and clears the flag, so a
// saved copy reproduces the render.
func (s State) Seeded(draw func() uint32) State {
	if s.RandomSeed {
		s.Seed = draw()
		s.RandomSeed = false
	}
	return s
}

// values flattens s into viper keys relative to Key.
func (s State) values() map[string]any {
	return map[string]any{
		"seed":          s.Seed,
		"random_seed":   s.RandomSeed,
		"size_x":        s.SizeX,
		"size_y":        s.SizeY,
		"octaves":       s.Octaves,
		"lacunarity":    s.Lacunarity,
		"hurst":         s.Hurst,
		"basis":         s.Basis,
		"fractal":       s.Fractal,
		"mapping":       s.Mapping,
		"phase":         s.Phase,
		"ignore_phase":  s.IgnorePhase,
		"gain":          s.Gain,
		"bias":          s.Bias,
		"pinch":         s.Pinch,
		"function":      s.Function,
		"frequency":     s.Frequency,
		"shift":         s.Shift,
		"reverse":       s.Reverse,
		"color_source":  s.ColorSource,
		"foreground":    s.Foreground,
		"background":    s.Background,
		"gradient":      s.Gradient,
		"channels":      s.Channels,
		"warp.size_x":   s.Warp.SizeX,
		"warp.size_y":   s.Warp.SizeY,
		"warp.caustics": s.Warp.Caustics,
		"warp.quality":  s.Warp.Quality,
		"warp.edge":     s.Warp.Edge,
		"warp.jitter":   s.Warp.Jitter,
	}
}

// SetDefaults registers the defaults with v so that partial config files
// and flags merge over them.
func SetDefaults(v *viper.Viper) {
	for k, val := range Defaults().values() {
		v.SetDefault(Key+"."+k, val)
	}
}

// Load decodes the state from v, falling back to defaults for unset keys.
// Flags and environment variables bound to "noise.*" keys take precedence
// over the config file.
func Load(v *viper.Viper) (State, error) {
	SetDefaults(v)

	wrapper := struct {
		Noise State `mapstructure:"noise"`
	}{Noise: Defaults()}
	if err := v.Unmarshal(&wrapper); err != nil {
		return State{}, fmt.Errorf("failed to decode %s settings: %w", Key, err)
	}
	return wrapper.Noise, nil
}

// Encode renders s as preset YAML.
func Encode(s State) ([]byte, error) {
	v := viper.New()
	for k, val := range s.values() {
		v.Set(Key+"."+k, val)
	}
	out, err := yaml.Marshal(v.AllSettings())
	if err != nil {
		return nil, fmt.Errorf("failed to encode preset: %w", err)
	}
	return out, nil
}

// Save writes s as a preset file readable by Load.
func Save(path string, s State) error {
	v := viper.New()
	for k, val := range s.values() {
		v.Set(Key+"."+k, val)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write preset %s: %w", path, err)
	}
	return nil
}

// Override merges string values, keyed like the preset file below Key
// ("octaves", "warp.edge"), over s. List settings take every value; other
// settings take the last one.
func Override(s State, values map[string][]string) (State, error) {
	base := s.values()
	v := viper.New()
	for k, val := range base {
		v.Set(Key+"."+k, val)
	}

	for k, vals := range values {
		cur, ok := base[k]
		if !ok {
			return State{}, fmt.Errorf("unknown setting %q", k)
		}
		if len(vals) == 0 {
			continue
		}
		if _, list := cur.([]string); list {
			v.Set(Key+"."+k, vals)
		} else {
			v.Set(Key+"."+k, vals[len(vals)-1])
		}
	}

	var out State
	if err := v.UnmarshalKey(Key, &out); err != nil {
		return State{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	return out, nil
}

// ParseColor reads "#rgb", "#rrggbb" or "#rrggbbaa".
func ParseColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(s), "#")
	c := color.NRGBA{A: 255}

	var err error
	switch len(hex) {
	case 3:
		_, err = fmt.Sscanf(hex, "%1x%1x%1x", &c.R, &c.G, &c.B)
		c.R *= 17
		c.G *= 17
		c.B *= 17
	case 6:
		_, err = fmt.Sscanf(hex, "%02x%02x%02x", &c.R, &c.G, &c.B)
	case 8:
		_, err = fmt.Sscanf(hex, "%02x%02x%02x%02x", &c.R, &c.G, &c.B, &c.A)
	default:
		err = fmt.Errorf("unexpected length %d", len(hex))
	}
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return c, nil
}

// FormatColor writes c as "#rrggbb", or "#rrggbbaa" when not opaque.
func FormatColor(c color.NRGBA) string {
	if c.A == 255 {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}
