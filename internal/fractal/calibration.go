package fractal

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/MeKo-Tech/noisesynth/internal/basis"
	"github.com/MeKo-Tech/noisesynth/internal/random"
)

// Entry centres and scales one raw basis: out = (raw - Mid) * Fac.
type Entry struct {
	Mid float64 `mapstructure:"mid"`
	Fac float64 `mapstructure:"fac"`
}

// Calibration maps a calibration key (see Key) to its entry.
type Calibration map[string]Entry

// calibrationFamily names the basis family a kind is calibrated as.
// Turbulent kinds share the entry of their plain counterpart.
func calibrationFamily(k basis.Kind) string {
	switch k {
	case basis.Lattice, basis.LatticeTurbulence:
		return "ln"
	case basis.Sparse, basis.SparseTurbulence:
		return "sn"
	case basis.Skin:
		return "cell1"
	case basis.Puffy:
		return "cell2"
	case basis.Fractured:
		return "cell3"
	case basis.Crystals:
		return "cell4"
	default:
		return "cell5"
	}
}

// Key returns the calibration key of a basis and dimension, e.g. "sn_4d".
func Key(k basis.Kind, dim int) string {
	return fmt.Sprintf("%s_%dd", calibrationFamily(k), dim)
}

// DefaultCalibration returns the compiled-in table, the output of
// CalibrateAll at the standard sample count. Regenerate it with the calibrate
// command after changing a basis.
func DefaultCalibration() Calibration {
	return Calibration{
		"ln_3d": {Mid: -0.05324, Fac: 0.53484},
		"ln_4d": {Mid: 0.041343, Fac: 0.481711},
		"ln_5d": {Mid: 0.023486, Fac: 0.449791},

		"sn_3d": {Mid: 3.302812, Fac: 0.151386},
		"sn_4d": {Mid: 2.900406, Fac: 0.17239},
		"sn_5d": {Mid: 2.154744, Fac: 0.232046},

		"cell1_3d": {Mid: 0.457777, Fac: 1.092244},
		"cell1_4d": {Mid: 0.373621, Fac: 1.338264},
		"cell1_5d": {Mid: 0.365312, Fac: 1.368698},

		"cell2_3d": {Mid: 0.519049, Fac: 0.975681},
		"cell2_4d": {Mid: 0.497252, Fac: 1.051895},
		"cell2_5d": {Mid: 0.528159, Fac: 1.035709},

		"cell3_3d": {Mid: 0.600072, Fac: 0.942502},
		"cell3_4d": {Mid: 0.613656, Fac: 1.083234},
		"cell3_5d": {Mid: 0.616241, Fac: 1.251744},

		"cell4_3d": {Mid: 0.5, Fac: 1.0},
		"cell4_4d": {Mid: 0.5, Fac: 1.0},
		"cell4_5d": {Mid: 0.5, Fac: 1.0},

		// galvanized scales inside the look; the compositor uses mid 0, fac 1
		"cell5_3d": {Mid: 0.0, Fac: 0.554849},
		"cell5_4d": {Mid: 0.0, Fac: 0.593832},
		"cell5_5d": {Mid: 0.0, Fac: 0.551426},
	}
}

// Lookup returns the entry for a basis and dimension.
func (c Calibration) Lookup(k basis.Kind, dim int) (Entry, error) {
	e, ok := c[Key(k, dim)]
	if !ok {
		return Entry{}, fmt.Errorf("no calibration for %s", Key(k, dim))
	}
	if e.Fac == 0 || math.IsNaN(e.Fac) || math.IsInf(e.Fac, 0) {
		return Entry{}, fmt.Errorf("calibration %s has invalid fac %v", Key(k, dim), e.Fac)
	}
	return e, nil
}

// Keys returns the table keys in sorted order.
func (c Calibration) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LoadCalibration reads overrides from a YAML file with a top-level
// "calibration" map and merges them over the defaults.
func LoadCalibration(path string) (Calibration, error) {
	cal := DefaultCalibration()
	if path == "" {
		return cal, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read calibration %s: %w", path, err)
	}

	var overrides map[string]Entry
	if err := v.UnmarshalKey("calibration", &overrides); err != nil {
		return nil, fmt.Errorf("failed to decode calibration %s: %w", path, err)
	}

	for k, e := range overrides {
		k = strings.ToLower(k)
		if _, known := cal[k]; !known {
			return nil, fmt.Errorf("calibration %s: unknown key %q", path, k)
		}
		cal[k] = e
	}
	return cal, nil
}

// Save writes the table in the format LoadCalibration reads.
func (c Calibration) Save(path string) error {
	v := viper.New()
	for _, k := range c.Keys() {
		v.Set("calibration."+k+".mid", c[k].Mid)
		v.Set("calibration."+k+".fac", c[k].Fac)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write calibration %s: %w", path, err)
	}
	return nil
}

const (
	calibrationSeed    = 23470
	calibrationSamples = 100000
	calibrationSpan    = 100.0
)

// Calibrate measures the raw range of one basis over uniformly random points
// and returns the entry that maps it onto [-0.5, 0.5]. samples <= 0 uses the
// standard sample count.
func Calibrate(k basis.Kind, dim int, samples int) (Entry, error) {
	if samples <= 0 {
		samples = calibrationSamples
	}

	ctx := random.NewContext(calibrationSeed)
	src, err := basis.New(ctx, k, dim, basis.Options{GalvanizedScale: 1})
	if err != nil {
		return Entry{}, err
	}
	if look, ok := src.(*basis.CellLook); ok {
		look.SetClamp(false)
	}

	// the table was built from the same generator, keep drawing from it
	r := random.NewMWC(calibrationSeed)
	for i := 0; i < random.TableSize; i++ {
		r.Next()
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	var p basis.Point
	for i := 0; i < samples; i++ {
		for a := 0; a < dim; a++ {
			p[a] = r.Float64() * calibrationSpan
		}
		v := src.Sample(p)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	if hi <= lo {
		return Entry{}, fmt.Errorf("degenerate range for %s", Key(k, dim))
	}

	e := Entry{Mid: (hi + lo) / 2, Fac: 1 / (hi - lo)}
	if k == basis.Galvanized {
		e.Mid = 0
	}
	return e, nil
}

// CalibrateAll measures every calibration key.
func CalibrateAll(samples int, onEntry func(key string, e Entry)) (Calibration, error) {
	cal := Calibration{}
	kinds := []basis.Kind{basis.Lattice, basis.Sparse, basis.Skin, basis.Puffy, basis.Fractured, basis.Crystals, basis.Galvanized}
	for _, k := range kinds {
		for dim := 3; dim <= basis.MaxDim; dim++ {
			e, err := Calibrate(k, dim, samples)
			if err != nil {
				return nil, err
			}
			cal[Key(k, dim)] = e
			if onEntry != nil {
				onEntry(Key(k, dim), e)
			}
		}
	}
	return cal, nil
}
