package render

// Tag names one group of inputs that derived parameters depend on.
type Tag uint16

const (
	TagFeatureSize Tag = 1 << iota
	TagRegion
	TagMapping
	TagOutputFunction
	TagToneCurve
	TagBuffer
	TagColor
	TagBasis
	TagWarp

	numTags = iota

	// TagAll marks every input as changed.
	TagAll Tag = 1<<numTags - 1
)

var tagNames = [numTags]string{
	"feature_size", "region", "mapping", "output_function", "tone_curve",
	"buffer", "color", "basis", "warp",
}

func (t Tag) String() string {
	s := ""
	for i := 0; i < numTags; i++ {
		if t&(1<<i) == 0 {
			continue
		}
		if s != "" {
			s += "|"
		}
		s += tagNames[i]
	}
	if s == "" {
		return "none"
	}
	return s
}

// memo tracks when each tag last changed. Generations only grow, so a
// value built at generation g is current while no dependency changed after g.
type memo struct {
	gen     uint64
	changed [numTags]uint64
}

func newMemo() *memo {
	m := &memo{}
	m.invalidate(TagAll)
	return m
}

func (m *memo) invalidate(tags Tag) {
	if tags == 0 {
		return
	}
	m.gen++
	for i := 0; i < numTags; i++ {
		if tags&(1<<i) != 0 {
			m.changed[i] = m.gen
		}
	}
}

// latest returns the newest change generation among tags.
func (m *memo) latest(tags Tag) uint64 {
	var g uint64
	for i := 0; i < numTags; i++ {
		if tags&(1<<i) != 0 && m.changed[i] > g {
			g = m.changed[i]
		}
	}
	return g
}

// cached holds one derived value and rebuilds it when any of deps changed.
type cached[T any] struct {
	deps  Tag
	built uint64
	ok    bool
	value T
}

func (c *cached[T]) get(m *memo, build func() (T, error)) (T, error) {
	if c.ok && c.built >= m.latest(c.deps) {
		return c.value, nil
	}
	v, err := build()
	if err != nil {
		var zero T
		return zero, err
	}
	c.value, c.built, c.ok = v, m.gen, true
	return v, nil
}
