package basis

import "math"

// poissonMean is the expected number of feature points per unit cell.
const poissonMean = 2.5

// poissonCount maps the low byte of a cell seed to a feature-point count.
// Entry k is the Poisson quantile at (k+0.5)/256, so counts follow the
// Poisson distribution when the byte is uniform.
var poissonCount = buildPoissonTable(poissonMean)

// maxFeatures is the largest entry of poissonCount.
var maxFeatures = int(poissonCount[255])

func buildPoissonTable(mean float64) [256]uint8 {
	var table [256]uint8

	k := 0
	p := math.Exp(-mean)
	cdf := p
	for i := range table {
		q := (float64(i) + 0.5) / 256.0
		for cdf < q {
			k++
			p *= mean / float64(k)
			cdf += p
		}
		table[i] = uint8(k)
	}

	return table
}

// nextSeed is the feature-point LCG. Point coordinates and ids are pure
// functions of the cell seed.
func nextSeed(seed uint32) uint32 {
	return 1402024253*seed + 586950981
}

// unitFloat maps a seed to the open interval (0, 1).
func unitFloat(seed uint32) float64 {
	return (float64(seed) + 0.5) * (1.0 / 4294967296.0)
}

// kernel is the radial falloff of one sparse feature point at squared
// distance d2 < 1. It falls to zero with zero slope at d2 = 1.
func kernel(d2 float64) float64 {
	t := 1.0 - d2
	return t * t * t
}
