package bloom

import "math"

// DefaultFPRate is applied when the requested false-positive rate is outside (0, 1).
const DefaultFPRate = 0.01

// Sizer computes Bloom filter parameters using the standard formulas:
//
//	m = - (n * ln p) / (ln 2)^2
//	k = (m / n) * ln 2
//
// m is at least 1 and k is clamped to [1, 255].
type Sizer struct{}

// Size returns m (number of bits) and k (number of hash functions) for n items at rate p.
func (Sizer) Size(n uint64, p float64) (uint64, uint8) {
	if n == 0 {
		n = 1
	}
	if !(p > 0 && p < 1) {
		p = DefaultFPRate
	}
	ln2 := math.Ln2
	m := uint64(math.Ceil(-float64(n) * math.Log(p) / (ln2 * ln2)))
	if m == 0 {
		m = 1
	}
	k := math.Round((float64(m) / float64(n)) * ln2)
	k = math.Min(math.MaxUint8, math.Max(1, k))
	return m, uint8(k)
}
