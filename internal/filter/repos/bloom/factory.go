package bloom

import (
	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/haukened/keyword-filter/internal/filter/services/rulestore"
)

// factory implements rulestore.BloomFactory on top of bits-and-blooms.
type factory struct {
	sizer Sizer
}

// NewFactory returns a BloomFactory that sizes filters from capacity and FP rate.
func NewFactory() rulestore.BloomFactory { return factory{} }

// New constructs a filter sized for capacity rules at the target false-positive rate.
func (f factory) New(capacity uint64, fpRate float64) rulestore.BloomFilter {
	m, k := f.sizer.Size(capacity, fpRate)
	return &filter{bf: bitsbloom.New(uint(m), uint(k))}
}
