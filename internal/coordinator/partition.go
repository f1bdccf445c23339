package coordinator

import (
	"math"

	"github.com/dreamware/arbiter/internal/catalog"
	"github.com/dreamware/arbiter/internal/cluster"
)

// BuildPartitionTable splits [globalMin, globalMax] into len(nodes)
// contiguous ranges, one per node in fleet order.
//
// Every range is [lower, upper) except the last, which is closed and whose
// upper bound is exactly globalMax. Adjacent ranges share the same boundary
// value, so there is neither a gap nor an overlap.
func BuildPartitionTable(nodes []cluster.Node, globalMin, globalMax float64) []catalog.KeyRange {
	n := len(nodes)
	if n == 0 {
		return nil
	}
	span := globalMax - globalMin

	bounds := make([]float64, n+1)
	for i := 0; i < n; i++ {
		if math.IsInf(span, 0) {
			// Interpolate so a span wider than MaxFloat64 stays finite.
			t := float64(i) / float64(n)
			bounds[i] = globalMin*(1-t) + globalMax*t
		} else {
			bounds[i] = globalMin + float64(i)*(span/float64(n))
		}
	}
	// Accumulated step error could otherwise leave globalMax outside every range.
	bounds[n] = globalMax

	table := make([]catalog.KeyRange, n)
	for i, node := range nodes {
		table[i] = catalog.KeyRange{
			DataNodeAddress: node.Address,
			HashKeysRange:   [2]float64{bounds[i], bounds[i+1]},
		}
	}
	return table
}

// OwnerOf returns the address of the node whose range holds hash.
func OwnerOf(ranges []catalog.KeyRange, hash float64) (string, bool) {
	for i, r := range ranges {
		last := i == len(ranges)-1
		if hash < r.Lower() {
			continue
		}
		if hash < r.Upper() || (last && hash <= r.Upper()) {
			return r.DataNodeAddress, true
		}
	}
	return "", false
}

// partitionStep is the width of each range, computed without overflowing
// when the span exceeds MaxFloat64.
func partitionStep(globalMin, globalMax float64, n int) float64 {
	return globalMax/float64(n) - globalMin/float64(n)
}
