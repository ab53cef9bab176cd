package obs

import (
	"sync/atomic"
	"time"
)

// TraceGenerator hands out monotonically increasing cycle ids for log correlation.
type TraceGenerator struct {
	next uint64
}

// NewTraceGenerator returns a generator seeded with the given value, or the clock when zero.
func NewTraceGenerator(seed uint64) *TraceGenerator {
	if seed == 0 {
		seed = uint64(time.Now().UTC().UnixMilli())
	}
	return &TraceGenerator{next: seed}
}

// Next returns the next id. A nil generator always returns 0.
func (g *TraceGenerator) Next() uint64 {
	if g == nil {
		return 0
	}
	return atomic.AddUint64(&g.next, 1)
}
