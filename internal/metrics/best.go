package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/flagsearch/internal/ir"
)

// bestScore tracks the minimum of the scores it is offered and mirrors it
// into gauge. The gauge is written under the same lock as the minimum so
// concurrent improvements land in order.
type bestScore struct {
	mu    sync.Mutex
	score ir.Score
	gauge prometheus.Gauge
}

// lower records s and reports the new minimum if s improved it.
func (b *bestScore) lower(s ir.Score) (ir.Score, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.score.Valid() && !s.Less(b.score) {
		return b.score, false
	}
	b.score = s
	b.gauge.Set(float64(s))
	return s, true
}
