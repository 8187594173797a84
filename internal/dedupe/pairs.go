package dedupe

import (
	"sync"

	"github.com/sells-group/orgmatch/internal/model"
)

// PairSet records which record pairs have been scored in a run. Safe for
// concurrent use; each pair can be claimed exactly once.
type PairSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewPairSet creates an empty set.
func NewPairSet() *PairSet {
	return &PairSet{seen: make(map[string]struct{})}
}

// Claim marks the pair (a, b) as processed. It returns false when the pair
// was already claimed, in either order.
func (p *PairSet) Claim(a, b string) bool {
	key := model.PairKey(a, b)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.seen[key]; ok {
		return false
	}
	p.seen[key] = struct{}{}
	return true
}

// Len returns the number of claimed pairs.
func (p *PairSet) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}
