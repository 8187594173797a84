package priority

import (
	"context"

	"github.com/sells-group/orgmatch/internal/model"
)

// Signals are facts about a record that live outside it: its relationship
// graph and its neighbourhood.
type Signals struct {
	Relationships        []model.Relationship `json:"relationships,omitempty"`
	ExistingPartnerships int                  `json:"existing_partnerships,omitempty"`
	NearbyBusinesses     int                  `json:"nearby_businesses,omitempty"`
}

// partnerCount is the number of known partner relationships.
func (s *Signals) partnerCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, r := range s.Relationships {
		if r.Type == model.RelPartner {
			n++
		}
	}
	return max(n, s.ExistingPartnerships)
}

// SignalProvider looks up signals for a record. A nil result means none are
// known.
type SignalProvider interface {
	Signals(ctx context.Context, r *model.BusinessRecord) (*Signals, error)
}

// StaticSignals serves signals from a map keyed by record id.
type StaticSignals map[string]*Signals

// Signals returns the entry for r.ID.
func (s StaticSignals) Signals(_ context.Context, r *model.BusinessRecord) (*Signals, error) {
	return s[r.ID], nil
}
