package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchTypeFor(t *testing.T) {
	assert.Equal(t, MatchExact, MatchTypeFor(1))
	assert.Equal(t, MatchFuzzy, MatchTypeFor(0.7))
	assert.Equal(t, MatchFuzzy, MatchTypeFor(0.99))
	assert.Equal(t, MatchPartial, MatchTypeFor(0.69))
	assert.Equal(t, MatchPartial, MatchTypeFor(0))
}

func TestPairKey(t *testing.T) {
	assert.Equal(t, "a|b", PairKey("a", "b"))
	assert.Equal(t, "a|b", PairKey("b", "a"))

	c := &DuplicateCandidate{RecordID1: "z", RecordID2: "m"}
	assert.Equal(t, "m|z", c.PairKey())
}

func TestDuplicateCandidate_Field(t *testing.T) {
	c := &DuplicateCandidate{MatchingFields: []MatchingField{{Field: "name", Similarity: 0.8}}}

	f, ok := c.Field("name")
	require.True(t, ok)
	assert.Equal(t, 0.8, f.Similarity)

	_, ok = c.Field("phone")
	assert.False(t, ok)
}

func TestBusinessRecord_LastTouched(t *testing.T) {
	discovered := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := &BusinessRecord{DiscoveredAt: discovered}
	assert.Equal(t, discovered, r.LastTouched())

	enriched := discovered.Add(48 * time.Hour)
	r.EnrichedAt = &enriched
	assert.Equal(t, enriched, r.LastTouched())

	r.EnrichedAt = &time.Time{}
	assert.Equal(t, discovered, r.LastTouched())
}

func TestBusinessRecord_Clone(t *testing.T) {
	rev := 1_000_000.0
	readiness, past := 0.8, 0.6
	verified := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	expires := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	r := &BusinessRecord{
		ID:             "a",
		Address:        &Address{City: "Ottawa"},
		Industries:     []string{"engineering"},
		Financial:      &Financial{RevenueEstimate: &rev},
		Verification:   &Verification{Confidence: 0.9, VerifiedAt: &verified},
		Certifications: []Certification{{Name: "CCAB", ExpiresAt: &expires}},
		Procurement: &ProcurementProfile{
			ReadinessScore:  &readiness,
			PastPerformance: &past,
			Capabilities:    []string{"design"},
		},
		Merge: &MergeProvenance{SourceIDs: []string{"a", "b"}},
	}

	c := r.Clone()
	c.Address.City = "Toronto"
	c.Industries[0] = "mining"
	*c.Financial.RevenueEstimate = 5
	*c.Verification.VerifiedAt = verified.Add(time.Hour)
	*c.Certifications[0].ExpiresAt = expires.Add(time.Hour)
	*c.Procurement.ReadinessScore = 0.1
	*c.Procurement.PastPerformance = 0.1
	c.Procurement.Capabilities[0] = "build"
	c.Merge.SourceIDs[1] = "x"

	assert.Equal(t, "Ottawa", r.Address.City)
	assert.Equal(t, []string{"engineering"}, r.Industries)
	assert.Equal(t, 1_000_000.0, *r.Financial.RevenueEstimate)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), *r.Verification.VerifiedAt)
	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), *r.Certifications[0].ExpiresAt)
	assert.Equal(t, 0.8, *r.Procurement.ReadinessScore)
	assert.Equal(t, 0.6, *r.Procurement.PastPerformance)
	assert.Equal(t, []string{"design"}, r.Procurement.Capabilities)
	assert.Equal(t, []string{"a", "b"}, r.Merge.SourceIDs)

	assert.Nil(t, (*BusinessRecord)(nil).Clone())
	assert.False(t, r.IsTombstone())
	c.MergedInto = "z"
	assert.True(t, c.IsTombstone())
}

func TestAllTiers(t *testing.T) {
	assert.Equal(t, []PriorityTier{TierPlatinum, TierGold, TierSilver, TierBronze, TierStandard}, AllTiers())
}

func TestObservers(t *testing.T) {
	var got []EventKind
	ObserverFunc(func(e Event) { got = append(got, e.Kind) }).OnEvent(Event{Kind: EventProgress})
	assert.Equal(t, []EventKind{EventProgress}, got)

	NopObserver{}.OnEvent(Event{Kind: EventProgress})

	ch := NewChannelObserver(1)
	ch.OnEvent(Event{Kind: EventDuplicateFound})
	ch.OnEvent(Event{Kind: EventMergeCompleted})
	assert.Equal(t, 1, ch.Dropped)
	assert.Equal(t, EventDuplicateFound, (<-ch.C).Kind)
}
