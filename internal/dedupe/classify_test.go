package dedupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/orgmatch/internal/model"
)

var defaultThresholds = Thresholds{Similarity: 0.7, AutoMerge: 0.9}

func mf(field string, sim float64) model.MatchingField {
	return model.MatchingField{Field: field, Similarity: sim, MatchType: model.MatchTypeFor(sim)}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		sim    float64
		fields []model.MatchingField
		want   model.MergeAction
	}{
		{"auto merge", 0.95, []model.MatchingField{mf(FieldName, 0.95)}, model.ActionMerge},
		{"strong identifier differs", 0.8, []model.MatchingField{mf(FieldName, 1), mf(FieldPhone, 0.8)}, model.ActionManualReview},
		{"mark duplicate", 0.75, []model.MatchingField{mf(FieldName, 0.75), mf(FieldWebsite, 0.75)}, model.ActionMarkDuplicate},
		{"keep both", 0.5, []model.MatchingField{mf(FieldName, 0.5)}, model.ActionKeepBoth},
		{"business number exact with low score", 0.55, []model.MatchingField{mf(FieldBusinessNumber, 1), mf(FieldName, 0.2)}, model.ActionMerge},
		{"business number exact, phone conflicts", 0.97, []model.MatchingField{mf(FieldBusinessNumber, 1), mf(FieldName, 1), mf(FieldPhone, 0)}, model.ActionManualReview},
		{"business number exact, email conflicts", 0.8, []model.MatchingField{mf(FieldBusinessNumber, 1), mf(FieldEmail, 0.5)}, model.ActionManualReview},
		{"business number differs", 0.6, []model.MatchingField{mf(FieldBusinessNumber, 0), mf(FieldName, 1)}, model.ActionManualReview},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.sim, tt.fields, defaultThresholds))
		})
	}
}

func TestClassify_BusinessNumberAlwaysMergesWithoutConflict(t *testing.T) {
	s := NewScorer(true)
	noisy := []*model.BusinessRecord{
		{ID: "x", Name: "Completely Unrelated Name", BusinessNumber: "123456789", Website: "foo.com"},
		{ID: "y", Name: "Eagle", BusinessNumber: "123-456-789", Address: &model.Address{City: "Toronto"}},
	}
	base := eagleA()
	base.Phone = ""
	for _, other := range noisy {
		sim, fields := s.Compare(base, other)
		assert.True(t, IsCandidate(sim, fields, defaultThresholds))
		assert.Equal(t, model.ActionMerge, Classify(sim, fields, defaultThresholds), other.ID)
	}
}

func TestIsCandidate(t *testing.T) {
	assert.True(t, IsCandidate(0.7, nil, defaultThresholds))
	assert.False(t, IsCandidate(0.69, []model.MatchingField{mf(FieldBusinessNumber, 0)}, defaultThresholds))
	assert.True(t, IsCandidate(0.3, []model.MatchingField{mf(FieldBusinessNumber, 1)}, defaultThresholds))
}

func TestConfidence(t *testing.T) {
	// neither phone nor email compared
	assert.InDelta(t, 0.64, Confidence(0.8, []model.MatchingField{mf(FieldName, 0.8)}), 1e-9)

	// phone compared, no penalty, no bonus
	assert.InDelta(t, 0.8, Confidence(0.8, []model.MatchingField{mf(FieldName, 0.8), mf(FieldPhone, 0.8)}), 1e-9)

	// exact business number boost then strong-field boost, capped
	got := Confidence(0.7, []model.MatchingField{mf(FieldBusinessNumber, 1), mf(FieldPhone, 1), mf(FieldName, 0.9)})
	assert.Equal(t, 1.0, got)

	// exact business number without phone or email
	assert.InDelta(t, 0.7*1.3*0.8, Confidence(0.7, []model.MatchingField{mf(FieldBusinessNumber, 1), mf(FieldName, 0.4)}), 1e-9)

	for _, sim := range []float64{0, 0.25, 0.5, 0.99, 1} {
		c := Confidence(sim, []model.MatchingField{mf(FieldBusinessNumber, 1), mf(FieldEmail, 1), mf(FieldName, 1), mf(FieldWebsite, 1)})
		assert.GreaterOrEqual(t, c, 0.0)
		assert.LessOrEqual(t, c, 1.0)
	}
}

func TestSelectPrimary(t *testing.T) {
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)

	t.Run("verified wins", func(t *testing.T) {
		a := &model.BusinessRecord{ID: "a", Name: "A", Verified: true, DiscoveredAt: older}
		b := &model.BusinessRecord{ID: "b", Name: "B", Phone: "1", Email: "e", DiscoveredAt: newer}
		p, s := SelectPrimary(a, b)
		assert.Equal(t, "a", p.ID)
		assert.Equal(t, "b", s.ID)
	})

	t.Run("completeness lead of two wins", func(t *testing.T) {
		a := &model.BusinessRecord{ID: "a", Name: "A", DiscoveredAt: newer}
		b := &model.BusinessRecord{ID: "b", Name: "B", BusinessNumber: "1", DiscoveredAt: older}
		p, _ := SelectPrimary(a, b)
		assert.Equal(t, "b", p.ID)
	})

	t.Run("close scores fall back to recency", func(t *testing.T) {
		a := &model.BusinessRecord{ID: "a", Name: "A", Phone: "1", DiscoveredAt: older}
		b := &model.BusinessRecord{ID: "b", Name: "B", DiscoveredAt: newer}
		p, _ := SelectPrimary(a, b)
		assert.Equal(t, "b", p.ID)
		p, _ = SelectPrimary(b, a)
		assert.Equal(t, "b", p.ID)
	})

	t.Run("equal times fall back to id", func(t *testing.T) {
		a := &model.BusinessRecord{ID: "a", Name: "A", DiscoveredAt: older}
		b := &model.BusinessRecord{ID: "b", Name: "B", DiscoveredAt: older}
		p, _ := SelectPrimary(b, a)
		assert.Equal(t, "a", p.ID)
	})

	t.Run("enriched adds five", func(t *testing.T) {
		a := &model.BusinessRecord{ID: "a", Name: "A", EnrichedAt: &newer, DiscoveredAt: older}
		b := &model.BusinessRecord{ID: "b", Name: "B", Phone: "1", Email: "e", DiscoveredAt: newer}
		p, _ := SelectPrimary(a, b)
		assert.Equal(t, "a", p.ID)
	})
}
