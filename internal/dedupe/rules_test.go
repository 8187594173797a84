package dedupe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/orgmatch/internal/model"
)

func ruleMap(s model.MergeStrategy) map[string]model.FieldMergeRule {
	out := make(map[string]model.FieldMergeRule, len(s.Rules))
	for _, r := range s.Rules {
		out[r.Field] = r
	}
	return out
}

func TestBuildStrategy(t *testing.T) {
	p := &model.BusinessRecord{
		ID:          "p",
		Name:        "Eagle Technologies Inc.",
		Phone:       "613-555-0100",
		Description: "Civil engineering firm",
		Industries:  []string{"construction"},
		Address:     &model.Address{City: "Ottawa"},
		Source:      model.Source{Name: "registry", Reliability: 0.9},
	}
	s := &model.BusinessRecord{
		ID:          "s",
		Name:        "Eagle Technologies",
		Email:       "info@eagletech.ca",
		Description: "Civil engineering firm.",
		Industries:  []string{"Construction", "engineering"},
		Address:     &model.Address{City: "Ottawa", PostalCode: "K1A 0B1"},
		Source:      model.Source{Name: "registry", Reliability: 0.9},
	}

	strategy := BuildStrategy(p, s, nil)
	assert.Equal(t, "p", strategy.PrimaryRecordID)
	assert.True(t, strategy.PreserveHistory)

	rules := ruleMap(strategy)
	assert.Len(t, rules, 7)
	assert.NotContains(t, rules, "id")
	assert.NotContains(t, rules, "website")

	assert.Equal(t, model.FieldMergeRule{Field: "name", Source: model.SourceHighestQuality, Resolution: model.ResolvePrimaryWins}, rules["name"])
	assert.Equal(t, model.FieldMergeRule{Field: "phone", Source: model.SourcePrimary, Resolution: model.ResolvePrimaryWins}, rules["phone"])
	assert.Equal(t, model.FieldMergeRule{Field: "email", Source: model.SourceSecondary, Resolution: model.ResolveSecondaryWins}, rules["email"])
	assert.Equal(t, model.FieldMergeRule{Field: "description", Source: model.SourcePrimary, Resolution: model.ResolvePrimaryWins}, rules["description"])
	assert.Equal(t, model.FieldMergeRule{Field: "industries", Source: model.SourceSecondary, Resolution: model.ResolveCombine}, rules["industries"])
	assert.Equal(t, model.FieldMergeRule{Field: "address", Source: model.SourceHighestQuality, Resolution: model.ResolveSecondaryWins}, rules["address"])
	assert.Equal(t, model.FieldMergeRule{Field: "source", Source: model.SourcePrimary, Resolution: model.ResolvePrimaryWins}, rules["source"])
}

func TestBuildStrategy_ScoredFields(t *testing.T) {
	tests := []struct {
		name  string
		p, s  *model.BusinessRecord
		field string
		want  model.FieldMergeRule
		value func(r *model.BusinessRecord) string
		keep  string
	}{
		{
			name:  "matched name keeps primary spelling",
			p:     &model.BusinessRecord{ID: "p", Name: "Eagle Technologies", Phone: "6135550100", Verified: true},
			s:     &model.BusinessRecord{ID: "s", Name: "Eagle Technologies Inc.", Phone: "613-555-0100"},
			field: "name",
			want:  model.FieldMergeRule{Field: "name", Source: model.SourcePrimary, Resolution: model.ResolvePrimaryWins},
			value: func(r *model.BusinessRecord) string { return r.Name },
			keep:  "Eagle Technologies",
		},
		{
			name:  "matched phone keeps primary format",
			p:     &model.BusinessRecord{ID: "p", Name: "Eagle Technologies", Phone: "6135550100", Verified: true},
			s:     &model.BusinessRecord{ID: "s", Name: "Eagle Technologies Inc.", Phone: "613-555-0100"},
			field: "phone",
			want:  model.FieldMergeRule{Field: "phone", Source: model.SourcePrimary, Resolution: model.ResolvePrimaryWins},
			value: func(r *model.BusinessRecord) string { return r.Phone },
			keep:  "6135550100",
		},
		{
			name:  "weak phone match goes to quality",
			p:     &model.BusinessRecord{ID: "p", Phone: "6135550100"},
			s:     &model.BusinessRecord{ID: "s", Phone: "819-555-0100"},
			field: "phone",
			want:  model.FieldMergeRule{Field: "phone", Source: model.SourceHighestQuality, Resolution: model.ResolveSecondaryWins},
			value: func(r *model.BusinessRecord) string { return r.Phone },
			keep:  "819-555-0100",
		},
		{
			name:  "unscored field uses text similarity",
			p:     &model.BusinessRecord{ID: "p", LegalName: "Eagle Technologies Inc"},
			s:     &model.BusinessRecord{ID: "s", LegalName: "Eagle Technologies Inc."},
			field: "legal_name",
			want:  model.FieldMergeRule{Field: "legal_name", Source: model.SourcePrimary, Resolution: model.ResolvePrimaryWins},
			value: func(r *model.BusinessRecord) string { return r.LegalName },
			keep:  "Eagle Technologies Inc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, fields := NewScorer(false).Compare(tt.p, tt.s)
			strategy := BuildStrategy(tt.p, tt.s, fields)

			rules := ruleMap(strategy)
			require.Contains(t, rules, tt.field)
			assert.Equal(t, tt.want, rules[tt.field])
			assert.Equal(t, tt.keep, tt.value(ApplyStrategy(tt.p, tt.s, strategy)))
		})
	}
}

func TestApplyStrategy(t *testing.T) {
	p := &model.BusinessRecord{
		ID:             "p",
		Name:           "Eagle Technologies Inc.",
		Phone:          "613-555-0100",
		Industries:     []string{"construction"},
		Certifications: []model.Certification{{Name: "CCAB", Active: true}},
		Address:        &model.Address{City: "Ottawa"},
	}
	s := &model.BusinessRecord{
		ID:             "s",
		Name:           "Eagle Technologies",
		Email:          "info@eagletech.ca",
		Industries:     []string{"Construction", "engineering"},
		Certifications: []model.Certification{{Name: "ccab", Active: true}, {Name: "ISO 9001", Active: true}},
		Address:        &model.Address{City: "Ottawa", PostalCode: "K1A 0B1"},
	}

	merged := ApplyStrategy(p, s, BuildStrategy(p, s, nil))

	assert.Equal(t, "p", merged.ID)
	assert.Equal(t, "Eagle Technologies Inc.", merged.Name)
	assert.Equal(t, "613-555-0100", merged.Phone)
	assert.Equal(t, "info@eagletech.ca", merged.Email)
	assert.Equal(t, []string{"Construction", "engineering"}, merged.Industries)
	assert.Len(t, merged.Certifications, 2)
	require.NotNil(t, merged.Address)
	assert.Equal(t, "K1A 0B1", merged.Address.PostalCode)

	// inputs untouched
	assert.Empty(t, p.Email)
	assert.Equal(t, []string{"construction"}, p.Industries)
	merged.Address.City = "Gatineau"
	assert.Equal(t, "Ottawa", s.Address.City)
}

func TestApplyStrategy_Newest(t *testing.T) {
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	p := &model.BusinessRecord{ID: "p", Phone: "111", DiscoveredAt: older}
	s := &model.BusinessRecord{ID: "s", Phone: "222", DiscoveredAt: newer}

	strategy := model.MergeStrategy{
		PrimaryRecordID: "p",
		Rules:           []model.FieldMergeRule{{Field: "phone", Source: model.SourceNewest, Resolution: model.ResolveSecondaryWins}},
	}
	assert.Equal(t, "222", ApplyStrategy(p, s, strategy).Phone)

	s.DiscoveredAt = older.Add(-time.Hour)
	assert.Equal(t, "111", ApplyStrategy(p, s, strategy).Phone)
}

func TestApplyStrategy_UnknownFieldIgnored(t *testing.T) {
	p := &model.BusinessRecord{ID: "p", Name: "P"}
	s := &model.BusinessRecord{ID: "s", Name: "S"}
	strategy := model.MergeStrategy{Rules: []model.FieldMergeRule{{Field: "nope", Source: model.SourceSecondary}}}
	assert.Equal(t, "P", ApplyStrategy(p, s, strategy).Name)
}

func TestPopulatedKeys(t *testing.T) {
	assert.Equal(t, 0, populatedKeys("text"))
	assert.Equal(t, 1, populatedKeys(&model.Address{City: "Ottawa"}))
	assert.Equal(t, 3, populatedKeys(&model.Address{City: "Ottawa", Street: "1 Main", OnReserve: true}))
}
