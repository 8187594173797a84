package priority

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/orgmatch/internal/geo"
	"github.com/sells-group/orgmatch/internal/model"
)

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

var testNow = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

func TestScoreRevenue(t *testing.T) {
	tests := []struct {
		name string
		f    *model.Financial
		want float64
	}{
		{"unknown", nil, 20},
		{"empty snapshot", &model.Financial{}, 20},
		{"large with staff and contracts", &model.Financial{RevenueEstimate: ptrFloat64(60_000_000), EmployeeCount: ptrInt(600), GovernmentContracts: true}, 100},
		{"exactly 50M", &model.Financial{RevenueEstimate: ptrFloat64(50_000_000)}, 70},
		{"20M", &model.Financial{RevenueEstimate: ptrFloat64(20_000_000)}, 60},
		{"750K", &model.Financial{RevenueEstimate: ptrFloat64(750_000)}, 20},
		{"micro with staff", &model.Financial{RevenueEstimate: ptrFloat64(99_000), EmployeeCount: ptrInt(12)}, 10},
		{"employees only", &model.Financial{EmployeeCount: ptrInt(150)}, 35},
		{"contracts only", &model.Financial{GovernmentContracts: true}, 30},
		{"negative revenue", &model.Financial{RevenueEstimate: ptrFloat64(-1)}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scoreRevenue(tt.f))
		})
	}
}

func TestScoreProcurement(t *testing.T) {
	future := testNow.AddDate(1, 0, 0)
	past := testNow.AddDate(-1, 0, 0)

	full := &model.BusinessRecord{
		Procurement: &model.ProcurementProfile{
			ReadinessScore:  ptrFloat64(40),
			Insurance:       true,
			Bonding:         true,
			HealthSafety:    true,
			PastPerformance: ptrFloat64(4.5),
			Capabilities:    []string{"a", "b", "c", "d", "e"},
		},
		Certifications: []model.Certification{
			{Name: "1", Active: true}, {Name: "2", Active: true}, {Name: "3", Active: true},
			{Name: "4", Active: true}, {Name: "5", Active: true},
		},
		NAICSCodes: []string{"236220"},
	}
	assert.Equal(t, 100.0, scoreProcurement(full, testNow))

	sparse := &model.BusinessRecord{
		Certifications: []model.Certification{
			{Name: "active", Active: true, ExpiresAt: &future},
			{Name: "expired", Active: true, ExpiresAt: &past},
			{Name: "inactive"},
		},
		NAICSCodes: []string{"541330"},
	}
	assert.Equal(t, 20.0, scoreProcurement(sparse, testNow))

	assert.Equal(t, 10.0, scoreProcurement(&model.BusinessRecord{}, testNow))

	partial := &model.BusinessRecord{Procurement: &model.ProcurementProfile{
		Insurance:       true,
		PastPerformance: ptrFloat64(3.9),
		Capabilities:    []string{"a", "b"},
	}}
	assert.Equal(t, 25.0, scoreProcurement(partial, testNow))
}

func TestScorePartnership(t *testing.T) {
	owned := &model.BusinessRecord{Type: model.BusinessTypeIndigenousOwned}
	sig := &Signals{ExistingPartnerships: 4, NearbyBusinesses: 11}
	assert.Equal(t, 100.0, scorePartnership(owned, sig, 90))

	assert.Equal(t, 50.0, scorePartnership(&model.BusinessRecord{}, nil, 50))

	potential := &model.BusinessRecord{Type: model.BusinessTypePotentialPartner}
	sig = &Signals{Relationships: []model.Relationship{
		{TargetID: "x", Type: model.RelPartner, Strength: 1},
		{TargetID: "y", Type: model.RelCustomer, Strength: 1},
	}, NearbyBusinesses: 10}
	assert.Equal(t, 80.0, scorePartnership(potential, sig, 79))
}

func TestScoreGeographic(t *testing.T) {
	m := geo.DefaultMarkets()
	tests := []struct {
		name string
		addr *model.Address
		want float64
	}{
		{"unknown", nil, 30},
		{"street only", &model.Address{Street: "1 Main St"}, 30},
		{"primary urban", &model.Address{City: "Ottawa", Province: "ON"}, 95},
		{"secondary regional", &model.Address{City: "Brandon", Province: "MB"}, 70},
		{"northern remote", &model.Address{City: "Iqaluit", Province: "NU", Remote: true}, 75},
		{"on reserve in primary province", &model.Address{City: "Moose Factory", Province: "ON", OnReserve: true}, 90},
		{"everything", &model.Address{City: "Toronto", Province: "ON", OnReserve: true}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scoreGeographic(tt.addr, m))
		})
	}
}

func TestScoreIndustry(t *testing.T) {
	lists := DefaultProfile().Industries
	tests := []struct {
		name string
		tags []string
		want float64
	}{
		{"no tags", nil, 30},
		{"blank tags", []string{" ", ""}, 30},
		{"high", []string{"Heavy Construction"}, 90},
		{"medium", []string{"manufacturing"}, 60},
		{"low", []string{"Retail"}, 30},
		{"excluded", []string{"tobacco"}, 0},
		{"unclassified", []string{"widgets"}, 50},
		{"breadth bonus", []string{"construction", "retail", "consulting", "widgets"}, 100},
		{"excluded tags do not count toward breadth", []string{"retail", "tobacco", "food services", "arts", "cannabis"}, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scoreIndustry(tt.tags, lists))
		})
	}
}

func TestScoreIndigenous(t *testing.T) {
	full := &model.BusinessRecord{
		Type: model.BusinessTypeIndigenousOwned,
		Indigenous: &model.IndigenousProfile{
			OwnershipPct: 60, EmployeePct: 55, CommunityAgreement: true, BandCouncilSupport: true, Certified: true,
		},
	}
	assert.Equal(t, 100.0, scoreIndigenous(full))

	affiliated := &model.BusinessRecord{
		Type:       model.BusinessTypeIndigenousAffiliated,
		Indigenous: &model.IndigenousProfile{OwnershipPct: 40, EmployeePct: 30},
	}
	assert.Equal(t, 48.0, scoreIndigenous(affiliated))

	assert.Equal(t, 60.0, scoreIndigenous(&model.BusinessRecord{Type: model.BusinessTypeIndigenousPartnership}))
	assert.Equal(t, 0.0, scoreIndigenous(&model.BusinessRecord{Type: model.BusinessTypeStandard}))
}

func TestScoreRelationship(t *testing.T) {
	assert.Equal(t, 20.0, scoreRelationship(nil))
	assert.Equal(t, 20.0, scoreRelationship(&Signals{NearbyBusinesses: 3}))

	mixed := &Signals{Relationships: []model.Relationship{
		{TargetID: "p", Type: model.RelPartner, Strength: 1},
		{TargetID: "c", Type: model.RelCustomer, Strength: 0.5},
		{TargetID: "x", Type: model.RelCompetitor, Strength: 1},
	}}
	assert.InDelta(t, 67.5, scoreRelationship(mixed), 1e-9)

	var rivals []model.Relationship
	for i := 0; i < 10; i++ {
		rivals = append(rivals, model.Relationship{TargetID: string(rune('a' + i)), Type: model.RelCompetitor, Strength: 1})
	}
	assert.Equal(t, 5.0, scoreRelationship(&Signals{Relationships: rivals}))

	var strong []model.Relationship
	for i := 0; i < 10; i++ {
		strong = append(strong, model.Relationship{TargetID: string(rune('a' + i)), Type: model.RelPartner, Strength: 1})
	}
	assert.Equal(t, 100.0, scoreRelationship(&Signals{Relationships: strong}))
}
