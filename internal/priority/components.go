package priority

import (
	"math"
	"strings"
	"time"

	"github.com/sells-group/orgmatch/internal/geo"
	"github.com/sells-group/orgmatch/internal/model"
	"github.com/sells-group/orgmatch/internal/normalize"
)

// revenueBands maps a minimum annual revenue to its base score, highest first.
var revenueBands = []struct {
	min   float64
	score float64
}{
	{50_000_000, 70},
	{20_000_000, 60},
	{10_000_000, 50},
	{5_000_000, 40},
	{1_000_000, 30},
	{500_000, 20},
	{100_000, 10},
	{0, 5},
}

var employeeBands = []struct {
	min   int
	bonus float64
}{
	{500, 20},
	{100, 15},
	{50, 10},
	{10, 5},
}

// scoreRevenue scores financial scale. Unknown financials score 20; a
// snapshot with employees but no revenue starts from the same baseline.
func scoreRevenue(f *model.Financial) float64 {
	if f == nil || (f.RevenueEstimate == nil && f.EmployeeCount == nil && !f.GovernmentContracts) {
		return 20
	}

	score := 20.0
	if f.RevenueEstimate != nil {
		for _, b := range revenueBands {
			if *f.RevenueEstimate >= b.min {
				score = b.score
				break
			}
		}
		if *f.RevenueEstimate < 0 {
			score = 5
		}
	}
	if f.EmployeeCount != nil {
		for _, b := range employeeBands {
			if *f.EmployeeCount >= b.min {
				score += b.bonus
				break
			}
		}
	}
	if f.GovernmentContracts {
		score += 10
	}
	return math.Min(score, 100)
}

// scoreProcurement scores readiness to bid on contracts.
func scoreProcurement(r *model.BusinessRecord, now time.Time) float64 {
	score := 10.0
	if p := r.Procurement; p != nil {
		if p.ReadinessScore != nil {
			score = clamp(*p.ReadinessScore, 0, 100)
		}
		for _, ok := range []bool{p.Insurance, p.Bonding, p.HealthSafety} {
			if ok {
				score += 10
			}
		}
		if p.PastPerformance != nil && *p.PastPerformance >= 4 {
			score += 15
		}
		switch n := len(p.Capabilities); {
		case n >= 5:
			score += 10
		case n >= 2:
			score += 5
		}
	}

	var certs float64
	for _, c := range r.Certifications {
		if c.Active && (c.ExpiresAt == nil || c.ExpiresAt.After(now)) {
			certs += 5
		}
	}
	score += math.Min(certs, 20)

	if len(r.NAICSCodes) > 0 {
		score += 5
	}
	return math.Min(score, 100)
}

var typeBonus = map[model.BusinessType]float64{
	model.BusinessTypeIndigenousOwned:       20,
	model.BusinessTypeIndigenousPartnership: 15,
	model.BusinessTypeIndigenousAffiliated:  10,
	model.BusinessTypePotentialPartner:      25,
}

// scorePartnership scores partnership potential. industry is the record's
// industry component.
func scorePartnership(r *model.BusinessRecord, s *Signals, industry float64) float64 {
	score := 50 + typeBonus[r.Type]

	partners := s.partnerCount()
	score += math.Min(float64(partners)*5, 15)

	if industry >= 80 {
		score += 10
	}
	if s != nil && s.NearbyBusinesses > 10 {
		score += 5
	}
	return math.Min(score, 100)
}

// scoreGeographic scores market location. Unknown addresses score 30.
func scoreGeographic(addr *model.Address, m geo.Markets) float64 {
	c, ok := m.Classify(addr)
	if !ok {
		return 30
	}

	score := 50.0
	switch c.Tier {
	case geo.TierPrimary:
		score += 30
	case geo.TierSecondary:
		score += 20
	default:
		score += 10
	}
	if c.Urban {
		score += 15
	}
	if c.OnReserve || c.Remote {
		score += 10
	}
	if c.Northern {
		score += 5
	}
	return math.Min(score, 100)
}

// Industry fit levels.
const (
	fitHigh         = 90
	fitMedium       = 60
	fitLow          = 30
	fitExcluded     = 0
	fitUnclassified = 50
)

// scoreIndustry takes the best fit over the record's tags, with a breadth
// bonus for more than three usable tags.
func scoreIndustry(tags []string, lists IndustryLists) float64 {
	tags = normalize.Tags(tags)
	if len(tags) == 0 {
		return 30
	}

	best := 0.0
	usable := 0
	for _, t := range tags {
		fit := industryFit(t, lists)
		if fit != fitExcluded {
			usable++
		}
		best = math.Max(best, fit)
	}
	if usable > 3 {
		best += 10
	}
	return math.Min(best, 100)
}

func industryFit(tag string, lists IndustryLists) float64 {
	switch {
	case matchesAny(tag, lists.Excluded):
		return fitExcluded
	case matchesAny(tag, lists.High):
		return fitHigh
	case matchesAny(tag, lists.Medium):
		return fitMedium
	case matchesAny(tag, lists.Low):
		return fitLow
	default:
		return fitUnclassified
	}
}

func matchesAny(tag string, entries []string) bool {
	for _, e := range entries {
		if e = normalize.Tag(e); e != "" && strings.Contains(tag, e) {
			return true
		}
	}
	return false
}

var indigenousBase = map[model.BusinessType]float64{
	model.BusinessTypeIndigenousOwned:       80,
	model.BusinessTypeIndigenousPartnership: 60,
	model.BusinessTypeIndigenousAffiliated:  40,
}

// scoreIndigenous scores Indigenous ownership and community ties.
func scoreIndigenous(r *model.BusinessRecord) float64 {
	score := indigenousBase[r.Type]

	if p := r.Indigenous; p != nil {
		switch {
		case p.OwnershipPct >= 51:
			score += 10
		case p.OwnershipPct >= 33:
			score += 5
		}
		switch {
		case p.EmployeePct >= 50:
			score += 5
		case p.EmployeePct >= 25:
			score += 3
		}
		if p.CommunityAgreement {
			score += 3
		}
		if p.BandCouncilSupport {
			score += 2
		}
		if p.Certified {
			score += 10
		}
	}
	return math.Min(score, 100)
}

var relationshipMultiplier = map[model.RelationshipType]float64{
	model.RelCustomer:   15,
	model.RelSupplier:   10,
	model.RelPartner:    20,
	model.RelSubsidiary: 5,
	model.RelParent:     5,
	model.RelInvestor:   10,
	model.RelFranchisee: 5,
	model.RelCompetitor: -5,
}

// scoreRelationship scores the record's relationship network.
func scoreRelationship(s *Signals) float64 {
	if s == nil || len(s.Relationships) == 0 {
		return 20
	}

	score := 40.0
	for _, rel := range s.Relationships {
		score += relationshipMultiplier[rel.Type] * clamp(rel.Strength, 0, 1)
	}
	switch n := len(s.Relationships); {
	case n >= 10:
		score += 15
	case n >= 5:
		score += 10
	case n >= 3:
		score += 5
	}
	return clamp(score, 0, 100)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
