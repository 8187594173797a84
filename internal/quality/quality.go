// Package quality rates how complete, accurate, fresh and trustworthy a
// business record is.
package quality

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sells-group/orgmatch/internal/model"
)

// Sub-score weights (sum = 1).
const (
	WeightCompleteness      = 0.30
	WeightAccuracy          = 0.25
	WeightFreshness         = 0.20
	WeightSourceReliability = 0.15
	WeightVerification      = 0.10
)

// criticalField is a field counted toward completeness.
type criticalField struct {
	name    string
	weight  float64
	present func(r *model.BusinessRecord) bool
	fill    func(r *model.BusinessRecord)
}

var criticalFields = []criticalField{
	{"name", 2, func(r *model.BusinessRecord) bool { return r.Name != "" }, func(r *model.BusinessRecord) { r.Name = "x" }},
	{"business_number", 3, func(r *model.BusinessRecord) bool { return r.BusinessNumber != "" }, func(r *model.BusinessRecord) { r.BusinessNumber = "x" }},
	{"phone", 2, func(r *model.BusinessRecord) bool { return r.Phone != "" }, func(r *model.BusinessRecord) { r.Phone = "x" }},
	{"email", 2, func(r *model.BusinessRecord) bool { return r.Email != "" }, func(r *model.BusinessRecord) { r.Email = "x" }},
	{"website", 1, func(r *model.BusinessRecord) bool { return r.Website != "" }, func(r *model.BusinessRecord) { r.Website = "x" }},
	{"street", 2, func(r *model.BusinessRecord) bool { return r.Address != nil && r.Address.Street != "" }, func(r *model.BusinessRecord) {
		if r.Address == nil {
			r.Address = &model.Address{}
		}
		r.Address.Street = "x"
	}},
	{"description", 1, func(r *model.BusinessRecord) bool { return r.Description != "" }, func(r *model.BusinessRecord) { r.Description = "x" }},
}

const criticalWeightTotal = 13

// Assessor computes DataQualityScores.
type Assessor struct {
	now func() time.Time
}

// NewAssessor creates an Assessor using the wall clock.
func NewAssessor() *Assessor {
	return &Assessor{now: time.Now}
}

// NewAssessorAt creates an Assessor whose clock is now; freshness is
// measured against it.
func NewAssessorAt(now func() time.Time) *Assessor {
	return &Assessor{now: now}
}

type subScores struct {
	completeness, accuracy, freshness, reliability, verification float64
}

func (s subScores) overall() float64 {
	return WeightCompleteness*s.completeness +
		WeightAccuracy*s.accuracy +
		WeightFreshness*s.freshness +
		WeightSourceReliability*s.reliability +
		WeightVerification*s.verification
}

// Assess scores r. Missing critical fields carry the overall points gained by
// filling them, and recommendations are ranked by that gain.
func (a *Assessor) Assess(r *model.BusinessRecord) *model.DataQualityScore {
	now := a.now()
	s := a.subScores(r, now)
	base := s.overall()

	score := &model.DataQualityScore{
		RecordID:          r.ID,
		Overall:           math.Round(base),
		Completeness:      round1(s.completeness),
		Accuracy:          round1(s.accuracy),
		Freshness:         round1(s.freshness),
		SourceReliability: round1(s.reliability),
		VerificationLevel: round1(s.verification),
		AssessedAt:        now.UTC(),
	}

	type rec struct {
		text string
		gain float64
	}
	var recs []rec

	for _, f := range criticalFields {
		if f.present(r) {
			continue
		}
		c := r.Clone()
		f.fill(c)
		gain := round1(a.subScores(c, now).overall() - base)
		score.MissingCriticalFields = append(score.MissingCriticalFields, model.MissingField{Field: f.name, Improvement: gain})
		recs = append(recs, rec{fmt.Sprintf("Add %s (+%.1f)", label(f.name), gain), gain})
	}

	if !r.Verified {
		c := r.Clone()
		c.Verified = true
		gain := round1(a.subScores(c, now).overall() - base)
		recs = append(recs, rec{fmt.Sprintf("Verify the business registration (+%.1f)", gain), gain})
	}
	if s.freshness < 100 {
		c := r.Clone()
		c.EnrichedAt = &now
		gain := round1(a.subScores(c, now).overall() - base)
		text := fmt.Sprintf("Re-enrich stale data (+%.1f)", gain)
		if t := r.LastTouched(); !t.IsZero() {
			text = fmt.Sprintf("Re-enrich stale data, last updated %d days ago (+%.1f)", ageDays(t, now), gain)
		}
		recs = append(recs, rec{text, gain})
	}
	if s.reliability < 50 {
		recs = append(recs, rec{"Corroborate with a more reliable source", 0})
	}

	sort.SliceStable(score.MissingCriticalFields, func(i, j int) bool {
		return score.MissingCriticalFields[i].Improvement > score.MissingCriticalFields[j].Improvement
	})
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].gain > recs[j].gain })
	for _, rc := range recs {
		score.Recommendations = append(score.Recommendations, rc.text)
	}
	return score
}

func (a *Assessor) subScores(r *model.BusinessRecord, now time.Time) subScores {
	return subScores{
		completeness: completeness(r),
		accuracy:     accuracy(r),
		freshness:    freshness(r.LastTouched(), now),
		reliability:  clamp(r.Source.Reliability, 0, 1) * 100,
		verification: verificationLevel(r),
	}
}

func completeness(r *model.BusinessRecord) float64 {
	var earned float64
	for _, f := range criticalFields {
		if f.present(r) {
			earned += f.weight
		}
	}

	// bonus
	if r.Verified {
		earned += 2
	}
	if len(r.Contacts) > 0 {
		earned++
	}
	if len(r.Certifications) > 0 {
		earned++
	}
	if r.Financial != nil {
		earned++
	}
	if r.Procurement != nil && r.Procurement.ReadinessScore != nil {
		earned++
	}

	return math.Min(earned/criticalWeightTotal*100, 100)
}

func accuracy(r *model.BusinessRecord) float64 {
	switch {
	case r.Verified:
		return 90
	case r.Verification != nil:
		return clamp(r.Verification.Confidence, 0, 1) * 100
	default:
		return 50
	}
}

func freshness(touched, now time.Time) float64 {
	if touched.IsZero() {
		return 20
	}
	switch days := ageDays(touched, now); {
	case days <= 30:
		return 100
	case days <= 90:
		return 80
	case days <= 180:
		return 60
	case days <= 365:
		return 40
	default:
		return 20
	}
}

func verificationLevel(r *model.BusinessRecord) float64 {
	switch {
	case r.Verified:
		return 100
	case r.Verification != nil && r.Verification.TaxDebtChecked:
		return 80
	case r.Verification != nil:
		return 60
	case r.BusinessNumber != "":
		return 40
	default:
		return 20
	}
}

func ageDays(t, now time.Time) int {
	if t.IsZero() || t.After(now) {
		return 0
	}
	return int(now.Sub(t).Hours() / 24)
}

func label(field string) string {
	switch field {
	case "business_number":
		return "business number"
	case "street":
		return "street address"
	}
	return field
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
