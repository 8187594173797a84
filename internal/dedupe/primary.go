package dedupe

import "github.com/sells-group/orgmatch/internal/model"

// preference scores how good a record is as the surviving record of a merge.
func preference(r *model.BusinessRecord) int {
	score := 0
	if r.Verified {
		score += 10
	}
	if r.EnrichedAt != nil && !r.EnrichedAt.IsZero() {
		score += 5
	}
	return score + completeness(r)
}

func completeness(r *model.BusinessRecord) int {
	score := 0
	if r.Name != "" {
		score++
	}
	if r.BusinessNumber != "" {
		score += 2
	}
	if r.Phone != "" {
		score++
	}
	if r.Email != "" {
		score++
	}
	if r.Website != "" {
		score++
	}
	if r.Address != nil && r.Address.Street != "" {
		score++
	}
	if r.Description != "" {
		score++
	}
	if len(r.Contacts) > 0 {
		score += 2
	}
	if len(r.Certifications) > 0 {
		score += 2
	}
	return score
}

// SelectPrimary returns (primary, secondary). A preference lead of two or
// more decides; otherwise the most recently discovered record wins, and
// equal discovery times fall back to the smaller id.
func SelectPrimary(a, b *model.BusinessRecord) (primary, secondary *model.BusinessRecord) {
	pa, pb := preference(a), preference(b)
	switch {
	case pa-pb >= 2:
		return a, b
	case pb-pa >= 2:
		return b, a
	case a.DiscoveredAt.After(b.DiscoveredAt):
		return a, b
	case b.DiscoveredAt.After(a.DiscoveredAt):
		return b, a
	case a.ID <= b.ID:
		return a, b
	default:
		return b, a
	}
}
