package priority

import "github.com/sells-group/orgmatch/internal/model"

var tierActions = map[model.PriorityTier]string{
	model.TierPlatinum: "Assign a dedicated relationship manager and reach out this week",
	model.TierGold:     "Schedule outreach within the quarter",
	model.TierSilver:   "Add to a targeted nurture campaign",
	model.TierBronze:   "Monitor for changes in size or readiness",
	model.TierStandard: "Keep in the general pool",
}

// Recommend derives outreach actions from the tier and component scores.
// The tier action always comes first.
func Recommend(tier model.PriorityTier, c map[string]float64) []string {
	actions := []string{tierActions[tier]}

	if c[model.ComponentIndigenous] >= 80 {
		actions = append(actions, "Highlight eligibility for Indigenous procurement set-asides")
	}
	if c[model.ComponentPartnership] >= 80 {
		actions = append(actions, "Propose a joint-venture or partnership agreement")
	}
	if c[model.ComponentRevenue] >= 70 {
		actions = append(actions, "Engage for major contract opportunities")
	}
	if c[model.ComponentProcurement] < 50 {
		actions = append(actions, "Help build procurement readiness: insurance, bonding and a safety program")
	}
	if c[model.ComponentDataQuality] < 60 {
		actions = append(actions, "Improve record data quality before outreach")
	}
	if c[model.ComponentRelationship] <= 20 {
		actions = append(actions, "Map existing relationships and introductions")
	}
	return actions
}
