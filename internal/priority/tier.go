package priority

import "github.com/sells-group/orgmatch/internal/model"

// Tier thresholds (inclusive lower bounds).
const (
	PlatinumMin = 90
	GoldMin     = 75
	SilverMin   = 60
	BronzeMin   = 40
)

// TierFor buckets an overall score.
func TierFor(overall float64) model.PriorityTier {
	switch {
	case overall >= PlatinumMin:
		return model.TierPlatinum
	case overall >= GoldMin:
		return model.TierGold
	case overall >= SilverMin:
		return model.TierSilver
	case overall >= BronzeMin:
		return model.TierBronze
	default:
		return model.TierStandard
	}
}
