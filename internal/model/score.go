package model

import "time"

// DataQualityScore rates how complete, accurate and fresh a record is.
type DataQualityScore struct {
	RecordID              string         `json:"record_id"`
	Overall               float64        `json:"overall"`
	Completeness          float64        `json:"completeness"`
	Accuracy              float64        `json:"accuracy"`
	Freshness             float64        `json:"freshness"`
	SourceReliability     float64        `json:"source_reliability"`
	VerificationLevel     float64        `json:"verification_level"`
	MissingCriticalFields []MissingField `json:"missing_critical_fields"`
	Recommendations       []string       `json:"recommendations"`
	AssessedAt            time.Time      `json:"assessed_at"`
}

// MissingField is a critical field that is absent, with the estimated gain in
// overall quality from filling it.
type MissingField struct {
	Field       string  `json:"field"`
	Improvement float64 `json:"improvement"`
}

// PriorityTier buckets an overall priority score.
type PriorityTier string

const (
	TierPlatinum PriorityTier = "platinum"
	TierGold     PriorityTier = "gold"
	TierSilver   PriorityTier = "silver"
	TierBronze   PriorityTier = "bronze"
	TierStandard PriorityTier = "standard"
)

// AllTiers lists tiers from highest to lowest.
func AllTiers() []PriorityTier {
	return []PriorityTier{TierPlatinum, TierGold, TierSilver, TierBronze, TierStandard}
}

// Priority component names.
const (
	ComponentRevenue      = "revenue"
	ComponentProcurement  = "procurement"
	ComponentPartnership  = "partnership"
	ComponentDataQuality  = "data_quality"
	ComponentGeographic   = "geographic"
	ComponentIndustry     = "industry"
	ComponentIndigenous   = "indigenous"
	ComponentRelationship = "relationship"
)

// BusinessPriorityScore is the weighted priority of a canonical record.
type BusinessPriorityScore struct {
	RecordID           string             `json:"record_id"`
	Overall            float64            `json:"overall"`
	Components         map[string]float64 `json:"components"`
	Tier               PriorityTier       `json:"tier"`
	RecommendedActions []string           `json:"recommended_actions"`
	Refined            bool               `json:"refined,omitempty"`
	ComputedAt         time.Time          `json:"computed_at"`
}

// RelationshipType is the kind of edge between two organizations.
type RelationshipType string

const (
	RelCustomer   RelationshipType = "customer"
	RelSupplier   RelationshipType = "supplier"
	RelPartner    RelationshipType = "partner"
	RelSubsidiary RelationshipType = "subsidiary"
	RelParent     RelationshipType = "parent"
	RelInvestor   RelationshipType = "investor"
	RelFranchisee RelationshipType = "franchisee"
	RelCompetitor RelationshipType = "competitor"
)

// Relationship is an edge supplied by the relationship-graph collaborator.
type Relationship struct {
	TargetID string           `json:"target_id"`
	Type     RelationshipType `json:"type"`
	Strength float64          `json:"strength"`
}
