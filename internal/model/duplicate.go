package model

import "time"

// MatchType tags how closely a single field matched.
type MatchType string

const (
	MatchExact   MatchType = "exact"
	MatchFuzzy   MatchType = "fuzzy"
	MatchPartial MatchType = "partial"
)

// MatchTypeFor returns the tag for a field similarity.
func MatchTypeFor(similarity float64) MatchType {
	switch {
	case similarity >= 1:
		return MatchExact
	case similarity >= 0.7:
		return MatchFuzzy
	default:
		return MatchPartial
	}
}

// MatchingField is the per-field comparison result for a record pair.
type MatchingField struct {
	Field      string    `json:"field"`
	Value1     any       `json:"value1"`
	Value2     any       `json:"value2"`
	Similarity float64   `json:"similarity"`
	MatchType  MatchType `json:"match_type"`
}

// MergeAction is the decision taken for a candidate pair.
type MergeAction string

const (
	ActionMerge         MergeAction = "merge"
	ActionMarkDuplicate MergeAction = "mark_duplicate"
	ActionManualReview  MergeAction = "manual_review"
	ActionKeepBoth      MergeAction = "keep_both"
)

// DuplicateCandidate is a scored record pair. It is never mutated after
// creation.
type DuplicateCandidate struct {
	RecordID1       string          `json:"record_id_1"`
	RecordID2       string          `json:"record_id_2"`
	Similarity      float64         `json:"similarity"`
	MatchingFields  []MatchingField `json:"matching_fields"`
	Confidence      float64         `json:"confidence"`
	SuggestedAction MergeAction     `json:"suggested_action"`
	DetectedAt      time.Time       `json:"detected_at"`
}

// PairKey returns the order-independent key of the candidate's record pair.
func (c *DuplicateCandidate) PairKey() string {
	return PairKey(c.RecordID1, c.RecordID2)
}

// PairKey builds an order-independent key for two record ids.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

// Field returns the matching field with the given name, if compared.
func (c *DuplicateCandidate) Field(name string) (MatchingField, bool) {
	for _, f := range c.MatchingFields {
		if f.Field == name {
			return f, true
		}
	}
	return MatchingField{}, false
}

// SourceSelector picks which side of a merge supplies a field.
type SourceSelector string

const (
	SourcePrimary        SourceSelector = "primary"
	SourceSecondary      SourceSelector = "secondary"
	SourceNewest         SourceSelector = "newest"
	SourceHighestQuality SourceSelector = "highest_quality"
)

// ConflictResolution tags how a conflicting field value was settled.
type ConflictResolution string

const (
	ResolvePrimaryWins   ConflictResolution = "primary_wins"
	ResolveSecondaryWins ConflictResolution = "secondary_wins"
	ResolveCombine       ConflictResolution = "combine"
	ResolveManual        ConflictResolution = "manual"
)

// FieldMergeRule says where one field of the merged record comes from.
type FieldMergeRule struct {
	Field      string             `json:"field"`
	Source     SourceSelector     `json:"source"`
	Resolution ConflictResolution `json:"resolution"`
}

// MergeStrategy is the complete plan for merging two records.
type MergeStrategy struct {
	PrimaryRecordID  string           `json:"primary_record_id"`
	Rules            []FieldMergeRule `json:"rules"`
	PreserveHistory  bool             `json:"preserve_history"`
	NotifyDownstream bool             `json:"notify_downstream"`
}

// MergeRecord is a merge-history entry, sufficient to audit or reverse the
// merge.
type MergeRecord struct {
	ID          string          `json:"id"`
	CanonicalID string          `json:"canonical_id"`
	SecondaryID string          `json:"secondary_id"`
	Strategy    MergeStrategy   `json:"strategy"`
	Primary     *BusinessRecord `json:"primary_before"`
	Secondary   *BusinessRecord `json:"secondary_before"`
	MergedAt    time.Time       `json:"merged_at"`
}

// MergeResult is the outcome of one merge execution.
type MergeResult struct {
	Canonical   *BusinessRecord `json:"canonical"`
	SecondaryID string          `json:"secondary_id"`
	HistoryID   string          `json:"history_id,omitempty"`
	Forwarded   bool            `json:"forwarded"`
	NoOp        bool            `json:"no_op,omitempty"`
}
