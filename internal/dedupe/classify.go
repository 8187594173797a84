package dedupe

import "github.com/sells-group/orgmatch/internal/model"

// Thresholds control which pairs become candidates and how they are
// classified.
type Thresholds struct {
	Similarity float64 // minimum aggregate for a candidate
	AutoMerge  float64 // aggregate at or above which a pair merges
}

// strongIdentifiers conflict when compared and not identical.
var strongIdentifiers = []string{FieldBusinessNumber, FieldPhone, FieldEmail}

// Classify picks the merge action for a scored pair.
//
// An exact business-number match merges unless phone or email is compared
// and differs, which sends it to manual review. Otherwise: aggregate at or
// above AutoMerge merges; a differing strong identifier needs review;
// aggregate at or above Similarity marks a duplicate; anything else is kept.
func Classify(similarity float64, fields []model.MatchingField, t Thresholds) model.MergeAction {
	if exactBusinessNumber(fields) {
		if conflicts(fields, FieldPhone, FieldEmail) {
			return model.ActionManualReview
		}
		return model.ActionMerge
	}

	switch {
	case similarity >= t.AutoMerge:
		return model.ActionMerge
	case conflicts(fields, strongIdentifiers...):
		return model.ActionManualReview
	case similarity >= t.Similarity:
		return model.ActionMarkDuplicate
	default:
		return model.ActionKeepBoth
	}
}

// IsCandidate reports whether a scored pair is kept as a DuplicateCandidate.
func IsCandidate(similarity float64, fields []model.MatchingField, t Thresholds) bool {
	return similarity >= t.Similarity || exactBusinessNumber(fields)
}

func exactBusinessNumber(fields []model.MatchingField) bool {
	for _, f := range fields {
		if f.Field == FieldBusinessNumber {
			return f.Similarity >= 1
		}
	}
	return false
}

func conflicts(fields []model.MatchingField, names ...string) bool {
	for _, f := range fields {
		for _, n := range names {
			if f.Field == n && f.Similarity < 1 {
				return true
			}
		}
	}
	return false
}
