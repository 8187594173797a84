package dedupe

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/sells-group/orgmatch/internal/model"
	"github.com/sells-group/orgmatch/internal/normalize"
)

// mergeField describes one mergeable record field. Identity and system
// fields (id, timestamps, merge pointer, provenance) are not listed.
type mergeField struct {
	name    string
	present func(r *model.BusinessRecord) bool
	value   func(r *model.BusinessRecord) any
	assign  func(dst, src *model.BusinessRecord)

	// set for string fields
	text func(r *model.BusinessRecord) string
	// set for ordered collections
	length func(r *model.BusinessRecord) int
	union  func(dst, first, second *model.BusinessRecord)
}

func stringField(name string, ref func(r *model.BusinessRecord) *string) mergeField {
	return mergeField{
		name:    name,
		present: func(r *model.BusinessRecord) bool { return strings.TrimSpace(*ref(r)) != "" },
		value:   func(r *model.BusinessRecord) any { return *ref(r) },
		assign:  func(dst, src *model.BusinessRecord) { *ref(dst) = *ref(src) },
		text:    func(r *model.BusinessRecord) string { return *ref(r) },
	}
}

func pointerField[T any](name string, ref func(r *model.BusinessRecord) **T) mergeField {
	return mergeField{
		name:    name,
		present: func(r *model.BusinessRecord) bool { return *ref(r) != nil },
		value:   func(r *model.BusinessRecord) any { return *ref(r) },
		assign:  func(dst, src *model.BusinessRecord) { *ref(dst) = *ref(src) },
	}
}

func sliceField[T any](name string, ref func(r *model.BusinessRecord) *[]T, key func(T) string) mergeField {
	return mergeField{
		name:    name,
		present: func(r *model.BusinessRecord) bool { return len(*ref(r)) > 0 },
		value:   func(r *model.BusinessRecord) any { return *ref(r) },
		assign:  func(dst, src *model.BusinessRecord) { *ref(dst) = append([]T(nil), *ref(src)...) },
		length:  func(r *model.BusinessRecord) int { return len(*ref(r)) },
		union: func(dst, first, second *model.BusinessRecord) {
			seen := make(map[string]bool)
			var out []T
			for _, list := range [][]T{*ref(first), *ref(second)} {
				for _, v := range list {
					k := key(v)
					if seen[k] {
						continue
					}
					seen[k] = true
					out = append(out, v)
				}
			}
			*ref(dst) = out
		},
	}
}

var mergeFields = []mergeField{
	stringField("name", func(r *model.BusinessRecord) *string { return &r.Name }),
	stringField("legal_name", func(r *model.BusinessRecord) *string { return &r.LegalName }),
	stringField("business_number", func(r *model.BusinessRecord) *string { return &r.BusinessNumber }),
	stringField("phone", func(r *model.BusinessRecord) *string { return &r.Phone }),
	stringField("email", func(r *model.BusinessRecord) *string { return &r.Email }),
	stringField("website", func(r *model.BusinessRecord) *string { return &r.Website }),
	stringField("description", func(r *model.BusinessRecord) *string { return &r.Description }),
	pointerField("address", func(r *model.BusinessRecord) **model.Address { return &r.Address }),
	sliceField("industries", func(r *model.BusinessRecord) *[]string { return &r.Industries }, normalize.Tag),
	sliceField("naics_codes", func(r *model.BusinessRecord) *[]string { return &r.NAICSCodes }, strings.TrimSpace),
	pointerField("financial", func(r *model.BusinessRecord) **model.Financial { return &r.Financial }),
	{
		name:    "verified",
		present: func(r *model.BusinessRecord) bool { return r.Verified },
		value:   func(r *model.BusinessRecord) any { return r.Verified },
		assign:  func(dst, src *model.BusinessRecord) { dst.Verified = src.Verified },
	},
	pointerField("verification", func(r *model.BusinessRecord) **model.Verification { return &r.Verification }),
	sliceField("certifications", func(r *model.BusinessRecord) *[]model.Certification { return &r.Certifications },
		func(c model.Certification) string { return normalize.Text(c.Name) + "|" + normalize.Text(c.Issuer) }),
	sliceField("contacts", func(r *model.BusinessRecord) *[]model.Contact { return &r.Contacts },
		func(c model.Contact) string {
			if e := normalize.Email(c.Email); e != "" {
				return e
			}
			return normalize.Text(c.Name)
		}),
	{
		name:    "source",
		present: func(r *model.BusinessRecord) bool { return r.Source.Name != "" || r.Source.Reliability > 0 },
		value:   func(r *model.BusinessRecord) any { return r.Source },
		assign:  func(dst, src *model.BusinessRecord) { dst.Source = src.Source },
	},
	{
		name:    "business_type",
		present: func(r *model.BusinessRecord) bool { return r.Type != "" },
		value:   func(r *model.BusinessRecord) any { return r.Type },
		assign:  func(dst, src *model.BusinessRecord) { dst.Type = src.Type },
		text:    func(r *model.BusinessRecord) string { return string(r.Type) },
	},
	pointerField("indigenous", func(r *model.BusinessRecord) **model.IndigenousProfile { return &r.Indigenous }),
	pointerField("procurement", func(r *model.BusinessRecord) **model.ProcurementProfile { return &r.Procurement }),
}

func lookupField(name string) (mergeField, bool) {
	for _, f := range mergeFields {
		if f.name == name {
			return f, true
		}
	}
	return mergeField{}, false
}

// BuildStrategy generates a merge rule for every field present on either
// record:
//   - identical values come from the primary,
//   - a field on one side only comes from that side,
//   - two collections combine, led by the longer,
//   - fields matched above 0.9 come from the primary,
//   - anything else goes to the higher-quality value.
//
// The match for a field is its entry in fields, as produced by
// Scorer.Compare on the pair. Fields the scorer did not compare fall back to
// the edit-distance similarity of their normalized text.
func BuildStrategy(primary, secondary *model.BusinessRecord, fields []model.MatchingField) model.MergeStrategy {
	strategy := model.MergeStrategy{
		PrimaryRecordID:  primary.ID,
		PreserveHistory:  true,
		NotifyDownstream: true,
	}

	for _, f := range mergeFields {
		inP, inS := f.present(primary), f.present(secondary)
		if !inP && !inS {
			continue
		}
		strategy.Rules = append(strategy.Rules, ruleFor(f, primary, secondary, inP, inS, fields))
	}
	return strategy
}

func ruleFor(f mergeField, p, s *model.BusinessRecord, inP, inS bool, fields []model.MatchingField) model.FieldMergeRule {
	rule := model.FieldMergeRule{Field: f.name, Source: model.SourcePrimary, Resolution: model.ResolvePrimaryWins}
	switch {
	case !inS:
		return rule
	case !inP:
		rule.Source, rule.Resolution = model.SourceSecondary, model.ResolveSecondaryWins
		return rule
	case sameValue(f.value(p), f.value(s)):
		return rule
	case f.length != nil:
		rule.Resolution = model.ResolveCombine
		if f.length(s) > f.length(p) {
			rule.Source = model.SourceSecondary
		}
		return rule
	case fieldSimilarity(f, p, s, fields) > 0.9:
		return rule
	}

	rule.Source = model.SourceHighestQuality
	if higherQuality(f, p, s) == s {
		rule.Resolution = model.ResolveSecondaryWins
	}
	return rule
}

// fieldSimilarity returns the scorer's similarity for f when it compared the
// field, otherwise the text similarity for string fields and 0 for the rest.
func fieldSimilarity(f mergeField, p, s *model.BusinessRecord, fields []model.MatchingField) float64 {
	for _, mf := range fields {
		if mf.Field == f.name {
			return mf.Similarity
		}
	}
	if f.text == nil {
		return 0
	}
	return normalize.Similarity(normalize.Text(f.text(p)), normalize.Text(f.text(s)))
}

// higherQuality returns the record holding the better value of f: the longer
// string, or the object with more populated keys. Ties go to p.
func higherQuality(f mergeField, p, s *model.BusinessRecord) *model.BusinessRecord {
	if f.text != nil {
		if len(strings.TrimSpace(f.text(s))) > len(strings.TrimSpace(f.text(p))) {
			return s
		}
		return p
	}
	if populatedKeys(f.value(s)) > populatedKeys(f.value(p)) {
		return s
	}
	return p
}

func sameValue(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}

// populatedKeys counts the non-empty keys of v's JSON object form. Values
// that are not objects count zero.
func populatedKeys(v any) int {
	raw, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return 0
	}
	n := 0
	for _, val := range obj {
		switch x := val.(type) {
		case nil:
		case bool:
			if x {
				n++
			}
		case string:
			if x != "" {
				n++
			}
		case float64:
			if x != 0 {
				n++
			}
		case []any:
			if len(x) > 0 {
				n++
			}
		default:
			n++
		}
	}
	return n
}

// ApplyStrategy builds the merged record: it starts from a copy of primary
// and applies each rule, combining collections as a de-duplicated union.
// Neither input is modified.
func ApplyStrategy(primary, secondary *model.BusinessRecord, strategy model.MergeStrategy) *model.BusinessRecord {
	out := primary.Clone()
	p := primary.Clone()
	s := secondary.Clone()

	for _, rule := range strategy.Rules {
		f, ok := lookupField(rule.Field)
		if !ok {
			continue
		}

		if rule.Resolution == model.ResolveCombine && f.union != nil {
			if rule.Source == model.SourceSecondary {
				f.union(out, s, p)
			} else {
				f.union(out, p, s)
			}
			continue
		}

		switch rule.Source {
		case model.SourceSecondary:
			f.assign(out, s)
		case model.SourceNewest:
			if s.LastTouched().After(p.LastTouched()) {
				f.assign(out, s)
			}
		case model.SourceHighestQuality:
			if higherQuality(f, p, s) == s {
				f.assign(out, s)
			}
		}
	}
	return out
}
