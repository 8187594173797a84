package dedupe

import (
	"strings"

	"github.com/sells-group/orgmatch/internal/model"
	"github.com/sells-group/orgmatch/internal/normalize"
)

// Compared field names. They match the record's JSON field names.
const (
	FieldBusinessNumber = "business_number"
	FieldName           = "name"
	FieldPhone          = "phone"
	FieldEmail          = "email"
	FieldWebsite        = "website"
	FieldAddress        = "address"
	FieldIndustries     = "industries"
)

// fieldWeights are the aggregate weights, renormalized over the fields
// present on both records.
var fieldWeights = []struct {
	field  string
	weight float64
}{
	{FieldBusinessNumber, 0.30},
	{FieldName, 0.25},
	{FieldPhone, 0.15},
	{FieldEmail, 0.10},
	{FieldWebsite, 0.10},
	{FieldAddress, 0.05},
	{FieldIndustries, 0.05},
}

// Scorer computes per-field and aggregate similarity for a record pair.
type Scorer struct {
	usePhonetic bool
}

// NewScorer creates a Scorer. When usePhonetic is false the name rule skips
// the phonetic-equality term.
func NewScorer(usePhonetic bool) *Scorer {
	return &Scorer{usePhonetic: usePhonetic}
}

// Compare scores a against b. Only fields present on both sides are
// compared. The aggregate is the weighted mean over compared fields, in
// [0,1], and Compare(a, b) == Compare(b, a). No comparable fields yields 0.
func (s *Scorer) Compare(a, b *model.BusinessRecord) (float64, []model.MatchingField) {
	var fields []model.MatchingField
	var sum, weights float64

	for _, fw := range fieldWeights {
		mf, ok := s.compareField(fw.field, a, b)
		if !ok {
			continue
		}
		mf.MatchType = model.MatchTypeFor(mf.Similarity)
		fields = append(fields, mf)
		sum += fw.weight * mf.Similarity
		weights += fw.weight
	}

	if weights == 0 {
		return 0, fields
	}
	return clamp01(sum / weights), fields
}

func (s *Scorer) compareField(field string, a, b *model.BusinessRecord) (model.MatchingField, bool) {
	mf := model.MatchingField{Field: field}
	switch field {
	case FieldBusinessNumber:
		x, y := normalize.BusinessNumber(a.BusinessNumber), normalize.BusinessNumber(b.BusinessNumber)
		if x == "" || y == "" {
			return mf, false
		}
		mf.Value1, mf.Value2 = a.BusinessNumber, b.BusinessNumber
		if x == y {
			mf.Similarity = 1
		}
	case FieldName:
		x, y := normalize.Name(a.Name), normalize.Name(b.Name)
		if x == "" || y == "" {
			return mf, false
		}
		mf.Value1, mf.Value2 = a.Name, b.Name
		mf.Similarity = s.nameSimilarity(x, y)
	case FieldPhone:
		x, y := normalize.Phone(a.Phone), normalize.Phone(b.Phone)
		if x == "" || y == "" {
			return mf, false
		}
		mf.Value1, mf.Value2 = a.Phone, b.Phone
		mf.Similarity = phoneSimilarity(x, y)
	case FieldEmail:
		x, y := normalize.Email(a.Email), normalize.Email(b.Email)
		if x == "" || y == "" {
			return mf, false
		}
		mf.Value1, mf.Value2 = a.Email, b.Email
		mf.Similarity = emailSimilarity(x, y)
	case FieldWebsite:
		x, y := normalize.Domain(a.Website), normalize.Domain(b.Website)
		if x == "" || y == "" {
			return mf, false
		}
		mf.Value1, mf.Value2 = a.Website, b.Website
		mf.Similarity = websiteSimilarity(x, y)
	case FieldAddress:
		if a.Address == nil || b.Address == nil {
			return mf, false
		}
		sim, ok := addressSimilarity(a.Address, b.Address)
		if !ok {
			return mf, false
		}
		mf.Value1, mf.Value2 = *a.Address, *b.Address
		mf.Similarity = sim
	case FieldIndustries:
		x, y := normalize.Tags(a.Industries), normalize.Tags(b.Industries)
		if len(x) == 0 || len(y) == 0 {
			return mf, false
		}
		mf.Value1, mf.Value2 = a.Industries, b.Industries
		mf.Similarity = normalize.SetJaccard(x, y)
	default:
		return mf, false
	}
	return mf, true
}

// nameSimilarity averages edit-distance similarity, token Jaccard, phonetic
// equality (1 or 0.5) and, when one name abbreviates the other, 0.9.
func (s *Scorer) nameSimilarity(x, y string) float64 {
	terms := []float64{
		normalize.Similarity(x, y),
		normalize.TokenJaccard(x, y),
	}
	if s.usePhonetic {
		px, py := normalize.PhoneticKey(x), normalize.PhoneticKey(y)
		if px != "" && px == py {
			terms = append(terms, 1)
		} else {
			terms = append(terms, 0.5)
		}
	}
	if normalize.IsAbbreviation(x, y) {
		terms = append(terms, 0.9)
	}
	return mean(terms)
}

func phoneSimilarity(x, y string) float64 {
	switch {
	case x == y:
		return 1
	case strings.Contains(x, y) || strings.Contains(y, x):
		return 0.9
	}
	lx, ly := normalize.LastDigits(x, 7), normalize.LastDigits(y, 7)
	if lx != "" && lx == ly {
		return 0.8
	}
	return 0
}

func emailSimilarity(x, y string) float64 {
	if x == y {
		return 1
	}
	dx, dy := normalize.EmailDomain(x), normalize.EmailDomain(y)
	if dx == "" || dx != dy {
		return 0
	}
	return 0.5 + 0.5*normalize.Similarity(normalize.EmailLocal(x), normalize.EmailLocal(y))
}

func websiteSimilarity(x, y string) float64 {
	switch {
	case x == y:
		return 1
	case strings.Contains(x, y) || strings.Contains(y, x):
		return 0.9
	}
	return 0.8 * normalize.Similarity(normalize.DomainBase(x), normalize.DomainBase(y))
}

// addressSimilarity averages the sub-fields present on both addresses. It
// reports false when no sub-field is comparable.
func addressSimilarity(a, b *model.Address) (float64, bool) {
	var terms []float64

	if pa, pb := normalize.PostalCode(a.PostalCode), normalize.PostalCode(b.PostalCode); pa != "" && pb != "" {
		switch {
		case pa == pb:
			terms = append(terms, 1)
		case normalize.PostalPrefix(pa) != "" && normalize.PostalPrefix(pa) == normalize.PostalPrefix(pb):
			terms = append(terms, 0.5)
		default:
			terms = append(terms, 0)
		}
	}
	if ca, cb := normalize.Text(a.City), normalize.Text(b.City); ca != "" && cb != "" {
		terms = append(terms, normalize.Similarity(ca, cb))
	}
	if pa, pb := normalize.Text(a.Province), normalize.Text(b.Province); pa != "" && pb != "" {
		if pa == pb {
			terms = append(terms, 1)
		} else {
			terms = append(terms, 0)
		}
	}
	if sa, sb := normalize.Text(a.Street), normalize.Text(b.Street); sa != "" && sb != "" {
		terms = append(terms, normalize.Similarity(sa, sb))
	}

	if len(terms) == 0 {
		return 0, false
	}
	return mean(terms), true
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func clamp01(x float64) float64 {
	switch {
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
