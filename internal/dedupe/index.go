// Package dedupe finds records that describe the same organization, scores
// and classifies each candidate pair, and merges confirmed duplicates into a
// canonical record.
package dedupe

import (
	"sort"
	"strings"

	"github.com/sells-group/orgmatch/internal/model"
	"github.com/sells-group/orgmatch/internal/normalize"
)

// keys holds the normalized lookup keys of one record.
type keys struct {
	name           string
	phonetic       string
	phone          string
	emailDomain    string
	website        string
	businessNumber string
	postalPrefix   string
}

func keysFor(r *model.BusinessRecord, ignoredEmail map[string]bool) keys {
	k := keys{
		name:           normalize.Name(r.Name),
		phone:          normalize.Phone(r.Phone),
		website:        normalize.Domain(r.Website),
		businessNumber: normalize.BusinessNumber(r.BusinessNumber),
	}
	k.phonetic = normalize.PhoneticKey(k.name)
	if d := normalize.EmailDomain(r.Email); !ignoredEmail[d] {
		k.emailDomain = d
	}
	if r.Address != nil {
		k.postalPrefix = normalize.PostalPrefix(r.Address.PostalCode)
	}
	return k
}

// Index is the set of lookup tables built over one batch. It is read-only
// after BuildIndex returns and safe for concurrent lookups.
type Index struct {
	records map[string]*model.BusinessRecord
	keys    map[string]keys
	ids     []string

	byName           map[string][]string
	byPhonetic       map[string][]string
	byPhone          map[string][]string
	byEmailDomain    map[string][]string
	byWebsite        map[string][]string
	byPostalPrefix   map[string][]string
	byBusinessNumber map[string]string

	// distinct normalized names, sorted, for the fuzzy pass
	names []string
}

// BuildIndex indexes records by normalized name, phonetic key, phone, email
// domain, website domain, business number and postal prefix. Email domains
// in ignoredEmailDomains are not indexed. Business numbers are expected to be
// unique; when two records share one the first id in sort order owns the key.
func BuildIndex(records []*model.BusinessRecord, ignoredEmailDomains []string) *Index {
	ignored := make(map[string]bool, len(ignoredEmailDomains))
	for _, d := range ignoredEmailDomains {
		ignored[strings.ToLower(strings.TrimSpace(d))] = true
	}

	idx := &Index{
		records:          make(map[string]*model.BusinessRecord, len(records)),
		keys:             make(map[string]keys, len(records)),
		byName:           make(map[string][]string),
		byPhonetic:       make(map[string][]string),
		byPhone:          make(map[string][]string),
		byEmailDomain:    make(map[string][]string),
		byWebsite:        make(map[string][]string),
		byPostalPrefix:   make(map[string][]string),
		byBusinessNumber: make(map[string]string),
	}

	for _, r := range records {
		if r == nil || r.ID == "" {
			continue
		}
		if _, dup := idx.records[r.ID]; dup {
			continue
		}
		idx.records[r.ID] = r
		idx.ids = append(idx.ids, r.ID)
	}
	sort.Strings(idx.ids)

	for _, id := range idx.ids {
		k := keysFor(idx.records[id], ignored)
		idx.keys[id] = k

		add(idx.byName, k.name, id)
		add(idx.byPhonetic, k.phonetic, id)
		add(idx.byPhone, k.phone, id)
		add(idx.byEmailDomain, k.emailDomain, id)
		add(idx.byWebsite, k.website, id)
		add(idx.byPostalPrefix, k.postalPrefix, id)
		if k.businessNumber != "" {
			if _, taken := idx.byBusinessNumber[k.businessNumber]; !taken {
				idx.byBusinessNumber[k.businessNumber] = id
			}
		}
	}

	idx.names = make([]string, 0, len(idx.byName))
	for name := range idx.byName {
		idx.names = append(idx.names, name)
	}
	sort.Strings(idx.names)

	return idx
}

func add(table map[string][]string, key, id string) {
	if key == "" {
		return
	}
	table[key] = append(table[key], id)
}

// Len returns the number of indexed records.
func (idx *Index) Len() int {
	return len(idx.ids)
}

// IDs returns the indexed record ids in sorted order.
func (idx *Index) IDs() []string {
	return idx.ids
}

// Record returns an indexed record by id.
func (idx *Index) Record(id string) (*model.BusinessRecord, bool) {
	r, ok := idx.records[id]
	return r, ok
}
