package dedupe

import (
	"sort"

	"github.com/sells-group/orgmatch/internal/normalize"
)

// Finder generates candidate duplicates for a record from an Index.
type Finder struct {
	idx            *Index
	fuzzyThreshold float64
	usePhonetic    bool
}

// NewFinder creates a Finder. Names whose similarity to the record's name
// exceeds fuzzyThreshold are candidates.
func NewFinder(idx *Index, fuzzyThreshold float64, usePhonetic bool) *Finder {
	return &Finder{idx: idx, fuzzyThreshold: fuzzyThreshold, usePhonetic: usePhonetic}
}

// Candidates returns the ids of plausible duplicates of the indexed record
// id, sorted, excluding id itself. It returns nil for an unknown id.
func (f *Finder) Candidates(id string) []string {
	k, ok := f.idx.keys[id]
	if !ok {
		return nil
	}

	found := make(map[string]struct{})
	collect := func(ids []string) {
		for _, other := range ids {
			if other != id {
				found[other] = struct{}{}
			}
		}
	}

	if k.businessNumber != "" {
		if other, ok := f.idx.byBusinessNumber[k.businessNumber]; ok {
			collect([]string{other})
		}
	}
	if k.name != "" {
		collect(f.idx.byName[k.name])
		f.fuzzyNames(k.name, collect)
	}
	if f.usePhonetic && k.phonetic != "" {
		collect(f.idx.byPhonetic[k.phonetic])
	}
	if k.phone != "" {
		collect(f.idx.byPhone[k.phone])
	}
	if k.emailDomain != "" {
		collect(f.idx.byEmailDomain[k.emailDomain])
	}
	if k.website != "" {
		collect(f.idx.byWebsite[k.website])
	}
	if k.postalPrefix != "" {
		collect(f.idx.byPostalPrefix[k.postalPrefix])
	}

	out := make([]string, 0, len(found))
	for other := range found {
		out = append(out, other)
	}
	sort.Strings(out)
	return out
}

// fuzzyNames is a linear pass over the distinct names in the index.
func (f *Finder) fuzzyNames(name string, collect func([]string)) {
	for _, other := range f.idx.names {
		if other == name {
			continue
		}
		if normalize.Similarity(name, other) > f.fuzzyThreshold {
			collect(f.idx.byName[other])
		}
	}
}
