// Package normalize canonicalizes organization attributes for indexing and
// comparison.
package normalize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes are trailing name tokens dropped during name normalization.
// Matched after punctuation removal, so "Inc." and "L.L.C." arrive as "inc"
// and "l l c" respectively.
var legalSuffixes = map[string]bool{
	"inc":          true,
	"incorporated": true,
	"corp":         true,
	"corporation":  true,
	"ltd":          true,
	"ltee":         true,
	"limited":      true,
	"llc":          true,
	"llp":          true,
	"lp":           true,
	"ulc":          true,
	"plc":          true,
	"co":           true,
}

var (
	nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)
	nonDigitRe = regexp.MustCompile(`[^0-9]`)

	punctReplacer = strings.NewReplacer(
		"&", " and ",
		"'", "",
		"’", "",
		"l.l.c.", "llc",
		"l.l.c", "llc",
		"l.l.p.", "llp",
		"l.p.", "lp",
	)
)

// Fold strips diacritics, so "Ltée" becomes "Ltee".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Name lower-cases, folds accents, strips punctuation, collapses whitespace
// and drops trailing legal suffixes. A name made only of a suffix keeps it.
func Name(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	name = punctReplacer.Replace(strings.ToLower(Fold(name)))
	name = nonAlnumRe.ReplaceAllString(name, " ")

	tokens := strings.Fields(name)
	for len(tokens) > 1 && legalSuffixes[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

// Tokens splits a normalized name into tokens.
func Tokens(normalized string) []string {
	return strings.Fields(normalized)
}

// Phone keeps digits only.
func Phone(phone string) string {
	return nonDigitRe.ReplaceAllString(phone, "")
}

// LastDigits returns the last n digits of a normalized phone, or "" when the
// phone is shorter than n.
func LastDigits(phone string, n int) string {
	if len(phone) < n {
		return ""
	}
	return phone[len(phone)-n:]
}

// BusinessNumber upper-cases and keeps letters and digits, so
// "123 456 789 RT0001" and "123456789rt0001" compare equal.
func BusinessNumber(bn string) string {
	return strings.ToUpper(nonAlnumRe.ReplaceAllString(strings.ToLower(bn), ""))
}

// Email trims and lower-cases an address.
func Email(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailDomain returns the part after the last "@", or "".
func EmailDomain(email string) string {
	email = Email(email)
	i := strings.LastIndex(email, "@")
	if i < 0 || i == len(email)-1 {
		return ""
	}
	return email[i+1:]
}

// EmailLocal returns the part before the last "@".
func EmailLocal(email string) string {
	email = Email(email)
	i := strings.LastIndex(email, "@")
	if i < 0 {
		return email
	}
	return email[:i]
}

// Domain extracts the host from a URL-ish website value: scheme, "www.",
// path, query and port are removed.
func Domain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "//")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if i := strings.LastIndex(d, ":"); i >= 0 {
		d = d[:i]
	}
	return strings.TrimSuffix(d, ".")
}

// DomainBase drops the top-level label: "eagletech.ca" becomes "eagletech".
func DomainBase(domain string) string {
	i := strings.LastIndex(domain, ".")
	if i <= 0 {
		return domain
	}
	return domain[:i]
}

// PostalCode upper-cases and removes spaces and hyphens.
func PostalCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	return strings.NewReplacer(" ", "", "-", "").Replace(code)
}

// PostalPrefix returns the first three characters of a normalized postal
// code (the forward sortation area for Canadian codes), or "" when shorter.
func PostalPrefix(code string) string {
	code = PostalCode(code)
	if utf8.RuneCountInString(code) < 3 {
		return ""
	}
	return string([]rune(code)[:3])
}

// Text lower-cases, folds and collapses whitespace for free-text comparison.
func Text(s string) string {
	s = strings.ToLower(Fold(strings.TrimSpace(s)))
	return strings.Join(strings.Fields(s), " ")
}

// Tag normalizes an industry tag.
func Tag(tag string) string {
	return Text(tag)
}

// Tags normalizes and de-duplicates a tag list, dropping empties.
func Tags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		n := Tag(t)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
