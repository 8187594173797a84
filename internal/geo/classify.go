// Package geo places Canadian business addresses into outreach markets.
package geo

import (
	"strings"

	"github.com/sells-group/orgmatch/internal/model"
	"github.com/sells-group/orgmatch/internal/normalize"
)

// Market tiers.
const (
	TierPrimary   = "primary"
	TierSecondary = "secondary"
	TierOther     = "other"
)

// Settlement classifications.
const (
	ClassUrbanCore = "urban_core"
	ClassRegional  = "regional"
	ClassRemote    = "remote"
	ClassOnReserve = "on_reserve"
)

// Markets lists the provinces and cities that matter for outreach. Provinces
// are two-letter codes; cities are matched after normalization.
type Markets struct {
	Primary      []string `yaml:"primary"`
	Secondary    []string `yaml:"secondary"`
	UrbanCenters []string `yaml:"urban_centers"`
	Northern     []string `yaml:"northern"`
}

// DefaultMarkets returns the built-in market definition.
func DefaultMarkets() Markets {
	return Markets{
		Primary:   []string{"ON", "BC", "AB", "QC"},
		Secondary: []string{"MB", "SK", "NS", "NB"},
		UrbanCenters: []string{
			"Toronto", "Montreal", "Vancouver", "Calgary", "Edmonton", "Ottawa",
			"Winnipeg", "Quebec City", "Hamilton", "Kitchener", "London",
			"Halifax", "Victoria", "Saskatoon", "Regina",
		},
		Northern: []string{"YT", "NT", "NU"},
	}
}

// Classification is the market placement of one address.
type Classification struct {
	Province   string `json:"province,omitempty"`
	Tier       string `json:"tier"`
	Settlement string `json:"settlement"`
	Urban      bool   `json:"urban"`
	Northern   bool   `json:"northern"`
	Remote     bool   `json:"remote"`
	OnReserve  bool   `json:"on_reserve"`
}

var provinceCodes = map[string]string{
	"ontario":                   "ON",
	"british columbia":          "BC",
	"alberta":                   "AB",
	"quebec":                    "QC",
	"manitoba":                  "MB",
	"saskatchewan":              "SK",
	"nova scotia":               "NS",
	"new brunswick":             "NB",
	"newfoundland and labrador": "NL",
	"newfoundland":              "NL",
	"prince edward island":      "PE",
	"yukon":                     "YT",
	"northwest territories":     "NT",
	"nunavut":                   "NU",
}

// ProvinceCode maps a province name or code to its two-letter code. Unknown
// values come back upper-cased.
func ProvinceCode(p string) string {
	p = strings.TrimSpace(p)
	if len(p) == 2 {
		return strings.ToUpper(p)
	}
	if code, ok := provinceCodes[normalize.Text(p)]; ok {
		return code
	}
	return strings.ToUpper(p)
}

// Classify places addr in m. ok is false when the address carries neither a
// province nor a city.
func (m Markets) Classify(addr *model.Address) (c Classification, ok bool) {
	if addr == nil || (strings.TrimSpace(addr.Province) == "" && strings.TrimSpace(addr.City) == "") {
		return Classification{}, false
	}

	c.Province = ProvinceCode(addr.Province)
	switch {
	case c.Province != "" && contains(m.Primary, c.Province):
		c.Tier = TierPrimary
	case c.Province != "" && contains(m.Secondary, c.Province):
		c.Tier = TierSecondary
	default:
		c.Tier = TierOther
	}

	c.Northern = c.Province != "" && contains(m.Northern, c.Province)
	c.Urban = m.isUrban(addr.City)
	c.Remote = addr.Remote
	c.OnReserve = addr.OnReserve

	switch {
	case c.OnReserve:
		c.Settlement = ClassOnReserve
	case c.Remote:
		c.Settlement = ClassRemote
	case c.Urban:
		c.Settlement = ClassUrbanCore
	default:
		c.Settlement = ClassRegional
	}
	return c, true
}

func (m Markets) isUrban(city string) bool {
	city = normalize.Text(city)
	if city == "" {
		return false
	}
	for _, u := range m.UrbanCenters {
		if normalize.Text(u) == city {
			return true
		}
	}
	return false
}

func contains(list []string, code string) bool {
	for _, v := range list {
		if strings.EqualFold(v, code) {
			return true
		}
	}
	return false
}
