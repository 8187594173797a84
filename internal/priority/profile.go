package priority

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/orgmatch/internal/geo"
)

// IndustryLists classify industry tags by strategic fit. Entries match a
// tag when the normalized tag contains them.
type IndustryLists struct {
	High     []string `yaml:"high"`
	Medium   []string `yaml:"medium"`
	Low      []string `yaml:"low"`
	Excluded []string `yaml:"excluded"`
}

// Profile holds the tunable lists behind the industry and geographic
// components.
type Profile struct {
	Industries IndustryLists `yaml:"industries"`
	Markets    geo.Markets   `yaml:"markets"`
}

// DefaultProfile returns the built-in profile.
func DefaultProfile() Profile {
	return Profile{
		Industries: IndustryLists{
			High: []string{
				"construction", "engineering", "mining", "energy", "oil and gas",
				"environmental services", "information technology", "utilities",
				"transportation", "logistics",
			},
			Medium: []string{
				"manufacturing", "professional services", "consulting",
				"forestry", "fisheries", "agriculture", "health care",
				"security services", "facilities management",
			},
			Low: []string{
				"retail", "hospitality", "food services", "tourism",
				"personal services", "arts",
			},
			Excluded: []string{
				"gambling", "tobacco", "cannabis", "adult entertainment",
			},
		},
		Markets: geo.DefaultMarkets(),
	}
}

// LoadProfile reads a YAML profile from path. Lists left empty in the file
// keep their defaults. An empty path returns DefaultProfile.
func LoadProfile(path string) (Profile, error) {
	def := DefaultProfile()
	if path == "" {
		return def, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return def, eris.Wrapf(err, "priority: read profile %s", path)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return def, eris.Wrapf(err, "priority: parse profile %s", path)
	}

	fill(&p.Industries.High, def.Industries.High)
	fill(&p.Industries.Medium, def.Industries.Medium)
	fill(&p.Industries.Low, def.Industries.Low)
	fill(&p.Industries.Excluded, def.Industries.Excluded)
	fill(&p.Markets.Primary, def.Markets.Primary)
	fill(&p.Markets.Secondary, def.Markets.Secondary)
	fill(&p.Markets.UrbanCenters, def.Markets.UrbanCenters)
	fill(&p.Markets.Northern, def.Markets.Northern)
	return p, nil
}

func fill(dst *[]string, def []string) {
	if len(*dst) == 0 {
		*dst = def
	}
}
