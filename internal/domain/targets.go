package domain

import (
	"fmt"
	"strings"
)

// Targets holds the keyword and location lists that drive the relevance gate
// and the harvester's search queries. It is decoded from TOML or YAML; empty
// lists fall back to the defaults.
type Targets struct {
	FireKeywords      []string `toml:"fire_keywords" yaml:"fire_keywords"`
	StructureKeywords []string `toml:"structure_keywords" yaml:"structure_keywords"`
	States            []string `toml:"states" yaml:"states"`
	Cities            []string `toml:"cities" yaml:"cities"`
	HighFireStates    []string `toml:"high_fire_states" yaml:"high_fire_states"`
	SearchStates      []string `toml:"search_states" yaml:"search_states"`
	SearchKeywords    []string `toml:"search_keywords" yaml:"search_keywords"`
	Accounts          []string `toml:"accounts" yaml:"accounts"`
}

// DefaultTargets returns the built-in lists.
func DefaultTargets() Targets {
	return Targets{
		FireKeywords: []string{
			"burn", "evacuate", "evacuation", "damage", "destroy", "blaze", "smoke", "flames",
			"emergency", "brushfire", "structure fire", "forest fire", "house fire",
			"apartment fire", "building fire", "outbreak", "spread",
		},
		StructureKeywords: []string{
			"structure fire", "building fire", "house fire", "apartment fire", "commercial fire",
			"warehouse fire", "residential fire", "industrial fire", "office fire", "school fire",
			"church fire", "hospital fire", "barn fire", "garage fire", "hotel fire", "motel fire",
			"condo fire", "duplex fire", "multi-family fire", "business fire", "restaurant fire",
			"store fire", "shopping center fire", "mall fire",
			"destroyed", "damaged", "total loss", "collapsed", "evacuated",
		},
		States: []string{
			"Alabama", "Alaska", "Arizona", "Arkansas", "California", "Colorado", "Connecticut",
			"Delaware", "Florida", "Georgia", "Hawaii", "Idaho", "Illinois", "Indiana", "Iowa",
			"Kansas", "Kentucky", "Louisiana", "Maine", "Maryland", "Massachusetts", "Michigan",
			"Minnesota", "Mississippi", "Missouri", "Montana", "Nebraska", "Nevada",
			"New Hampshire", "New Jersey", "New Mexico", "New York", "North Carolina",
			"North Dakota", "Ohio", "Oklahoma", "Oregon", "Pennsylvania", "Rhode Island",
			"South Carolina", "South Dakota", "Tennessee", "Texas", "Utah", "Vermont", "Virginia",
			"Washington", "West Virginia", "Wisconsin", "Wyoming",
		},
		Cities: []string{
			"Los Angeles", "Chicago", "Houston", "Phoenix", "Philadelphia", "San Antonio",
			"San Diego", "Dallas", "San Jose", "Austin", "Jacksonville", "Fort Worth", "Columbus",
			"Charlotte", "San Francisco", "Indianapolis", "Seattle", "Denver", "Boston", "El Paso",
			"Nashville", "Detroit", "Oklahoma City", "Portland", "Las Vegas", "Memphis",
			"Louisville", "Baltimore", "Milwaukee", "Albuquerque", "Tucson", "Fresno", "Sacramento",
			"Mesa", "Kansas City", "Atlanta", "Omaha", "Colorado Springs", "Raleigh", "Miami",
			"Long Beach", "Virginia Beach", "Oakland", "Minneapolis", "Tulsa", "Tampa", "Arlington",
		},
		HighFireStates: []string{
			"California", "Texas", "Arizona", "Colorado", "Florida", "Oregon", "Washington",
			"Nevada", "New Mexico", "Utah", "Idaho", "Montana", "Wyoming",
		},
		SearchStates: []string{"California"},
		SearchKeywords: []string{
			"house fire", "apartment complex", "store fire", "commercial fire", "restaurant fire",
			"warehouse fire", "business fire", "pipe burst",
		},
		Accounts: []string{
			"DFWscanner", "DallasTexasTV", "NWSSanAntonio", "FriscoFFD", "RedCrossTXGC",
			"whatsupTucson", "WacoTXFire", "SouthMetroPIO", "NWSBoulder", "SeattleFire",
			"CityofMiamiFire", "PeterNewcomb41", "ffxfirerescue", "ScannerRadioDFW",
			"sfgafirerescue", "THEJFRD", "ChicagoMWeather", "ToledoFire", "AustinFireInfo",
		},
	}
}

// WithDefaults fills every empty list from DefaultTargets.
func (t Targets) WithDefaults() Targets {
	d := DefaultTargets()
	fill := func(dst *[]string, src []string) {
		if len(*dst) == 0 {
			*dst = src
		}
	}
	fill(&t.FireKeywords, d.FireKeywords)
	fill(&t.StructureKeywords, d.StructureKeywords)
	fill(&t.States, d.States)
	fill(&t.Cities, d.Cities)
	fill(&t.HighFireStates, d.HighFireStates)
	fill(&t.SearchStates, d.SearchStates)
	fill(&t.SearchKeywords, d.SearchKeywords)
	fill(&t.Accounts, d.Accounts)
	return t
}

// FireHashtags returns "#Fire<State>" for each high-fire state.
func (t Targets) FireHashtags() []string {
	tags := make([]string, 0, len(t.HighFireStates))
	for _, s := range t.HighFireStates {
		tags = append(tags, "#Fire"+strings.ReplaceAll(s, " ", ""))
	}
	return tags
}

// SearchQueries returns every query the harvester should run: state/keyword
// combinations, fire hashtags, then from:account queries.
func (t Targets) SearchQueries() []string {
	queries := make([]string, 0, len(t.SearchStates)*len(t.SearchKeywords)+len(t.HighFireStates)+len(t.Accounts))
	for _, state := range t.SearchStates {
		for _, kw := range t.SearchKeywords {
			queries = append(queries, fmt.Sprintf("%s %s", state, kw))
		}
	}
	queries = append(queries, t.FireHashtags()...)
	for _, acc := range t.Accounts {
		queries = append(queries, "from:"+strings.TrimPrefix(acc, "@"))
	}
	return queries
}
