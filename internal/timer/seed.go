package timer

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// Seed is one timer record as authored in the timers file. The file is
// JSONC (JSON with comments and trailing commas); see LoadSeeds. Durations
// are Go duration strings, the anchor is RFC 3339.
type Seed struct {
	Area           string   `json:"area"`
	SubArea        string   `json:"sub_area,omitempty"`
	Repeat         string   `json:"repeat,omitempty"`
	Anchor         string   `json:"anchor,omitempty"`
	Cron           string   `json:"cron,omitempty"`
	Advance        string   `json:"advance,omitempty"`
	Announce       string   `json:"announce,omitempty"`
	Demand         string   `json:"demand,omitempty"`
	Silent         bool     `json:"silent,omitempty"`
	AreaAliases    []string `json:"area_aliases,omitempty"`
	SubAreaAliases []string `json:"sub_area_aliases,omitempty"`
}

// ParseSeeds strips JSONC comments and trailing commas from data and
// unmarshals the remaining JSON array of seed records.
func ParseSeeds(data []byte) ([]Seed, error) {
	var seeds []Seed
	if err := json.Unmarshal(jsonc.ToJSON(data), &seeds); err != nil {
		return nil, fmt.Errorf("parsing timer seeds: %w", err)
	}
	return seeds, nil
}

// LoadSeeds reads the timers file from disk. A missing or malformed file is
// an error here; the caller decides whether to degrade to an empty registry.
func LoadSeeds(path string) ([]Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	seeds, err := ParseSeeds(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return seeds, nil
}
