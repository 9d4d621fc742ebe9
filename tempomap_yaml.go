package taktell

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// The YAML form of a tempo map mirrors the line grammar field by field. An
// infinite entry is encoded as bars: -1, the pattern as a string in the
// grammar alphabet.
type yamlEntry struct {
	Label   string    `yaml:"label,omitempty"`
	Bars    int       `yaml:"bars"`
	Beats   int       `yaml:"beats"`
	Denom   int       `yaml:"denom"`
	Tempo   float64   `yaml:"tempo,omitempty"`
	Tempo2  float64   `yaml:"tempo2,omitempty"`
	Tempi   []float64 `yaml:"tempi,omitempty,flow"`
	Pattern string    `yaml:"pattern,omitempty"`
	Volume  float64   `yaml:"volume"`
}

// NewFromYAML parses and validates the YAML form of a tempo map.
func NewFromYAML(data []byte) (TempoMap, error) {
	var m TempoMap
	if err := yaml.Unmarshal(data, &m); err != nil {
		return TempoMap{}, fmt.Errorf("could not parse tempo map yaml: %w", err)
	}
	if err := m.Validate(); err != nil {
		return TempoMap{}, err
	}
	return m, nil
}

func (m TempoMap) MarshalYAML() (interface{}, error) {
	entries := make([]yamlEntry, len(m.Entries))
	for i := range m.Entries {
		e := &m.Entries[i]
		entries[i] = yamlEntry{
			Label:   e.Label,
			Bars:    e.Bars,
			Beats:   e.Beats,
			Denom:   e.Denom,
			Tempo:   e.Tempo,
			Tempo2:  e.Tempo2,
			Tempi:   e.Tempi,
			Pattern: PatternString(e.Pattern),
			Volume:  e.Volume,
		}
	}
	return entries, nil
}

func (m *TempoMap) UnmarshalYAML(value *yaml.Node) error {
	var entries []yamlEntry
	if err := value.Decode(&entries); err != nil {
		return err
	}
	m.Entries = make([]Entry, len(entries))
	for i, y := range entries {
		e := Entry{
			Label:  y.Label,
			Bars:   y.Bars,
			Beats:  y.Beats,
			Denom:  y.Denom,
			Tempo:  y.Tempo,
			Tempo2: y.Tempo2,
			Tempi:  y.Tempi,
			Volume: y.Volume,
		}
		if y.Pattern != "" {
			e.Pattern = make([]BeatType, len(y.Pattern))
			for k := 0; k < len(y.Pattern); k++ {
				switch y.Pattern[k] {
				case 'X':
					e.Pattern[k] = BeatEmphasis
				case 'x':
					e.Pattern[k] = BeatNormal
				case '.':
					e.Pattern[k] = BeatSilent
				default:
					return fmt.Errorf("invalid pattern character %q", y.Pattern[k])
				}
			}
		}
		m.Entries[i] = e
	}
	return nil
}
