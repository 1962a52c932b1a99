package shipping

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rate is one row of the rate table.
type Rate struct {
	Price   int64  `yaml:"price"`
	Label   string `yaml:"label"`
	Carrier string `yaml:"carrier"`
	MinDays int    `yaml:"min_days"`
	MaxDays int    `yaml:"max_days"`
}

// Zone applies Rate to regions whose name contains Match (case-insensitive).
type Zone struct {
	Match string `yaml:"match"`
	Rate  `yaml:",inline"`
}

// RateTable is evaluated in order: free threshold, first matching zone, default.
type RateTable struct {
	Carrier       string `yaml:"carrier"`
	FreeThreshold int64  `yaml:"free_threshold"`
	Free          Rate   `yaml:"free"`
	Zones         []Zone `yaml:"zones"`
	Default       Rate   `yaml:"default"`
}

// DefaultRateTable is the storefront's standing policy.
func DefaultRateTable() RateTable {
	return RateTable{
		Carrier:       "Starken",
		FreeThreshold: 100000,
		Free:          Rate{Label: "envío gratis", MinDays: 2, MaxDays: 5},
		Zones: []Zone{{
			Match: "metropolitana",
			Rate:  Rate{Price: 3990, Label: "envío Región Metropolitana", MinDays: 2, MaxDays: 3},
		}},
		Default: Rate{Price: 5990, Label: "envío a regiones", MinDays: 3, MaxDays: 5},
	}
}

// LoadRateTable reads a YAML override. A blank path returns the default table.
func LoadRateTable(path string) (*RateTable, error) {
	if strings.TrimSpace(path) == "" {
		def := DefaultRateTable()
		return &def, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate table: %w", err)
	}
	return ParseRateTable(raw)
}

// ParseRateTable decodes and validates a YAML rate table. Unknown keys are rejected.
func ParseRateTable(raw []byte) (*RateTable, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var table RateTable
	if err := dec.Decode(&table); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("rate table is empty")
		}
		return nil, fmt.Errorf("parse rate table: %w", err)
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &table, nil
}

// Validate checks prices and delivery windows.
func (t RateTable) Validate() error {
	if t.FreeThreshold <= 0 {
		return errors.New("free_threshold must be positive")
	}
	if err := t.Free.validate("free"); err != nil {
		return err
	}
	if err := t.Default.validate("default"); err != nil {
		return err
	}
	for i, zone := range t.Zones {
		if strings.TrimSpace(zone.Match) == "" {
			return fmt.Errorf("zones[%d].match is required", i)
		}
		if err := zone.Rate.validate(fmt.Sprintf("zones[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

func (r Rate) validate(name string) error {
	switch {
	case r.Price < 0:
		return fmt.Errorf("%s.price must not be negative", name)
	case r.MinDays <= 0 || r.MaxDays <= 0:
		return fmt.Errorf("%s delivery days must be positive", name)
	case r.MinDays > r.MaxDays:
		return fmt.Errorf("%s.min_days exceeds max_days", name)
	case strings.TrimSpace(r.Label) == "":
		return fmt.Errorf("%s.label is required", name)
	}
	return nil
}
