package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/example/rollout/internal/ports/secondary"
)

// fallbackFile is the on-disk shape of the fallback table:
//
//	estimates:
//	  Nova Bandeirantes: 1529
//	  Colniza: "48.50"
type fallbackFile struct {
	Estimates map[string]decimal.Decimal `yaml:"estimates"`
}

// LoadFallbackTable reads per-city monthly estimates from a YAML file.
// An empty path yields an empty table.
func LoadFallbackTable(path string) (secondary.FallbackTable, error) {
	if path == "" {
		return secondary.FallbackTable{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fallback table: %w", err)
	}
	return ParseFallbackTable(data)
}

// ParseFallbackTable decodes the YAML fallback document. Unknown keys and
// negative estimates are rejected.
func ParseFallbackTable(data []byte) (secondary.FallbackTable, error) {
	var doc fallbackFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse fallback table: %w", err)
	}

	table := make(secondary.FallbackTable, len(doc.Estimates))
	for name, v := range doc.Estimates {
		if v.IsNegative() {
			return nil, fmt.Errorf("fallback estimate for %s is negative (%s)", name, v)
		}
		table[name] = v
	}
	return table, nil
}
