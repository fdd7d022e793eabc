package clockskew

import (
	"encoding/json"
	"os"
)

// fileConfig is the documented schema of the optional config.json, per
// spec §9's re-architecture of the original's hidden global config.
type fileConfig struct {
	OffsetFixRate float64 `json:"offset_fix_rate"`
}

// defaultOffsetFixRate is used when config.json is absent or invalid.
const defaultOffsetFixRate = 1.0

// LoadOffsetFixRate reads the optional config.json, returning the default
// scale factor of 1.0 if the file is missing or malformed.
func LoadOffsetFixRate(path string) float64 {
	data, err := os.ReadFile(path)
	if err != nil {
		return defaultOffsetFixRate
	}
	cfg := fileConfig{OffsetFixRate: defaultOffsetFixRate}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return defaultOffsetFixRate
	}
	return cfg.OffsetFixRate
}
