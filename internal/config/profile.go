package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Seconds unmarshals either a bare number of seconds or a Go duration
// string ("1s500ms") from YAML, the same dual-form pattern the original
// proxy's config layer uses for its timeout fields.
type Seconds time.Duration

func (d *Seconds) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("profile: duration must be a scalar")
	}
	switch value.Tag {
	case "!!int", "!!float":
		var secs float64
		if err := value.Decode(&secs); err != nil {
			return err
		}
		*d = Seconds(time.Duration(secs * float64(time.Second)))
		return nil
	default:
		var raw string
		if err := value.Decode(&raw); err != nil {
			return err
		}
		if raw == "" {
			*d = 0
			return nil
		}
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		*d = Seconds(parsed)
		return nil
	}
}

// Profile supplies FlowConfig defaults that explicit CLI flags override.
// Transport/role/peer stay CLI-driven (SPEC_FULL §3).
type Profile struct {
	PacketSize             *int     `yaml:"packet_size"`
	Bandwidth              *string  `yaml:"bandwidth"`
	Interval               *Seconds `yaml:"interval"`
	DistPPS                *string  `yaml:"dist_pps"`
	DistLen                *string  `yaml:"dist_len"`
	DistBW                 *string  `yaml:"dist_bw"`
	BandwidthResetInterval *Seconds `yaml:"bandwidth_reset_interval"`
	Structured             *bool    `yaml:"structured"`
	OneShot                *bool    `yaml:"one_shot"`
	TOS                    *int     `yaml:"tos"`
	LiveAddr               *string  `yaml:"live_addr"`
}

// ErrProfile wraps a -profile load/parse failure (SPEC_FULL §7).
type ErrProfile struct {
	Path string
	Err  error
}

func (e *ErrProfile) Error() string {
	return fmt.Sprintf("profile %q: %v", e.Path, e.Err)
}

func (e *ErrProfile) Unwrap() error { return e.Err }

// LoadProfile reads and parses a YAML profile file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ErrProfile{Path: path, Err: err}
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, &ErrProfile{Path: path, Err: err}
	}
	return &p, nil
}
