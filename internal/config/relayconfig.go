package config


// RelayConfig configures the bidirectional IPv4↔IPv6 UDP relay, spec §6.
type RelayConfig struct {
	IPv4Addr string
	IPv4Port int
	IPv6Addr string
	IPv6Port int

	ReserveRate float64 // [0,1]
	NewRate     float64 // [0,1]
	NewContent  []byte

	// SocatTCPCmd, if non-empty, is exec'd and supervised alongside the
	// UDP relay to mirror the original's out-of-scope external TCP
	// forwarding wrapper (SPEC_FULL §4.9).
	SocatTCPCmd string

	Verbose bool
}

// NewRelayConfig validates the handler rates, spec §4.9.
func NewRelayConfig(c RelayConfig) (*RelayConfig, error) {
	if c.ReserveRate < 0 || c.ReserveRate > 1 {
		return nil, &ErrInvalidConfig{Reason: "reserve_rate must be in [0,1]"}
	}
	if c.NewRate < 0 || c.NewRate > 1 {
		return nil, &ErrInvalidConfig{Reason: "new_rate must be in [0,1]"}
	}
	if c.IPv4Port == 0 && c.IPv6Port == 0 {
		return nil, &ErrInvalidConfig{Reason: "at least one of ipv4_port/ipv6_port must be set"}
	}
	out := c
	return &out, nil
}
