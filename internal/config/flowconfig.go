// Package config holds the FlowConfig/RelayConfig data models and the
// argument validation rules from spec §3/§6, plus an optional YAML profile
// loader for ambient ergonomics.
package config

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nimblewing/flowgen/internal/distribution"
)

// Transport selects the wire protocol a flow uses.
type Transport string

const (
	TransportTCP Transport = "tcp"
	TransportUDP Transport = "udp"
)

// Role selects which side of a flow a process plays.
type Role string

const (
	RoleServer Role = "server"
	RoleClient Role = "client"
)

// Family selects the socket address family.
type Family string

const (
	FamilyV4 Family = "v4"
	FamilyV6 Family = "v6"
)

// udpOverheadV4/udpOverheadV6 are the per-frame pseudo-header overhead
// accounted in on-wire throughput reporting, spec §3.
const (
	udpOverheadV4 = 58
	udpOverheadV6 = 78
)

// FlowConfig is immutable after NewFlowConfig validates it.
type FlowConfig struct {
	Transport Transport
	Role      Role
	PeerHost  string
	BindAddr  string
	Port      int
	Family    Family

	Duration  time.Duration // 0 means unset
	TotalSize uint64        // 0 means unset

	PacketSize int
	RateBps    float64 // 0 means unpaced

	IntervalSeconds float64

	DistPPS distribution.Tag
	DistLen distribution.Tag
	DistBW  distribution.Tag

	BandwidthResetInterval time.Duration // 0 means never resample

	Structured   bool
	OneShot      bool
	PrintPayload bool

	// Ambient/domain-stack additions, SPEC_FULL §3.
	TOS      byte
	RunID    string
	LiveAddr string
}

// ErrInvalidConfig reports a construction-time FlowConfig/RelayConfig rule
// violation (spec §7's ConfigError kind). Bad unit suffixes and bad
// distribution tags are reported by internal/units and internal/distribution.
type ErrInvalidConfig struct {
	Reason string
}

func (e *ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// NewFlowConfig validates the invariants named in spec §3/§6 and fills
// derived fields (RunID, default interval).
func NewFlowConfig(c FlowConfig) (*FlowConfig, error) {
	if c.Role == RoleClient {
		hasDuration := c.Duration > 0
		hasSize := c.TotalSize > 0
		if hasDuration == hasSize {
			return nil, &ErrInvalidConfig{Reason: "client requires exactly one of duration (-t) or total size (-n)"}
		}
	}
	if c.PrintPayload && c.Transport == TransportTCP {
		return nil, &ErrInvalidConfig{Reason: "-ppkg is only valid with UDP"}
	}
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = 1
	}
	if c.PacketSize <= 0 {
		return nil, &ErrInvalidConfig{Reason: "packet size must be positive"}
	}
	if c.RunID == "" {
		c.RunID = uuid.New().String()
	}
	out := c
	return &out, nil
}

// PPS is the derived packets-per-second, 0 when unpaced.
func (c *FlowConfig) PPS() float64 {
	if c.RateBps <= 0 || c.PacketSize <= 0 {
		return 0
	}
	return c.RateBps / float64(c.PacketSize*8)
}

// MeanInterval is the derived mean inter-packet interval in seconds, 0 when
// unpaced.
func (c *FlowConfig) MeanInterval() float64 {
	pps := c.PPS()
	if pps <= 0 {
		return 0
	}
	return 1.0 / pps
}

// UDPOverheadBytes returns the per-frame pseudo-header overhead accounted
// for on-wire throughput reporting, spec §3.
func (c *FlowConfig) UDPOverheadBytes() int {
	if c.Family == FamilyV6 {
		return udpOverheadV6
	}
	return udpOverheadV4
}

// DefaultBindAddr returns the spec §6 default listen address for the
// configured family.
func DefaultBindAddr(f Family) string {
	if f == FamilyV6 {
		return "::"
	}
	return "0.0.0.0"
}
