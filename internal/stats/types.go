// Package stats runs the background statistics sampler described by spec
// §4.4: a task that snapshots the run counters every reporting interval and
// emits one IntervalRow, plus a final summary in human or structured form.
package stats

// Kind selects which transport-specific fields an IntervalRow carries.
type Kind int

const (
	KindTCPClient Kind = iota
	KindTCPServer
	KindUDPClient
	KindUDPServer
)

// IntervalRow is one sampler tick, spec §3.
type IntervalRow struct {
	BeginSeconds float64 `json:"-"`
	EndSeconds   float64 `json:"-"`
	Times        string  `json:"times"`
	Bytes        uint64  `json:"bytes"`
	BandwidthBps float64 `json:"bandwidth"`
	Packets      uint64  `json:"packets"`
	PPS          float64 `json:"pps"`
	TotalBytes   uint64  `json:"total_bytes"`
	TotalPackets uint64  `json:"total_packets"`

	// TCP client
	CwndBytes   uint64 `json:"cwnd,omitempty"`
	Retransmits uint64 `json:"retr,omitempty"`
	RTTMicros   uint64 `json:"rtt,omitempty"`

	// UDP server
	LostPackets uint64  `json:"lost_packets,omitempty"`
	LossPercent float64 `json:"lost_percent,omitempty"`
	JitterMs    float64 `json:"jitter_ms,omitempty"`
}

// Summary is the final "end" object, spec §6.
type Summary struct {
	Start         float64 `json:"start"`
	End           float64 `json:"end"`
	Seconds       float64 `json:"seconds"`
	Bytes         uint64  `json:"bytes"`
	BitsPerSecond float64 `json:"bits_per_second"`

	// TCP client
	MaxSndCwnd  uint64  `json:"max_snd_cwnd,omitempty"`
	MeanRTT     float64 `json:"mean_rtt,omitempty"`
	Retransmits uint64  `json:"retransmits,omitempty"`

	// UDP
	LostPackets uint64  `json:"lost_packets,omitempty"`
	LossPercent float64 `json:"lost_percent,omitempty"`
	JitterMs    float64 `json:"jitter_ms,omitempty"`

	// TotalDatagrams is the denominator used in the human Lost/Total
	// line (total_sent_packets on the server, total_packets on the
	// client); it is not part of the structured "end" object.
	TotalDatagrams uint64 `json:"-"`
}

// Document is the full structured (-J) payload, spec §6.
type Document struct {
	Intervals []IntervalRow `json:"intervals"`
	End       Summary       `json:"end"`
}
