package stats

import (
	"time"

	"github.com/nimblewing/flowgen/internal/counters"
)

// idlePoll bounds how often the sampler wakes to check whether a reporting
// boundary is due, limiting CPU use to spec §5's "≤5ms idle sleep".
const idlePoll = 5 * time.Millisecond

// TCPProbeFunc reads the kernel connection-state probe (spec §6):
// cwnd bytes (snd_cwnd × mss), cumulative retransmits, and RTT in µs.
// Implementations degrade to zero fields when unsupported.
type TCPProbeFunc func() (cwndBytes uint64, retransmits uint64, rttMicros uint64, err error)

// Sampler runs the single-reader background task over a Counters set that
// a single I/O driver writes.
type Sampler struct {
	Counters *counters.Counters
	Kind     Kind
	Interval time.Duration
	TCPProbe TCPProbeFunc

	rows []IntervalRow
}

// Run snapshots counter deltas every Interval (measured from the last
// reporting boundary, not from the last emission) until stopCh is closed,
// invoking emit for each completed row. It emits one final partial row if
// the last boundary is already past due when stopCh closes.
func (s *Sampler) Run(stopCh <-chan struct{}, emit func(IntervalRow)) {
	start := time.Now()
	lastBoundary := start
	var lastBytes, lastPackets, lastMaxSeq uint64
	var lastJitter float64
	var lastRetr uint64

	running := true
	for running {
		select {
		case <-stopCh:
			running = false
		default:
			time.Sleep(idlePoll)
		}

		now := time.Now()
		due := now.Sub(lastBoundary) >= s.Interval
		if !due && running {
			continue
		}
		if !due && !running {
			// nothing new since the last boundary; still running==false breaks below
			break
		}

		row := s.snapshot(lastBoundary, now, start, &lastBytes, &lastPackets, &lastMaxSeq, &lastJitter, &lastRetr)
		s.rows = append(s.rows, row)
		emit(row)
		lastBoundary = lastBoundary.Add(s.Interval)
		if lastBoundary.After(now) {
			lastBoundary = now
		}
	}
}

func (s *Sampler) snapshot(lastBoundary, now, start time.Time, lastBytes, lastPackets, lastMaxSeq *uint64, lastJitter *float64, lastRetr *uint64) IntervalRow {
	intervalSeconds := now.Sub(lastBoundary).Seconds()
	if intervalSeconds <= 0 {
		intervalSeconds = s.Interval.Seconds()
	}

	totalBytes := s.Counters.SentBytes()
	totalPackets := s.Counters.Packets()
	bytesDiff := totalBytes - *lastBytes
	packetsDiff := totalPackets - *lastPackets

	row := IntervalRow{
		BeginSeconds: lastBoundary.Sub(start).Seconds(),
		EndSeconds:   now.Sub(start).Seconds(),
		Bytes:        bytesDiff,
		Packets:      packetsDiff,
		TotalBytes:   totalBytes,
		TotalPackets: totalPackets,
	}
	row.BandwidthBps = float64(bytesDiff*8) / intervalSeconds
	row.PPS = float64(packetsDiff) / intervalSeconds
	row.Times = formatWindow(row.BeginSeconds, row.EndSeconds)

	switch s.Kind {
	case KindTCPClient:
		if s.TCPProbe != nil {
			cwnd, retr, rtt, err := s.TCPProbe()
			if err == nil {
				row.CwndBytes = cwnd
				row.RTTMicros = rtt
				row.Retransmits = retr - *lastRetr
				*lastRetr = retr
			}
		}
	case KindUDPServer:
		maxSeq := s.Counters.MaxSeqNo()
		jitter := s.Counters.JitterMs()
		seqDiff := maxSeq - *lastMaxSeq
		jitterDiff := jitter - *lastJitter
		lost := int64(seqDiff) - int64(packetsDiff)
		if lost < 0 {
			lost = 0
		}
		row.LostPackets = uint64(lost)
		if seqDiff > 0 {
			row.LossPercent = 100 * float64(lost) / float64(seqDiff)
		}
		if packetsDiff > 0 {
			row.JitterMs = jitterDiff / float64(packetsDiff)
		}
		*lastMaxSeq = maxSeq
		*lastJitter = jitter
	}

	*lastBytes = totalBytes
	*lastPackets = totalPackets
	return row
}

// Rows returns every row emitted so far, for structured-output flushing.
func (s *Sampler) Rows() []IntervalRow {
	return s.rows
}
