package pacing

import (
	"testing"
	"time"

	"github.com/nimblewing/flowgen/internal/distribution"
)

func mustSampler(t *testing.T, size int, rate float64) *distribution.Sampler {
	t.Helper()
	s, err := distribution.NewSampler(distribution.None, distribution.None, distribution.None, size, rate)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestLoopRespectsTotalSize(t *testing.T) {
	var sent uint64
	l := &Loop{
		Stop:       StopCriterion{TotalSize: 1000},
		PacketSize: 100,
		Sampler:    mustSampler(t, 100, 0),
		Send: func(payload []byte) (int, error) {
			sent += uint64(len(payload))
			return len(payload), nil
		},
	}
	if err := l.Run(nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sent < 1000 {
		t.Fatalf("sent %d bytes, want at least 1000", sent)
	}
}

func TestLoopRespectsDuration(t *testing.T) {
	l := &Loop{
		Stop:       StopCriterion{Duration: 50 * time.Millisecond},
		PacketSize: 100,
		Sampler:    mustSampler(t, 100, 0),
		Send: func(payload []byte) (int, error) {
			return len(payload), nil
		},
	}
	start := time.Now()
	if err := l.Run(nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond || elapsed > 500*time.Millisecond {
		t.Fatalf("Run took %v, want roughly 50ms", elapsed)
	}
}

func TestLoopStopChannel(t *testing.T) {
	stop := make(chan struct{})
	close(stop)
	l := &Loop{
		Stop:       StopCriterion{Duration: time.Hour},
		PacketSize: 100,
		Sampler:    mustSampler(t, 100, 0),
		Send: func(payload []byte) (int, error) {
			return len(payload), nil
		},
	}
	if err := l.Run(stop); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestLoopRateCap(t *testing.T) {
	var sent int
	l := &Loop{
		Stop:       StopCriterion{Duration: 200 * time.Millisecond},
		PacketSize: 1000,
		RateBps:    80000, // 10 packets/sec at 1000B packets
		Sampler:    mustSampler(t, 1000, 0),
		Send: func(payload []byte) (int, error) {
			sent++
			return len(payload), nil
		},
	}
	if err := l.Run(nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sent > 10 {
		t.Fatalf("sent %d packets in 200ms at 10pps cap, want <= 10", sent)
	}
}
