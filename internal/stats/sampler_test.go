package stats

import (
	"testing"
	"time"

	"github.com/nimblewing/flowgen/internal/counters"
)

func TestSamplerEmitsRows(t *testing.T) {
	var c counters.Counters
	s := &Sampler{Counters: &c, Kind: KindUDPClient, Interval: 20 * time.Millisecond}

	stop := make(chan struct{})
	done := make(chan struct{})
	var rows []IntervalRow

	go func() {
		s.Run(stop, func(row IntervalRow) { rows = append(rows, row) })
		close(done)
	}()

	deadline := time.After(150 * time.Millisecond)
loop:
	for {
		select {
		case <-deadline:
			break loop
		default:
			c.AddSentBytes(1000)
			c.IncPackets()
			time.Sleep(2 * time.Millisecond)
		}
	}
	close(stop)
	<-done

	if len(rows) == 0 {
		t.Fatal("expected at least one interval row")
	}
	if s.Rows() == nil {
		t.Fatal("Rows() should retain emitted rows")
	}
}

func TestUDPServerLossComputation(t *testing.T) {
	var c counters.Counters
	s := &Sampler{Counters: &c, Kind: KindUDPServer, Interval: time.Millisecond}

	c.ObserveSeqNo(10)
	for i := 0; i < 8; i++ {
		c.AddSentBytes(100)
		c.IncPackets()
	}

	var lastBytes, lastPackets, lastMaxSeq uint64
	var lastJitter float64
	var lastRetr uint64
	row := s.snapshot(time.Now().Add(-time.Millisecond), time.Now(), time.Now().Add(-time.Millisecond), &lastBytes, &lastPackets, &lastMaxSeq, &lastJitter, &lastRetr)

	if row.LostPackets != 2 {
		t.Fatalf("LostPackets = %d, want 2", row.LostPackets)
	}
}
