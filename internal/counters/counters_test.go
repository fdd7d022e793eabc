package counters

import "testing"

func TestCountersMonotonic(t *testing.T) {
	var c Counters
	c.AddSentBytes(10)
	c.AddSentBytes(5)
	if got := c.SentBytes(); got != 15 {
		t.Fatalf("SentBytes() = %d, want 15", got)
	}
	c.IncPackets()
	c.IncPackets()
	if got := c.Packets(); got != 2 {
		t.Fatalf("Packets() = %d, want 2", got)
	}
}

func TestObserveSeqNoTakesMax(t *testing.T) {
	var c Counters
	c.ObserveSeqNo(5)
	c.ObserveSeqNo(3)
	c.ObserveSeqNo(9)
	if got := c.MaxSeqNo(); got != 9 {
		t.Fatalf("MaxSeqNo() = %d, want 9", got)
	}
}

func TestJitterAndDelayAccumulate(t *testing.T) {
	var c Counters
	c.AddJitterMs(1.5)
	c.AddJitterMs(2.25)
	if got := c.JitterMs(); got != 3.75 {
		t.Fatalf("JitterMs() = %v, want 3.75", got)
	}
	c.AddDelayMs(10)
	c.AddDelayMs(5)
	if got := c.DelayMs(); got != 15 {
		t.Fatalf("DelayMs() = %v, want 15", got)
	}
}

func TestRetransmitsLastValueWins(t *testing.T) {
	var c Counters
	c.SetRetransmits(3)
	c.SetRetransmits(7)
	if got := c.Retransmits(); got != 7 {
		t.Fatalf("Retransmits() = %d, want 7", got)
	}
}
