package config

import "testing"

func TestNewFlowConfigRejectsBothDurationAndSize(t *testing.T) {
	_, err := NewFlowConfig(FlowConfig{
		Role: RoleClient, Duration: 1, TotalSize: 1, PacketSize: 100,
	})
	if err == nil {
		t.Fatal("expected error when both duration and total size set")
	}
}

func TestNewFlowConfigRejectsNeitherDurationNorSize(t *testing.T) {
	_, err := NewFlowConfig(FlowConfig{Role: RoleClient, PacketSize: 100})
	if err == nil {
		t.Fatal("expected error when neither duration nor total size set")
	}
}

func TestNewFlowConfigRejectsPpkgWithTCP(t *testing.T) {
	_, err := NewFlowConfig(FlowConfig{
		Role: RoleClient, Transport: TransportTCP, Duration: 1, PacketSize: 100, PrintPayload: true,
	})
	if err == nil {
		t.Fatal("expected error for -ppkg with TCP")
	}
}

func TestNewFlowConfigDefaultsIntervalAndRunID(t *testing.T) {
	c, err := NewFlowConfig(FlowConfig{Role: RoleClient, Duration: 1, PacketSize: 100})
	if err != nil {
		t.Fatal(err)
	}
	if c.IntervalSeconds != 1 {
		t.Fatalf("IntervalSeconds = %v, want 1", c.IntervalSeconds)
	}
	if c.RunID == "" {
		t.Fatal("expected RunID to be populated")
	}
}

func TestUDPOverheadBytes(t *testing.T) {
	c4 := FlowConfig{Family: FamilyV4}
	c6 := FlowConfig{Family: FamilyV6}
	if c4.UDPOverheadBytes() != 58 {
		t.Fatalf("v4 overhead = %d, want 58", c4.UDPOverheadBytes())
	}
	if c6.UDPOverheadBytes() != 78 {
		t.Fatalf("v6 overhead = %d, want 78", c6.UDPOverheadBytes())
	}
}

func TestRelayConfigValidation(t *testing.T) {
	if _, err := NewRelayConfig(RelayConfig{ReserveRate: 1.5, IPv4Port: 1}); err == nil {
		t.Fatal("expected error for reserve_rate out of range")
	}
	if _, err := NewRelayConfig(RelayConfig{ReserveRate: 0.5, NewRate: 0.2}); err == nil {
		t.Fatal("expected error when no ports set")
	}
}
