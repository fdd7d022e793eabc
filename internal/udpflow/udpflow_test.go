package udpflow

import (
	"net"
	"testing"
	"time"

	"github.com/nimblewing/flowgen/internal/config"
	"github.com/nimblewing/flowgen/internal/logging"
)

func freeUDPPort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).Port
}

func TestUDPClientServerLoopbackNoLoss(t *testing.T) {
	port := freeUDPPort(t)
	logger := logging.New()

	serverCfg, err := config.NewFlowConfig(config.FlowConfig{
		Transport: config.TransportUDP, Role: config.RoleServer,
		BindAddr: "127.0.0.1", Port: port, Family: config.FamilyV4,
		PacketSize: 512, IntervalSeconds: 1, OneShot: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	server := &Server{Config: serverCfg, Logger: logger}

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- server.Run(stop) }()
	time.Sleep(50 * time.Millisecond)

	clientCfg, err := config.NewFlowConfig(config.FlowConfig{
		Transport: config.TransportUDP, Role: config.RoleClient,
		PeerHost: "127.0.0.1", Port: port, Family: config.FamilyV4,
		PacketSize: 512, IntervalSeconds: 1, TotalSize: 5120,
	})
	if err != nil {
		t.Fatal(err)
	}
	client := &Client{Config: clientCfg, Logger: logger}
	if err := client.Run(make(chan struct{})); err != nil {
		t.Fatalf("client.Run: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("server.Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not finish in time")
	}
}
