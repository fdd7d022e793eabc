package tcpflow

import (
	"net"
	"testing"
	"time"

	"github.com/nimblewing/flowgen/internal/config"
	"github.com/nimblewing/flowgen/internal/logging"
)

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestTCPClientServerLoopback(t *testing.T) {
	port := freePort(t)
	logger := logging.New()

	serverCfg, err := config.NewFlowConfig(config.FlowConfig{
		Transport: config.TransportTCP, Role: config.RoleServer,
		BindAddr: "127.0.0.1", Port: port, Family: config.FamilyV4,
		PacketSize: 1024, IntervalSeconds: 1, OneShot: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	server := NewEngine(serverCfg, logger)

	serverStop := make(chan struct{})
	serverDone := make(chan error, 1)
	go func() { serverDone <- server.RunServer(serverStop) }()
	time.Sleep(50 * time.Millisecond)

	clientCfg, err := config.NewFlowConfig(config.FlowConfig{
		Transport: config.TransportTCP, Role: config.RoleClient,
		PeerHost: "127.0.0.1", Port: port, Family: config.FamilyV4,
		PacketSize: 1024, IntervalSeconds: 1, TotalSize: 4096,
	})
	if err != nil {
		t.Fatal(err)
	}
	client := NewEngine(clientCfg, logger)
	if err := client.RunClient(make(chan struct{})); err != nil {
		t.Fatalf("RunClient: %v", err)
	}

	select {
	case err := <-serverDone:
		if err != nil {
			t.Fatalf("RunServer: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not finish in time")
	}
}
