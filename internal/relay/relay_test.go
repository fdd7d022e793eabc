package relay

import (
	"net"
	"testing"
	"time"
)

func TestForwarderSingleDirectionRoundTrip(t *testing.T) {
	// Upstream "server" that echoes whatever it receives back to the
	// sender, standing in for the opposite-family peer.
	upstream, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatal(err)
	}
	defer upstream.Close()
	go func() {
		buf := make([]byte, 2048)
		for {
			n, from, err := upstream.ReadFromUDP(buf)
			if err != nil {
				return
			}
			_, _ = upstream.WriteToUDP(buf[:n], from)
		}
	}()

	listener, err := net.ListenUDP("udp6", &net.UDPAddr{IP: net.ParseIP("::1")})
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	handler := Handler{ReserveRate: 1, NewRate: 0}
	fwd := NewForwarder("test", listener, true, upstream.LocalAddr().(*net.UDPAddr), "udp4", handler, nil)

	stop := make(chan struct{})
	go fwd.Run(stop)
	defer close(stop)

	client, err := net.DialUDP("udp6", nil, listener.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	if _, err := client.Write([]byte("hello")); err != nil {
		t.Fatal(err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 2048)
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("expected echoed reply: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("got %q, want %q", buf[:n], "hello")
	}
}

func TestDistinctSourcesGetDistinctSessions(t *testing.T) {
	upstream, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatal(err)
	}
	defer upstream.Close()

	listener, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	fwd := NewForwarder("test", listener, false, upstream.LocalAddr().(*net.UDPAddr), "udp4", Handler{ReserveRate: 1}, nil)

	a, err := net.ResolveUDPAddr("udp4", "127.0.0.1:40001")
	if err != nil {
		t.Fatal(err)
	}
	b, err := net.ResolveUDPAddr("udp4", "127.0.0.1:40002")
	if err != nil {
		t.Fatal(err)
	}

	stop := make(chan struct{})
	defer close(stop)
	sessA := fwd.getOrCreateSession(sessionKey(a, false), a, stop)
	sessB := fwd.getOrCreateSession(sessionKey(b, false), b, stop)
	if sessA == nil || sessB == nil {
		t.Fatal("expected both sessions to be created")
	}
	if sessA.Key == sessB.Key {
		t.Fatal("expected distinct session keys for distinct sources")
	}
}
