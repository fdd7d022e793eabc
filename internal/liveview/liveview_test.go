package liveview

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nimblewing/flowgen/internal/stats"
)

func TestBroadcasterPushesRowToClient(t *testing.T) {
	b := NewBroadcaster(nil)
	if err := b.Start("127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	url := fmt.Sprintf("ws://%s/", b.Addr)
	var conn *websocket.Conn
	var err error
	for i := 0; i < 20; i++ {
		conn, _, err = websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give the server goroutine time to register the client before pushing.
	time.Sleep(20 * time.Millisecond)
	b.Push(stats.IntervalRow{Bytes: 12345, Packets: 9})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var row stats.IntervalRow
	if err := json.Unmarshal(data, &row); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if row.Bytes != 12345 || row.Packets != 9 {
		t.Fatalf("got %+v", row)
	}
}

func TestBroadcasterPushWithNoClients(t *testing.T) {
	b := NewBroadcaster(nil)
	// Must not panic or block when nothing is connected.
	b.Push(stats.IntervalRow{Bytes: 1})
}
