package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockWSServer upgrades every request and hands the socket to handler.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// echoHandler keeps the socket open, echoing frames, until the peer closes.
func echoHandler(conn *websocket.Conn) {
	defer conn.Close()
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := conn.WriteMessage(mt, data); err != nil {
			return
		}
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BackoffBase = 20 * time.Millisecond
	cfg.BackoffMax = 100 * time.Millisecond
	cfg.PingInterval = 20 * time.Millisecond
	return cfg
}

func waitForEvent(t *testing.T, ch <-chan Event, eventType string) Event {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q event", eventType)
		}
	}
}

func TestBackoffDelay(t *testing.T) {
	cfg := Config{BackoffBase: time.Second, BackoffMax: 30 * time.Second}

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second, // 32s capped
		30 * time.Second,
	}

	for attempt, d := range want {
		if got := cfg.BackoffDelay(attempt); got != d {
			t.Errorf("BackoffDelay(%d) = %v, want %v", attempt, got, d)
		}
	}
}

func TestConnect_Idempotent(t *testing.T) {
	var upgrades atomic.Int32
	srv := mockWSServer(t, func(conn *websocket.Conn) {
		upgrades.Add(1)
		echoHandler(conn)
	})

	m := New(testConfig(), nil)
	defer m.Close()

	events := make(chan Event, 16)
	m.AddListener(func(ev Event) { events <- ev })

	// Rapid repeated calls while a dial is in flight must not open a second
	// transport.
	for i := 0; i < 5; i++ {
		m.Connect(wsURL(srv))
	}
	waitForEvent(t, events, EventConnected)

	// Nor must calls after the transport is open.
	m.Connect(wsURL(srv))
	time.Sleep(100 * time.Millisecond)

	if n := upgrades.Load(); n != 1 {
		t.Errorf("server saw %d upgrades, want 1", n)
	}
	if state := m.State(); state != StateOpen {
		t.Errorf("State = %q, want %q", state, StateOpen)
	}
}

func TestReceive_DispatchesByFrameType(t *testing.T) {
	srv := mockWSServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"message","content":"hi","username":"alice"}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	m := New(testConfig(), nil)
	defer m.Close()

	events := make(chan Event, 16)
	m.AddListener(func(ev Event) { events <- ev })
	m.Connect(wsURL(srv))

	ev := waitForEvent(t, events, "message")
	var frame struct {
		Content  string `json:"content"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(ev.Data, &frame); err != nil {
		t.Fatalf("decode event data: %v", err)
	}
	if frame.Content != "hi" || frame.Username != "alice" {
		t.Errorf("frame = %+v", frame)
	}
}

func TestAddListener_LateSubscriberSeesConnected(t *testing.T) {
	srv := mockWSServer(t, echoHandler)

	m := New(testConfig(), nil)
	defer m.Close()

	events := make(chan Event, 16)
	m.AddListener(func(ev Event) { events <- ev })
	m.Connect(wsURL(srv))
	waitForEvent(t, events, EventConnected)

	// A listener added after the transport opened still learns the state.
	late := make(chan Event, 1)
	m.AddListener(func(ev Event) { late <- ev })

	select {
	case ev := <-late:
		if ev.Type != EventConnected {
			t.Errorf("late listener got %q, want %q", ev.Type, EventConnected)
		}
	case <-time.After(time.Second):
		t.Fatal("late listener never notified")
	}
}

func TestSendMessage_DropsWhenNotConnected(t *testing.T) {
	m := New(testConfig(), nil)
	defer m.Close()

	if m.SendMessage(map[string]string{"type": "ping"}) {
		t.Error("SendMessage = true with no transport, want false")
	}
}

func TestSendMessage_RoundTrip(t *testing.T) {
	srv := mockWSServer(t, echoHandler)

	m := New(testConfig(), nil)
	defer m.Close()

	events := make(chan Event, 16)
	m.AddListener(func(ev Event) { events <- ev })
	m.Connect(wsURL(srv))
	waitForEvent(t, events, EventConnected)

	if !m.SendMessage(map[string]string{"type": "message", "content": "hi"}) {
		t.Fatal("SendMessage = false on open transport")
	}

	// The echo comes back as a typed event.
	waitForEvent(t, events, "message")
}

func TestReconnect_AfterAbnormalClose(t *testing.T) {
	var upgrades atomic.Int32
	srv := mockWSServer(t, func(conn *websocket.Conn) {
		if upgrades.Add(1) == 1 {
			// Kill the first transport without a close handshake.
			conn.Close()
			return
		}
		echoHandler(conn)
	})

	m := New(testConfig(), nil)
	defer m.Close()

	events := make(chan Event, 32)
	m.AddListener(func(ev Event) { events <- ev })
	m.Connect(wsURL(srv))

	waitForEvent(t, events, EventConnected)
	waitForEvent(t, events, EventDisconnected)
	waitForEvent(t, events, EventConnected)

	if n := upgrades.Load(); n < 2 {
		t.Errorf("server saw %d upgrades, want at least 2", n)
	}
	if state := m.State(); state != StateOpen {
		t.Errorf("State = %q, want %q", state, StateOpen)
	}
}

func TestDisconnect_CancelsReconnect(t *testing.T) {
	m := New(testConfig(), nil)

	var errs atomic.Int32
	m.AddListener(func(ev Event) {
		if ev.Type == EventError {
			errs.Add(1)
		}
	})

	// Nothing listens here; the dial fails and a retry is scheduled.
	m.Connect("ws://127.0.0.1:1")
	deadline := time.Now().Add(3 * time.Second)
	for errs.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("dial never failed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	m.Disconnect()

	// Let any dial already in flight settle, then watch for new attempts
	// across several backoff periods.
	time.Sleep(100 * time.Millisecond)
	seen := errs.Load()
	time.Sleep(200 * time.Millisecond)
	if got := errs.Load(); got != seen {
		t.Errorf("error events after Disconnect: %d -> %d", seen, got)
	}
	if state := m.State(); state != StateClosed {
		t.Errorf("State = %q, want %q", state, StateClosed)
	}

	// Terminal: a later Connect is refused.
	m.Connect("ws://127.0.0.1:1")
	time.Sleep(100 * time.Millisecond)
	if got := errs.Load(); got != seen {
		t.Errorf("dial attempted after Disconnect")
	}
}

func TestStartPing(t *testing.T) {
	pings := make(chan []byte, 8)
	srv := mockWSServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			pings <- data
		}
	})

	m := New(testConfig(), nil)
	defer m.Close()

	events := make(chan Event, 16)
	m.AddListener(func(ev Event) { events <- ev })
	m.Connect(wsURL(srv))
	waitForEvent(t, events, EventConnected)

	m.StartPing()

	select {
	case data := <-pings:
		var frame struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("decode ping frame %q: %v", data, err)
		}
		if frame.Type != "ping" {
			t.Errorf("frame type = %q, want ping", frame.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no ping frame within two intervals")
	}
}
