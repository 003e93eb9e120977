package localws

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/openvibe-core/internal/infrastructure/config"
	"github.com/nerrad567/openvibe-core/internal/status"
	"github.com/nerrad567/openvibe-core/internal/transport"
)

func testConfig() config.LocalConfig {
	return config.LocalConfig{
		Host:           "127.0.0.1",
		Port:           0,
		Path:           "/",
		MaxMessageSize: 4096,
		PingInterval:   15,
		PongTimeout:    3,
	}
}

func startServer(t *testing.T, opts Options) *Server {
	t.Helper()
	s := New(opts)
	if err := s.BringUp(testContext(t)); err != nil {
		t.Fatalf("BringUp() error = %v", err)
	}
	t.Cleanup(func() { s.TearDown() }) //nolint:errcheck // Test cleanup
	return s
}

func waitEvent(t *testing.T, inbox *transport.Inbox, want transport.EventType) transport.Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var found *transport.Event
		inbox.Drain(func(ev transport.Event) {
			if found == nil && ev.Type == want {
				e := ev
				found = &e
			}
		})
		if found != nil {
			return *found
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no %s event within deadline", want)
	return transport.Event{}
}

func TestServer_ClientRoundTrip(t *testing.T) {
	inbox := transport.NewInbox(16)
	s := startServer(t, Options{Config: testConfig(), Inbox: inbox, Generation: 7})

	if !s.Live() {
		t.Fatal("Live() = false after BringUp")
	}

	url := "ws://" + s.Addr().String() + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	ev := waitEvent(t, inbox, transport.EventConnected)
	if ev.Source != transport.SourceLocal || ev.Generation != 7 || ev.ClientID == "" {
		t.Errorf("connected event = %+v", ev)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"requestType":"STATUS"}`)); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	msg := waitEvent(t, inbox, transport.EventMessage)
	if string(msg.Payload) != `{"requestType":"STATUS"}` {
		t.Errorf("message payload = %q", msg.Payload)
	}

	if err := s.Send([]byte(`{"intensity":10}`)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	//nolint:errcheck // Test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	if string(data) != `{"intensity":10}` {
		t.Errorf("client received %q", data)
	}
}

func TestServer_TearDown(t *testing.T) {
	inbox := transport.NewInbox(16)
	s := startServer(t, Options{Config: testConfig(), Inbox: inbox})

	if err := s.TearDown(); err != nil {
		t.Fatalf("TearDown() error = %v", err)
	}
	if s.Live() {
		t.Error("Live() = true after TearDown")
	}
	if err := s.Send([]byte("x")); !errors.Is(err, transport.ErrChannelDown) {
		t.Errorf("Send() after TearDown error = %v, want ErrChannelDown", err)
	}
	if err := s.TearDown(); err != nil {
		t.Errorf("second TearDown() error = %v", err)
	}
}

func TestServer_UpgradeAfterTearDownIsRejected(t *testing.T) {
	inbox := transport.NewInbox(16)
	s := startServer(t, Options{Config: testConfig(), Inbox: inbox})
	if err := s.TearDown(); err != nil {
		t.Fatalf("TearDown() error = %v", err)
	}

	// An upgrade already in flight when TearDown ran reaches the handler
	// after the hub has been closed.
	ts := httptest.NewServer(http.HandlerFunc(s.handleWebSocket))
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	//nolint:errcheck // Test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	if err == nil {
		t.Fatal("ReadMessage() error = nil, want closed connection")
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		t.Fatal("connection left open after TearDown")
	}

	if n := s.ClientCount(); n != 0 {
		t.Errorf("ClientCount() = %d, want 0", n)
	}
	var events []transport.Event
	inbox.Drain(func(ev transport.Event) { events = append(events, ev) })
	if len(events) != 0 {
		t.Errorf("events after rejected upgrade = %+v, want none", events)
	}
}

func TestServer_BringUpAfterTearDownAcceptsClients(t *testing.T) {
	inbox := transport.NewInbox(16)
	s := startServer(t, Options{Config: testConfig(), Inbox: inbox})
	if err := s.TearDown(); err != nil {
		t.Fatalf("TearDown() error = %v", err)
	}
	if err := s.BringUp(testContext(t)); err != nil {
		t.Fatalf("BringUp() again error = %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr().String()+"/", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	waitEvent(t, inbox, transport.EventConnected)
	if n := s.ClientCount(); n != 1 {
		t.Errorf("ClientCount() = %d, want 1", n)
	}
}

func TestServer_StatusEndpoint(t *testing.T) {
	snap := status.Snapshot{Intensity: 33, DeviceID: "ddccbbaa", Transport: "WIFI"}
	s := startServer(t, Options{
		Config: testConfig(),
		Inbox:  transport.NewInbox(4),
		Status: func() (status.Snapshot, time.Time, bool) { return snap, time.Now(), true },
	})

	resp, err := http.Get("http://" + s.Addr().String() + "/status")
	if err != nil {
		t.Fatalf("GET /status error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
	var got status.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if got.Intensity != 33 || got.DeviceID != "ddccbbaa" {
		t.Errorf("GET /status = %+v", got)
	}

	health, err := http.Get("http://" + s.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Errorf("GET /healthz = %d", health.StatusCode)
	}
}
