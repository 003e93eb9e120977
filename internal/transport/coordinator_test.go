package transport

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/nerrad567/openvibe-core/internal/device"
)

type fakeChannel struct {
	kind       device.TransportMode
	generation uint64
	target     string

	live       bool
	bringUpErr error
	bringUps   int
	teardowns  int
	sent       [][]byte
}

func (f *fakeChannel) Kind() device.TransportMode { return f.kind }

func (f *fakeChannel) BringUp(context.Context) error {
	f.bringUps++
	if f.bringUpErr != nil {
		return f.bringUpErr
	}
	// Local servers are live as soon as they listen; remote clients wait
	// for a connected event.
	f.live = f.kind != device.ModeRemote
	return nil
}

func (f *fakeChannel) TearDown() error {
	f.teardowns++
	f.live = false
	return nil
}

func (f *fakeChannel) Send(p []byte) error {
	if !f.live {
		return ErrChannelDown
	}
	f.sent = append(f.sent, p)
	return nil
}

func (f *fakeChannel) Live() bool { return f.live }

type harness struct {
	c          *Coordinator
	state      *device.State
	inbox      *Inbox
	peripheral *fakeChannel
	locals     []*fakeChannel
	remotes    []*fakeChannel
	now        time.Time
}

func newHarness(t *testing.T, maxRetries int) *harness {
	t.Helper()
	h := &harness{
		state:      device.NewState(),
		inbox:      NewInbox(32),
		peripheral: &fakeChannel{kind: device.ModePeripheral},
		now:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.c = NewCoordinator(Config{
		State:      h.state,
		Inbox:      h.inbox,
		Peripheral: h.peripheral,
		NewLocal: func(gen uint64) Channel {
			ch := &fakeChannel{kind: device.ModeLocalNetwork, generation: gen}
			h.locals = append(h.locals, ch)
			return ch
		},
		NewRemote: func(target string, gen uint64) Channel {
			ch := &fakeChannel{kind: device.ModeRemote, generation: gen, target: target}
			h.remotes = append(h.remotes, ch)
			return ch
		},
		DeviceID:      "ddccbbaa",
		RetryInterval: 10 * time.Second,
		MaxRetries:    maxRetries,
		Clock:         func() time.Time { return h.now },
	})
	if err := h.c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return h
}

func (h *harness) lastRemote() *fakeChannel {
	if len(h.remotes) == 0 {
		return nil
	}
	return h.remotes[len(h.remotes)-1]
}

func (h *harness) post(t *testing.T, ev Event) {
	t.Helper()
	if err := h.inbox.Post(ev); err != nil {
		t.Fatalf("Post() error = %v", err)
	}
}

func TestSwitchTransport_SameModeIsNoop(t *testing.T) {
	h := newHarness(t, 5)
	h.c.OnNetworkAttached()
	if err := h.c.SwitchTransport(device.ModeLocalNetwork, ""); err != nil {
		t.Fatalf("SwitchTransport() error = %v", err)
	}
	if len(h.locals) != 1 {
		t.Fatalf("local channels created = %d, want 1", len(h.locals))
	}

	announced := 0
	h.c.SetAnnouncer(func(device.TransportMode, string) { announced++ })

	if err := h.c.SwitchTransport(device.ModeLocalNetwork, ""); err != nil {
		t.Fatalf("SwitchTransport() repeat error = %v", err)
	}

	if len(h.locals) != 1 {
		t.Errorf("local channels created = %d, want 1", len(h.locals))
	}
	if h.locals[0].teardowns != 0 || h.locals[0].bringUps != 1 {
		t.Errorf("local channel bringUps=%d teardowns=%d, want 1 and 0",
			h.locals[0].bringUps, h.locals[0].teardowns)
	}
	if announced != 0 {
		t.Errorf("announced %d times on no-op switch", announced)
	}
}

func TestSwitchTransport_RemoteWithEmptyEndpoint(t *testing.T) {
	h := newHarness(t, 5)
	h.c.OnNetworkAttached()

	if err := h.c.SwitchTransport(device.ModeRemote, ""); err != nil {
		t.Fatalf("SwitchTransport() error = %v", err)
	}
	h.c.Tick(h.now.Add(time.Minute))

	if len(h.remotes) != 0 {
		t.Errorf("remote channels created = %d, want 0", len(h.remotes))
	}
	if h.state.Transport != device.ModeRemote {
		t.Errorf("Transport = %v, want REMOTE", h.state.Transport)
	}
	if h.c.NetworkLive() {
		t.Error("NetworkLive() = true, want false")
	}
}

func TestSwitchTransport_MalformedEndpointNotRetried(t *testing.T) {
	h := newHarness(t, 5)
	h.c.OnNetworkAttached()

	err := h.c.SwitchTransport(device.ModeRemote, "relay.example")
	if !errors.Is(err, ErrMalformedEndpoint) {
		t.Fatalf("SwitchTransport() error = %v, want ErrMalformedEndpoint", err)
	}

	for i := 1; i <= 3; i++ {
		h.c.Tick(h.now.Add(time.Duration(i) * time.Minute))
	}
	if len(h.remotes) != 0 {
		t.Errorf("remote channels created = %d, want 0", len(h.remotes))
	}
}

func TestRemoteRetry_NoAttemptAfterMaxRetriesFailedConnects(t *testing.T) {
	const maxRetries = 3
	h := newHarness(t, maxRetries)
	h.c.OnNetworkAttached()

	if err := h.c.SwitchTransport(device.ModeRemote, "ws://relay.example:9000/base"); err != nil {
		t.Fatalf("SwitchTransport() error = %v", err)
	}
	if len(h.remotes) != 1 || h.c.RetryCount() != 1 {
		t.Fatalf("after switch: remotes=%d RetryCount()=%d, want 1 and 1", len(h.remotes), h.c.RetryCount())
	}
	if want := "ws://relay.example:9000/base/register?id=ddccbbaa"; h.lastRemote().target != want {
		t.Errorf("dial target = %q, want %q", h.lastRemote().target, want)
	}

	// Every connect fails, the first one included.
	now := h.now
	for i := 0; i < maxRetries; i++ {
		h.post(t, Event{Source: SourceRemote, Type: EventConnectFailed, Generation: h.lastRemote().generation})

		// Before the interval elapses nothing happens.
		h.c.Tick(now.Add(time.Second))
		now = now.Add(10 * time.Second)
		h.c.Tick(now)
	}

	if got := len(h.remotes); got != maxRetries {
		t.Fatalf("connect attempts = %d, want %d", got, maxRetries)
	}
	if !h.c.RetriesFrozen() {
		t.Fatalf("RetriesFrozen() = false after %d failed connects", maxRetries)
	}

	for i := 0; i < 5; i++ {
		now = now.Add(time.Minute)
		h.c.Tick(now)
	}
	if got := len(h.remotes); got != maxRetries {
		t.Errorf("connect attempts after freeze = %d, want %d", got, maxRetries)
	}

	// Re-issuing the switch re-arms the policy with a fresh first attempt.
	if err := h.c.SwitchTransport(device.ModeRemote, "ws://relay.example:9000/base"); err != nil {
		t.Fatalf("SwitchTransport() re-arm error = %v", err)
	}
	if h.c.RetriesFrozen() || h.c.RetryCount() != 1 {
		t.Errorf("retry state after re-arm: frozen=%v count=%d, want false and 1", h.c.RetriesFrozen(), h.c.RetryCount())
	}
	if got := len(h.remotes); got != maxRetries+1 {
		t.Errorf("connect attempts after re-arm = %d, want %d", got, maxRetries+1)
	}
}

func TestRemoteRetry_DisconnectSurvivesFullInbox(t *testing.T) {
	h := newHarness(t, 5)
	h.c.OnNetworkAttached()
	_ = h.c.SwitchTransport(device.ModeRemote, "ws://relay.example")

	remote := h.lastRemote()
	remote.live = true
	h.post(t, Event{Source: SourceRemote, Type: EventConnected, Generation: remote.generation})
	h.c.Tick(h.now)
	if !h.c.NetworkLive() {
		t.Fatal("NetworkLive() = false after connect")
	}

	// A burst of commands fills the message queue.
	for {
		err := h.inbox.Post(Event{Source: SourcePeripheral, Type: EventMessage, Payload: []byte(`{}`)})
		if errors.Is(err, ErrInboxFull) {
			break
		}
	}

	remote.live = false
	if err := h.inbox.Post(Event{Source: SourceRemote, Type: EventDisconnected, Generation: remote.generation}); err != nil {
		t.Fatalf("Post(disconnected) on full inbox error = %v", err)
	}

	h.c.Tick(h.now.Add(time.Second))
	h.c.Tick(h.now.Add(20 * time.Second))

	if got := len(h.remotes); got != 2 {
		t.Fatalf("connect attempts = %d, want 2 (reconnect after drop)", got)
	}
	if h.c.RetriesFrozen() {
		t.Error("RetriesFrozen() = true after a single drop")
	}
}

func TestRemoteRetry_SuccessResetsCount(t *testing.T) {
	h := newHarness(t, 5)
	h.c.OnNetworkAttached()
	_ = h.c.SwitchTransport(device.ModeRemote, "ws://relay.example")

	h.post(t, Event{Source: SourceRemote, Type: EventConnectFailed, Generation: h.lastRemote().generation})
	h.c.Tick(h.now.Add(10 * time.Second))
	if h.c.RetryCount() != 2 {
		t.Fatalf("RetryCount() = %d, want 2", h.c.RetryCount())
	}

	linkUps := 0
	h.c.SetOnLinkUp(func(device.TransportMode) { linkUps++ })

	remote := h.lastRemote()
	remote.live = true
	h.post(t, Event{Source: SourceRemote, Type: EventConnected, Generation: remote.generation})
	h.c.Tick(h.now.Add(11 * time.Second))

	if h.c.RetryCount() != 0 {
		t.Errorf("RetryCount() = %d after connect, want 0", h.c.RetryCount())
	}
	if linkUps != 1 {
		t.Errorf("link-up callbacks = %d, want 1", linkUps)
	}
	if !h.c.NetworkLive() {
		t.Error("NetworkLive() = false after connect")
	}
}

func TestSwitchAwayFromRemote_DiscardsInFlightConnect(t *testing.T) {
	h := newHarness(t, 5)
	h.c.OnNetworkAttached()
	_ = h.c.SwitchTransport(device.ModeRemote, "ws://relay.example")
	stale := h.lastRemote()

	h.post(t, Event{Source: SourceRemote, Type: EventConnectFailed, Generation: stale.generation})
	h.c.Tick(h.now)

	if err := h.c.SwitchTransport(device.ModePeripheral, ""); err != nil {
		t.Fatalf("SwitchTransport() error = %v", err)
	}
	if stale.teardowns == 0 {
		t.Error("remote channel was not torn down on switch")
	}
	if h.state.RemoteEndpoint != "" {
		t.Errorf("RemoteEndpoint = %q after leaving REMOTE", h.state.RemoteEndpoint)
	}

	linkUps := 0
	h.c.SetOnLinkUp(func(device.TransportMode) { linkUps++ })
	h.post(t, Event{Source: SourceRemote, Type: EventConnected, Generation: stale.generation})
	h.post(t, Event{Source: SourceRemote, Type: EventMessage, Generation: stale.generation, Payload: []byte(`{}`)})
	h.c.Tick(h.now.Add(time.Minute))

	if linkUps != 0 {
		t.Error("stale connect event was not discarded")
	}
	if cmds := h.c.TakeCommands(); len(cmds) != 0 {
		t.Errorf("stale message delivered: %q", cmds)
	}
	if len(h.remotes) != 1 {
		t.Errorf("remote channels = %d, want 1 (no retry after switch)", len(h.remotes))
	}
}

func TestNetworkAttach_LocalChannelLiveWithinOneTick(t *testing.T) {
	h := newHarness(t, 5)
	h.c.Restore(device.ModeLocalNetwork, "")

	h.c.Tick(h.now)
	if h.c.NetworkLive() {
		t.Fatal("NetworkLive() = true before attach")
	}

	h.c.OnNetworkAttached()
	h.c.Tick(h.now.Add(20 * time.Millisecond))

	if !h.c.NetworkLive() {
		t.Fatal("NetworkLive() = false one tick after attach")
	}

	h.c.OnNetworkDetached()
	if h.c.NetworkLive() {
		t.Error("NetworkLive() = true after detach")
	}
	if h.locals[0].teardowns != 1 {
		t.Errorf("local teardowns = %d, want 1", h.locals[0].teardowns)
	}
}

func TestSwitchTransport_AnnouncesOnCurrentChannel(t *testing.T) {
	h := newHarness(t, 5)
	h.c.OnNetworkAttached()
	_ = h.c.SwitchTransport(device.ModeLocalNetwork, "")
	local := h.locals[0]

	var gotTarget device.TransportMode
	var gotEndpoint string
	var modeAtAnnounce device.TransportMode
	h.c.SetAnnouncer(func(target device.TransportMode, endpoint string) {
		gotTarget, gotEndpoint = target, endpoint
		modeAtAnnounce = h.state.Transport
		h.c.Send([]byte("confirm"))
	})

	if err := h.c.SwitchTransport(device.ModeRemote, "ws://relay.example"); err != nil {
		t.Fatalf("SwitchTransport() error = %v", err)
	}

	if gotTarget != device.ModeRemote || gotEndpoint != "ws://relay.example" {
		t.Errorf("announce(%v, %q), want REMOTE and endpoint", gotTarget, gotEndpoint)
	}
	if modeAtAnnounce != device.ModeLocalNetwork {
		t.Errorf("mode at announce = %v, want WIFI", modeAtAnnounce)
	}
	if len(local.sent) != 1 || string(local.sent[0]) != "confirm" {
		t.Errorf("local channel sent %q, want confirmation", local.sent)
	}
	if local.live {
		t.Error("local channel still live after switch")
	}
}

func TestSend_NothingLive(t *testing.T) {
	c := NewCoordinator(Config{})
	c.Send([]byte(`{"intensity":0}`))
}

func TestTick_PeripheralEventsAndMessages(t *testing.T) {
	h := newHarness(t, 5)

	h.post(t, Event{Source: SourcePeripheral, Type: EventConnected})
	h.post(t, Event{Source: SourcePeripheral, Type: EventMessage, Payload: []byte(`{"requestType":"STATUS"}`)})
	h.post(t, Event{Source: SourceExternal, Type: EventMessage, Payload: []byte(`{"requestType":"INTENSITY","intensity":5}`)})
	h.c.Tick(h.now)

	if !h.state.PeripheralConnected {
		t.Error("PeripheralConnected = false after connect event")
	}
	if cmds := h.c.TakeCommands(); len(cmds) != 2 {
		t.Errorf("TakeCommands() = %d commands, want 2", len(cmds))
	}
	if cmds := h.c.TakeCommands(); len(cmds) != 0 {
		t.Errorf("second TakeCommands() = %d commands, want 0", len(cmds))
	}

	h.post(t, Event{Source: SourcePeripheral, Type: EventDisconnected})
	h.c.Tick(h.now)
	if h.state.PeripheralConnected {
		t.Error("PeripheralConnected = true after disconnect event")
	}
}

func TestInbox_DropsWhenFull(t *testing.T) {
	in := NewInbox(2)
	for i := 0; i < 2; i++ {
		if err := in.Post(Event{Type: EventMessage}); err != nil {
			t.Fatalf("Post() #%d error = %v", i, err)
		}
	}
	if err := in.Post(Event{Type: EventMessage}); !errors.Is(err, ErrInboxFull) {
		t.Errorf("Post() on full inbox error = %v, want ErrInboxFull", err)
	}
	if in.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", in.Dropped())
	}

	n := 0
	in.Drain(func(Event) { n++ })
	if n != 2 || in.Len() != 0 {
		t.Errorf("Drain() handled %d, Len() = %d", n, in.Len())
	}
}

func TestInbox_LifecycleEventsNeverDropped(t *testing.T) {
	in := NewInbox(1)
	if err := in.Post(Event{Type: EventMessage}); err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	for _, typ := range []EventType{EventConnected, EventDisconnected, EventConnectFailed} {
		if err := in.Post(Event{Source: SourceRemote, Type: typ}); err != nil {
			t.Errorf("Post(%v) on full inbox error = %v", typ, err)
		}
	}
	if in.Dropped() != 0 || in.Len() != 4 {
		t.Errorf("Dropped() = %d, Len() = %d, want 0 and 4", in.Dropped(), in.Len())
	}

	var got []EventType
	in.Drain(func(ev Event) { got = append(got, ev.Type) })
	want := []EventType{EventConnected, EventDisconnected, EventConnectFailed, EventMessage}
	if !slices.Equal(got, want) {
		t.Errorf("Drain() order = %v, want %v", got, want)
	}
}
