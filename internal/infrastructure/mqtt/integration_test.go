//go:build integration

package mqtt

import (
	"testing"
	"time"
)

// These tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func waitConnected(t *testing.T, c *Client) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !c.IsConnected() {
		if time.Now().After(deadline) {
			t.Fatal("client did not connect within 5s")
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestIntegration_CommandRoundTrip(t *testing.T) {
	cfg := testConfig()

	device, err := Connect(cfg, "int-device")
	if err != nil {
		t.Fatalf("Connect() = %v", err)
	}
	defer device.Close()

	received := make(chan string, 1)
	if err := device.SubscribeCommands(func(_ string, payload []byte) error {
		received <- string(payload)
		return nil
	}); err != nil {
		t.Fatalf("SubscribeCommands() = %v", err)
	}
	waitConnected(t, device)

	cfg.Broker.ClientID = "int-controller"
	controller, err := Connect(cfg, "int-controller")
	if err != nil {
		t.Fatalf("Connect() = %v", err)
	}
	defer controller.Close()
	waitConnected(t, controller)

	// Give the restored subscription a moment to reach the broker.
	time.Sleep(200 * time.Millisecond)

	if err := controller.Publish(device.Topics().Command(), []byte(`{"requestType":"STATUS"}`), 1, false); err != nil {
		t.Fatalf("Publish() = %v", err)
	}

	select {
	case got := <-received:
		if got != `{"requestType":"STATUS"}` {
			t.Errorf("received %q", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("command not delivered")
	}
}

func TestIntegration_RetainedStatus(t *testing.T) {
	cfg := testConfig()

	device, err := Connect(cfg, "int-status")
	if err != nil {
		t.Fatalf("Connect() = %v", err)
	}
	defer device.Close()
	waitConnected(t, device)

	if err := device.PublishStatus([]byte(`{"intensity":42}`)); err != nil {
		t.Fatalf("PublishStatus() = %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	cfg.Broker.ClientID = "int-observer"
	observer, err := Connect(cfg, "int-observer")
	if err != nil {
		t.Fatalf("Connect() = %v", err)
	}
	defer observer.Close()

	got := make(chan string, 1)
	if err := observer.Subscribe(device.Topics().Status(), 1, func(_ string, payload []byte) error {
		got <- string(payload)
		return nil
	}); err != nil {
		t.Fatalf("Subscribe() = %v", err)
	}

	select {
	case payload := <-got:
		if payload != `{"intensity":42}` {
			t.Errorf("retained payload = %q", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("retained status not received")
	}
}
