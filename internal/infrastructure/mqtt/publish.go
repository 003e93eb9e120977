package mqtt

import (
	"fmt"
)

// maxPayloadSize caps a single message. Status snapshots are a few hundred bytes.
const maxPayloadSize = 64 << 10

func validatePublish(topic string, payload []byte, qos byte) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	return nil
}

// Publish sends a message and waits for the broker acknowledgment.
//
// Do not call it from the device loop; use PublishAsync there.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := validatePublish(topic, payload, qos); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// PublishAsync hands a message to paho and returns without waiting.
// Delivery failures are logged. It returns ErrNotConnected while offline
// so callers can drop the message instead of queueing it.
func (c *Client) PublishAsync(topic string, payload []byte, retained bool) error {
	if err := validatePublish(topic, payload, c.qos); err != nil {
		return err
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, c.qos, retained, payload)
	go c.logTokenError(token, "mqtt publish failed", topic)
	return nil
}

// PublishStatus publishes a retained status snapshot for this device.
func (c *Client) PublishStatus(payload []byte) error {
	return c.PublishAsync(c.topics.Status(), payload, true)
}
