package mqtt

import "fmt"

// Subscribe registers handler for topic, replacing any earlier handler.
//
// The subscription survives reconnects and may be made while offline; it is
// sent to the broker now only when a session is up.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case handler == nil:
		return fmt.Errorf("%w: nil handler for %s", ErrSubscribeFailed, topic)
	}

	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	if !c.IsConnected() {
		return nil
	}

	token := c.client.Subscribe(topic, qos, c.wrapHandler(handler))
	switch {
	case !token.WaitTimeout(defaultPublishTimeout):
		return fmt.Errorf("%w: %s: no suback within %v", ErrSubscribeFailed, topic, defaultPublishTimeout)
	case token.Error() != nil:
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, token.Error())
	}
	return nil
}

// SubscribeCommands routes this device's command topic to handler.
func (c *Client) SubscribeCommands(handler MessageHandler) error {
	return c.Subscribe(c.topics.Command(), c.qos, handler)
}

// SubscriptionCount returns how many topics are remembered.
func (c *Client) SubscriptionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// HasSubscription reports whether topic is remembered.
func (c *Client) HasSubscription(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[topic]
	return ok
}
