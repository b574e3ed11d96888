package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Subscribe registers a handler for a topic and tracks it so the
// subscription is restored after a reconnect.
//
// Wildcards are allowed ("codecbridge/command/tieline/+"). The handler runs
// on a paho goroutine; panics are recovered and logged by wrapHandler.
//
// Parameters:
//   - topic: Topic or pattern to subscribe to
//   - qos: Maximum QoS for received messages (0, 1, or 2)
//   - handler: Callback invoked for each message
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected, or wrapped ErrSubscribeFailed
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.track(subscription{topic: topic, qos: qos, handler: handler})

	if err := waitToken(c.client.Subscribe(topic, qos, c.wrapHandler(handler)), ErrSubscribeFailed); err != nil {
		c.untrack(topic)
		return err
	}
	return nil
}

// Unsubscribe stops delivery for a topic previously passed to Subscribe.
//
// The topic is dropped from the restore list before the broker is asked,
// so a subscription released while disconnected is not brought back by
// the next reconnect. Messages already in flight may still arrive.
//
// Returns:
//   - error: ErrInvalidTopic, ErrNotConnected, or wrapped ErrUnsubscribeFailed
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}

	c.untrack(topic)

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return waitToken(c.client.Unsubscribe(topic), ErrUnsubscribeFailed)
}

// HasSubscription reports whether the exact topic string is tracked.
// Patterns are compared literally, not matched.
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, ok := c.subscriptions[topic]
	return ok
}

func (c *Client) track(sub subscription) {
	c.subMu.Lock()
	c.subscriptions[sub.topic] = sub
	c.subMu.Unlock()
}

func (c *Client) untrack(topic string) {
	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()
}

// waitToken waits for a broker round trip and wraps any failure in sentinel.
func waitToken(token pahomqtt.Token, sentinel error) error {
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", sentinel, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}
