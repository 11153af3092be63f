package mqtt

import (
	"fmt"
	"strings"
)

// maxPayloadSize caps a single audit event (1MB).
const maxPayloadSize = 1 << 20

// PublishAuditEvent sends one encoded audit entry to <prefix>/audit/<action>
// at the configured QoS. Audit events are never retained: a subscriber that
// joins later reads history from the API, not from the broker.
//
// action becomes a single topic level, so it must be non-empty and free of
// '/', '+' and '#'.
func (c *Client) PublishAuditEvent(action string, payload []byte) error {
	if action == "" || strings.ContainsAny(action, "/+#") {
		return fmt.Errorf("%w: audit action %q", ErrInvalidTopic, action)
	}
	if c.cfg.QoS < 0 || c.cfg.QoS > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	topic := c.topics.Audit(action)
	token := c.client.Publish(topic, byte(c.cfg.QoS), false, payload) //nolint:gosec // G115: range checked above
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrPublishFailed, topic, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}

	return nil
}
