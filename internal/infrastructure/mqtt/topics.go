package mqtt

import "fmt"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "usersvc"

// Topics provides builders for the service's MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.NewTopics("usersvc")
//	topics.Audit("login") // "usersvc/audit/login"
type Topics struct {
	prefix string
}

// NewTopics returns topic builders rooted at prefix.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the root of every topic.
func (t Topics) Prefix() string {
	return t.prefix
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: usersvc/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix)
}

// Audit returns the topic for one kind of account audit event.
//
// Example: usersvc/audit/role_change
func (t Topics) Audit(action string) string {
	return fmt.Sprintf("%s/audit/%s", t.prefix, action)
}

// AllAudit returns a wildcard matching every audit event.
//
// Example: usersvc/audit/+
func (t Topics) AllAudit() string {
	return fmt.Sprintf("%s/audit/+", t.prefix)
}
