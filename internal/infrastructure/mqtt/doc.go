// Package mqtt provides the event bus publisher for the user service.
//
// This package manages:
//   - Connection to an MQTT broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// Account audit events (registrations, logins, role changes, blocks) are
// published as JSON to <topic_prefix>/audit/<action>. Publishing is
// best-effort: the audit trail in the database is authoritative.
//
// # Security Considerations
//
//   - Enable TLS for brokers outside localhost (cfg.Broker.TLS=true)
//   - Audit payloads never carry password hashes or tokens
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishAuditEvent("login", payload)
package mqtt
