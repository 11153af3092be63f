// Package influxdb provides InfluxDB connectivity for auth telemetry.
//
// It wraps the official influxdb-client-go v2 library with a single
// auth_outcomes write path, batched and retried a bounded number of times.
//
// # Purpose
//
// Every authentication decision (login attempts and bearer token checks)
// is written as an auth_outcomes point tagged with its outcome, HTTP status
// and stage. Dashboards use it to spot credential stuffing or a surge of
// blocked accounts.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB, log)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteAuthOutcome(influxdb.AuthOutcome{Outcome: influxdb.OutcomeSuccess, Status: 200, Stage: "login"})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Writes are non-blocking. Rejected batches are logged through the service
// logger and counted by WriteErrors. Connection and health check errors are
// returned directly.
package influxdb
