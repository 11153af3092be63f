package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// measurementAuthOutcomes holds one point per authentication decision.
const measurementAuthOutcomes = "auth_outcomes"

// Outcome tags for auth_outcomes points.
const (
	OutcomeSuccess       = "success"
	OutcomeTokenRequired = "token_required"
	OutcomeInvalidToken  = "invalid_token"
	OutcomeUnknownUser   = "unknown_user"
	OutcomeBlocked       = "blocked"
	OutcomeBadPassword   = "invalid_credentials"
	OutcomeError         = "error"
)

// AuthOutcome describes a single authentication decision.
type AuthOutcome struct {
	Outcome string        // one of the Outcome* constants
	Status  int           // HTTP status returned to the caller
	Stage   string        // "login" or "request"
	Latency time.Duration // time spent deciding
	At      time.Time     // zero means now
}

// WriteAuthOutcome records an authentication decision.
//
// The write is non-blocking; points are batched and sent asynchronously.
// Nothing is written when the client is not connected.
//
// Example:
//
//	client.WriteAuthOutcome(influxdb.AuthOutcome{
//	    Outcome: influxdb.OutcomeBlocked,
//	    Status:  403,
//	    Stage:   "request",
//	})
func (c *Client) WriteAuthOutcome(o AuthOutcome) {
	if c == nil || !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newAuthOutcomePoint(o))
}

// newAuthOutcomePoint builds the auth_outcomes point. Tags stay low
// cardinality: no account ids or emails.
func newAuthOutcomePoint(o AuthOutcome) *write.Point {
	at := o.At
	if at.IsZero() {
		at = time.Now()
	}

	return write.NewPoint(
		measurementAuthOutcomes,
		map[string]string{
			"outcome": o.Outcome,
			"status":  strconv.Itoa(o.Status),
			"stage":   o.Stage,
		},
		map[string]interface{}{
			"count":      1,
			"latency_ms": float64(o.Latency.Microseconds()) / 1000,
		},
		at,
	)
}
