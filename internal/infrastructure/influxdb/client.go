package influxdb

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/kirillfir/user-service/internal/infrastructure/config"
	"github.com/kirillfir/user-service/internal/infrastructure/logging"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	// One point per auth decision: small batches flushed often keep
	// dashboards close to real time without hammering the server.
	defaultBatchSize     = 50
	defaultFlushInterval = 5 // seconds

	// Auth outcomes are disposable. A few retries cover a restarting
	// server; after that the batch is dropped rather than queued.
	maxWriteRetries  = 3
	retryBufferLimit = 10 * defaultBatchSize
)

// Client sends auth_outcomes points to InfluxDB.
//
// Writes are batched and non-blocking. Batch failures are logged through
// the service logger and counted; they never reach the request path.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	logger   *logging.Logger

	connected   atomic.Bool
	writeErrors atomic.Uint64
	done        chan struct{}
}

// Connect pings the server and prepares the auth_outcomes write API.
//
// Returns ErrDisabled when cfg.Enabled is false and ErrConnectionFailed
// when the server does not answer the ping.
func Connect(cfg config.InfluxDBConfig, logger *logging.Logger) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if logger == nil {
		logger = logging.Default()
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	// #nosec G115 -- values validated above to be positive
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(time.Duration(flushInterval)*time.Second/time.Millisecond)).
			SetMaxRetries(maxWriteRetries).
			SetRetryBufferLimit(retryBufferLimit),
	)

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		logger:   logger.With("component", "influxdb", "bucket", cfg.Bucket),
		done:     make(chan struct{}),
	}
	c.connected.Store(true)

	go c.logWriteErrors(c.writeAPI.Errors())

	return c, nil
}

// logWriteErrors reports failed batches until the write API is closed.
func (c *Client) logWriteErrors(errorsCh <-chan error) {
	defer close(c.done)
	for err := range errorsCh {
		n := c.writeErrors.Add(1)
		c.logger.Error("auth telemetry write failed",
			"measurement", measurementAuthOutcomes,
			"failed_batches", n,
			"error", err,
		)
	}
}

// WriteErrors returns the number of batches the server rejected.
func (c *Client) WriteErrors() uint64 {
	if c == nil {
		return 0
	}
	return c.writeErrors.Load()
}

// Close flushes pending points and closes the client. Safe to call on a
// client that never connected and safe to call twice.
func (c *Client) Close() error {
	if c.client == nil || !c.connected.Swap(false) {
		return nil
	}

	c.writeAPI.Flush()
	c.client.Close()
	<-c.done

	return nil
}

// HealthCheck verifies the connection with an active ping.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}

	return nil
}

// IsConnected reports whether Connect succeeded and Close has not run.
func (c *Client) IsConnected() bool {
	return c != nil && c.connected.Load()
}
