package influxdb_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillfir/user-service/internal/infrastructure/config"
	"github.com/kirillfir/user-service/internal/infrastructure/influxdb"
	"github.com/kirillfir/user-service/internal/infrastructure/logging"
)

// fakeInflux answers the ping and write endpoints of the v2 API and keeps
// every line-protocol body it receives.
type fakeInflux struct {
	*httptest.Server

	mu     sync.Mutex
	writes []string
	query  []string
	reject int // non-zero answers writes with this status
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()
	f := &fakeInflux{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/ping"):
			w.WriteHeader(http.StatusNoContent)
		case strings.HasSuffix(r.URL.Path, "/write"):
			body, _ := io.ReadAll(r.Body)
			f.mu.Lock()
			f.writes = append(f.writes, string(body))
			f.query = append(f.query, r.URL.RawQuery)
			reject := f.reject
			f.mu.Unlock()
			if reject != 0 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(reject)
				_, _ = io.WriteString(w, `{"code":"invalid","message":"unable to parse points"}`)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeInflux) body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return strings.Join(f.writes, "\n")
}

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "usersvc",
		Bucket:        "auth",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestConnect(t *testing.T) {
	f := newFakeInflux(t)

	client, err := influxdb.Connect(testConfig(f.URL), logging.Discard())
	require.NoError(t, err)

	assert.True(t, client.IsConnected())
	assert.NoError(t, client.HealthCheck(context.Background()))
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:8086")
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg, logging.Discard())
	assert.True(t, errors.Is(err, influxdb.ErrDisabled), "Connect() error = %v, want ErrDisabled", err)
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := influxdb.Connect(testConfig("http://127.0.0.1:59999"), logging.Discard())
	assert.True(t, errors.Is(err, influxdb.ErrConnectionFailed), "Connect() error = %v, want ErrConnectionFailed", err)
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	f := newFakeInflux(t)
	cfg := testConfig(f.URL)
	cfg.BatchSize = -5
	cfg.FlushInterval = 0

	client, err := influxdb.Connect(cfg, logging.Discard())
	require.NoError(t, err)

	assert.True(t, client.IsConnected())
}

func TestHealthCheck_AfterClose(t *testing.T) {
	f := newFakeInflux(t)

	client, err := influxdb.Connect(testConfig(f.URL), logging.Discard())
	require.NoError(t, err)
	require.NoError(t, client.Close())

	assert.False(t, client.IsConnected())
	assert.True(t, errors.Is(client.HealthCheck(context.Background()), influxdb.ErrNotConnected))
}

func TestClose_Nil(t *testing.T) {
	client := &influxdb.Client{}
	assert.NoError(t, client.Close())
}

// =============================================================================
// Write Tests
// =============================================================================

func TestWriteAuthOutcome(t *testing.T) {
	f := newFakeInflux(t)

	client, err := influxdb.Connect(testConfig(f.URL), logging.Discard())
	require.NoError(t, err)

	client.WriteAuthOutcome(influxdb.AuthOutcome{
		Outcome: influxdb.OutcomeBlocked,
		Status:  http.StatusForbidden,
		Stage:   "request",
		Latency: 1500 * time.Microsecond,
		At:      time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, client.Close())

	require.Eventually(t, func() bool {
		return strings.Contains(f.body(), "auth_outcomes,")
	}, 3*time.Second, 50*time.Millisecond)

	body := f.body()
	assert.Contains(t, body, "outcome=blocked")
	assert.Contains(t, body, "stage=request")
	assert.Contains(t, body, "status=403")
	assert.Contains(t, body, "latency_ms=1.5")
	assert.Contains(t, body, "count=1i")

	f.mu.Lock()
	assert.Contains(t, f.query[0], "bucket=auth")
	assert.Contains(t, f.query[0], "org=usersvc")
	f.mu.Unlock()

	assert.Zero(t, client.WriteErrors())
}

func TestWriteAuthOutcome_RejectedBatchIsLogged(t *testing.T) {
	f := newFakeInflux(t)
	f.mu.Lock()
	f.reject = http.StatusBadRequest
	f.mu.Unlock()

	var logs syncBuffer
	logger := logging.NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "test", &logs)

	client, err := influxdb.Connect(testConfig(f.URL), logger)
	require.NoError(t, err)

	client.WriteAuthOutcome(influxdb.AuthOutcome{
		Outcome: influxdb.OutcomeBadPassword,
		Status:  http.StatusUnauthorized,
		Stage:   "login",
	})
	require.NoError(t, client.Close())

	assert.Equal(t, uint64(1), client.WriteErrors())
	out := logs.String()
	assert.Contains(t, out, "auth telemetry write failed")
	assert.Contains(t, out, `"measurement":"auth_outcomes"`)
	assert.Contains(t, out, `"component":"influxdb"`)
}

func TestClose_Twice(t *testing.T) {
	f := newFakeInflux(t)

	client, err := influxdb.Connect(testConfig(f.URL), logging.Discard())
	require.NoError(t, err)
	require.NoError(t, client.Close())
	assert.NoError(t, client.Close())
}

func TestWriteAuthOutcome_Disconnected(t *testing.T) {
	var nilClient *influxdb.Client
	assert.NotPanics(t, func() {
		nilClient.WriteAuthOutcome(influxdb.AuthOutcome{Outcome: influxdb.OutcomeSuccess})
	})

	assert.NotPanics(t, func() {
		(&influxdb.Client{}).WriteAuthOutcome(influxdb.AuthOutcome{Outcome: influxdb.OutcomeSuccess})
	})
}

func TestWriteAuthOutcome_AfterClose(t *testing.T) {
	f := newFakeInflux(t)

	client, err := influxdb.Connect(testConfig(f.URL), logging.Discard())
	require.NoError(t, err)
	require.NoError(t, client.Close())

	assert.NotPanics(t, func() {
		client.WriteAuthOutcome(influxdb.AuthOutcome{Outcome: influxdb.OutcomeSuccess})
	})
}
