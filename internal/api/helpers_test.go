package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillfir/user-service/internal/audit"
	"github.com/kirillfir/user-service/internal/auth"
	"github.com/kirillfir/user-service/internal/infrastructure/config"
	"github.com/kirillfir/user-service/internal/infrastructure/database"
	"github.com/kirillfir/user-service/internal/infrastructure/influxdb"
	"github.com/kirillfir/user-service/internal/infrastructure/logging"
)

const (
	testSecret   = "test-secret-key-at-least-32-characters-long"
	testPassword = "correct-horse-battery-staple"
)

// fakeTelemetry records auth outcomes in memory.
type fakeTelemetry struct {
	mu       sync.Mutex
	outcomes []influxdb.AuthOutcome
}

func (f *fakeTelemetry) WriteAuthOutcome(o influxdb.AuthOutcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, o)
}

func (f *fakeTelemetry) IsConnected() bool { return true }

func (f *fakeTelemetry) last() (influxdb.AuthOutcome, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.outcomes) == 0 {
		return influxdb.AuthOutcome{}, false
	}
	return f.outcomes[len(f.outcomes)-1], true
}

// testEnv is a fully wired API over a migrated temporary SQLite database.
type testEnv struct {
	srv       *Server
	router    http.Handler
	db        *database.DB
	users     *auth.SQLUserRepository
	hasher    *auth.Hasher
	tokens    *auth.TokenService
	auditRepo *audit.SQLRepository
	recorder  *audit.Recorder
	telemetry *fakeTelemetry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(database.Config{
		Driver:      database.DriverSQLite,
		Path:        filepath.Join(t.TempDir(), "api-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(t.Context()); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}

	hasher, err := auth.NewHasher(auth.HasherConfig{
		Algorithm:       auth.AlgorithmArgon2id,
		ArgonMemory:     8 * 1024,
		ArgonIterations: 1,
		ArgonThreads:    1,
	})
	if err != nil {
		t.Fatalf("NewHasher() error = %v", err)
	}

	tokens, err := auth.NewTokenService(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}

	log := logging.Discard()
	users := auth.NewUserRepository(db.DB, db.Dialect())
	auditRepo := audit.NewRepository(db.DB, db.Dialect())
	recorder := audit.NewRecorder(auditRepo, log)
	recorder.Start(t.Context())
	t.Cleanup(recorder.Stop)
	telemetry := &fakeTelemetry{}

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		Logger:        log,
		DB:            db,
		Users:         users,
		Auth:          auth.NewService(users, hasher, tokens),
		Authenticator: auth.NewAuthenticator(tokens, users),
		AuditRepo:     auditRepo,
		Audit:         recorder,
		Telemetry:     telemetry,
		Version:       "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return &testEnv{
		srv:       srv,
		router:    srv.buildRouter(),
		db:        db,
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		auditRepo: auditRepo,
		recorder:  recorder,
		telemetry: telemetry,
	}
}

// createAccount inserts an account with testPassword directly into the store.
func (e *testEnv) createAccount(t *testing.T, email string, role auth.Role, active bool) *auth.Account {
	t.Helper()

	hash, err := e.hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	a := &auth.Account{
		FullName:     "Test " + string(role),
		BirthDate:    time.Date(1990, time.May, 17, 0, 0, 0, 0, time.UTC),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     active,
	}
	if err := e.users.Create(t.Context(), a); err != nil {
		t.Fatalf("creating account: %v", err)
	}
	return a
}

// bearer issues a token for the account and returns the Authorization header value.
func (e *testEnv) bearer(t *testing.T, a *auth.Account) string {
	t.Helper()

	tok, err := e.tokens.Issue(a.ID, a.Role)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return "Bearer " + tok
}

// do sends a request through the router. An empty authz sends no
// Authorization header.
func (e *testEnv) do(t *testing.T, method, path, authz, body string) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// auditEntries stops the recorder so queued entries are flushed and
// returns everything stored.
func (e *testEnv) auditEntries(t *testing.T) []audit.AuditLog {
	t.Helper()

	e.recorder.Stop()
	res, err := e.auditRepo.List(t.Context(), audit.Filter{Limit: 200})
	if err != nil {
		t.Fatalf("listing audit logs: %v", err)
	}
	return res.Logs
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v; body: %s", err, w.Body.String())
	}
	return resp
}

// expectError asserts status and the message of the error envelope.
func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, message string) {
	t.Helper()

	if w.Code != status {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, status, w.Body.String())
	}
	var e Error
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if e.Status != status {
		t.Errorf("envelope status = %d, want %d", e.Status, status)
	}
	if message != "" && e.Message != message {
		t.Errorf("message = %q, want %q", e.Message, message)
	}
}

// newRecorderFor serves one request straight through h.
func newRecorderFor(h http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
