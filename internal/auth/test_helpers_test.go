package auth

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/kirillfir/user-service/internal/infrastructure/database"
)

const (
	testSecret   = "test-secret-key-at-least-32-chars!"
	testPassword = "correct-horse-battery-staple"
)

// testDB creates a migrated temporary SQLite database.
// Uses a temp file so WAL mode works (in-memory doesn't support it).
func testDB(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Driver:      database.DriverSQLite,
		Path:        filepath.Join(t.TempDir(), "auth-test.db"),
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
	return db
}

// testRepo returns a repository over a fresh test database.
func testRepo(t *testing.T) *SQLUserRepository {
	t.Helper()
	db := testDB(t)
	return NewUserRepository(db.DB, db.Dialect())
}

// testHasher returns an argon2id hasher with a deliberately low work factor.
func testHasher(t *testing.T) *Hasher {
	t.Helper()

	h, err := NewHasher(HasherConfig{
		Algorithm:       AlgorithmArgon2id,
		ArgonMemory:     8 * 1024,
		ArgonIterations: 1,
		ArgonThreads:    1,
	})
	if err != nil {
		t.Fatalf("NewHasher() error = %v", err)
	}
	return h
}

// fixedClock returns a settable time source.
type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time          { return c.t }
func (c *fixedClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fixedClock {
	return &fixedClock{t: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}
}

// testTokens returns a token service with the default TTL on the given clock.
func testTokens(t *testing.T, clock *fixedClock) *TokenService {
	t.Helper()

	ts, err := NewTokenService(testSecret, 0, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	return ts
}

// seedTestAccount inserts an account with testPassword and returns it.
func seedTestAccount(t *testing.T, repo UserRepository, h *Hasher, email string, role Role, active bool) *Account {
	t.Helper()

	hash, err := h.Hash(testPassword)
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}

	account := &Account{
		FullName:     "Test " + email,
		BirthDate:    time.Date(1990, time.May, 17, 0, 0, 0, 0, time.UTC),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     active,
	}
	if err := repo.Create(t.Context(), account); err != nil {
		t.Fatalf("creating test account %s: %v", email, err)
	}
	return account
}
