package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/kirillfir/user-service/internal/infrastructure/database"
)

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// AccountStore is the narrow read gateway used to resolve token subjects and
// log-in attempts into live account state.
type AccountStore interface {
	// FindByID returns the current snapshot of the account or ErrAccountNotFound.
	FindByID(ctx context.Context, id int64) (Snapshot, error)

	// FindByEmail looks the account up ignoring case, or returns ErrAccountNotFound.
	FindByEmail(ctx context.Context, email string) (*Account, error)
}

// UserRepository is the full persistence interface for user accounts.
type UserRepository interface {
	AccountStore
	Create(ctx context.Context, account *Account) error
	GetByID(ctx context.Context, id int64) (*Account, error)
	List(ctx context.Context, limit, offset int) ([]Account, error)
	UpdateRole(ctx context.Context, id int64, role Role) (*Account, error)
	Deactivate(ctx context.Context, id int64) (*Account, error)
	Count(ctx context.Context) (int, error)
}

// SQLUserRepository implements UserRepository on SQLite or PostgreSQL.
type SQLUserRepository struct {
	db      *sql.DB
	dialect database.Dialect
	now     func() time.Time
}

// NewUserRepository creates a user repository speaking the given dialect.
func NewUserRepository(db *sql.DB, dialect database.Dialect) *SQLUserRepository {
	return &SQLUserRepository{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	}
}

const selectAccountColumns = `SELECT id, full_name, birth_date, email, password_hash, role, is_active, created_at, updated_at FROM users`

// Create inserts a new account and fills in its ID and timestamps.
// A duplicate email in any letter case returns ErrEmailExists.
func (r *SQLUserRepository) Create(ctx context.Context, account *Account) error {
	if account.Role == "" {
		account.Role = RoleUser
	}
	now := r.now()

	var id int64
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(
		`INSERT INTO users (full_name, birth_date, email, password_hash, role, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		account.FullName, account.BirthDate, account.Email, account.PasswordHash,
		string(account.Role), account.IsActive, now, now,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailExists
		}
		return fmt.Errorf("creating account: %w", err)
	}

	account.ID = id
	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

// FindByID returns the authorisation snapshot of an account.
func (r *SQLUserRepository) FindByID(ctx context.Context, id int64) (Snapshot, error) {
	var s Snapshot
	var role string

	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(
		`SELECT id, role, is_active FROM users WHERE id = ?`), id,
	).Scan(&s.ID, &role, &s.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, ErrAccountNotFound
		}
		return Snapshot{}, fmt.Errorf("finding account %d: %w", id, err)
	}

	s.Role = Role(role)
	return s, nil
}

// FindByEmail looks an account up by email, ignoring case.
func (r *SQLUserRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return r.getAccount(ctx, selectAccountColumns+` WHERE LOWER(email) = LOWER(?)`, strings.TrimSpace(email))
}

// GetByID retrieves a full account row.
func (r *SQLUserRepository) GetByID(ctx context.Context, id int64) (*Account, error) {
	return r.getAccount(ctx, selectAccountColumns+` WHERE id = ?`, id)
}

// List returns a page of accounts ordered by id.
func (r *SQLUserRepository) List(ctx context.Context, limit, offset int) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(
		selectAccountColumns+` ORDER BY id ASC LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	accounts := []Account{}
	for rows.Next() {
		a, err := scanAccountFrom(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}

	return accounts, nil
}

// UpdateRole sets the role of an account and returns the updated row.
func (r *SQLUserRepository) UpdateRole(ctx context.Context, id int64, role Role) (*Account, error) {
	if !IsValidRole(role) {
		return nil, ErrInvalidRole
	}
	return r.updateAndGet(ctx, id, `UPDATE users SET role = ?, updated_at = ? WHERE id = ?`, string(role), r.now(), id)
}

// Deactivate blocks an account and returns the updated row.
func (r *SQLUserRepository) Deactivate(ctx context.Context, id int64) (*Account, error) {
	return r.updateAndGet(ctx, id, `UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?`, false, r.now(), id)
}

// Count returns the total number of accounts.
func (r *SQLUserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting accounts: %w", err)
	}
	return count, nil
}

func (r *SQLUserRepository) updateAndGet(ctx context.Context, id int64, query string, args ...any) (*Account, error) {
	result, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("updating account %d: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("updating account %d: %w", id, err)
	}
	if n == 0 {
		return nil, ErrAccountNotFound
	}

	return r.GetByID(ctx, id)
}

// getAccount executes a query and scans a single account result.
func (r *SQLUserRepository) getAccount(ctx context.Context, query string, args ...any) (*Account, error) {
	return scanAccountFrom(r.db.QueryRowContext(ctx, r.dialect.Rebind(query), args...))
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

// scanAccountFrom scans an account from any scanner (Row or Rows).
func scanAccountFrom(s scanner) (*Account, error) {
	var a Account
	var role string

	err := s.Scan(&a.ID, &a.FullName, &a.BirthDate, &a.Email, &a.PasswordHash,
		&role, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("scanning account: %w", err)
	}

	a.Role = Role(role)
	return &a, nil
}

// isUniqueViolation recognises unique-constraint failures from either driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}

	return false
}
