package auth

import (
	"context"
	"errors"
	"log/slog"
	"testing"
)

const seedEmail = "Admin@Example.com"

func TestSeedAdmin_CreatesOnEmptyDB(t *testing.T) {
	repo := testRepo(t)
	h := testHasher(t)
	ctx := context.Background()

	password, err := SeedAdmin(ctx, repo, h, seedEmail, slog.Default())
	if err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}
	if password == "" {
		t.Fatal("SeedAdmin() should return generated password")
	}

	admin, err := repo.FindByEmail(ctx, "admin@example.com")
	if err != nil {
		t.Fatalf("FindByEmail(admin) error = %v", err)
	}
	if admin.Role != RoleAdmin {
		t.Errorf("Role = %q, want %q", admin.Role, RoleAdmin)
	}
	if !admin.IsActive {
		t.Error("seed admin should be active")
	}
	if admin.Email != "admin@example.com" {
		t.Errorf("Email = %q, want normalised", admin.Email)
	}
	if !h.Verify(password, admin.PasswordHash) {
		t.Error("generated password should verify against stored hash")
	}
}

func TestSeedAdmin_SkipsWhenAccountsExist(t *testing.T) {
	repo := testRepo(t)
	h := testHasher(t)
	ctx := context.Background()

	seedTestAccount(t, repo, h, "existing@example.com", RoleUser, true)

	password, err := SeedAdmin(ctx, repo, h, seedEmail, slog.Default())
	if err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}
	if password != "" {
		t.Error("SeedAdmin() should return empty password when accounts exist")
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}

func TestSeedAdmin_UniquePasswords(t *testing.T) {
	h := testHasher(t)
	ctx := context.Background()

	pw1, err := SeedAdmin(ctx, testRepo(t), h, seedEmail, slog.Default())
	if err != nil {
		t.Fatalf("SeedAdmin() #1 error = %v", err)
	}
	pw2, err := SeedAdmin(ctx, testRepo(t), h, seedEmail, slog.Default())
	if err != nil {
		t.Fatalf("SeedAdmin() #2 error = %v", err)
	}

	if pw1 == pw2 {
		t.Error("seed passwords should be unique across calls")
	}
	if len(pw1) != seedPasswordBytes*2 {
		t.Errorf("password length = %d, want %d hex chars", len(pw1), seedPasswordBytes*2)
	}
}

func TestSeedAdmin_CountFailure(t *testing.T) {
	storeErr := errors.New("database is locked")

	_, err := SeedAdmin(context.Background(), &failingRepo{err: storeErr}, testHasher(t), seedEmail, slog.Default())
	if !errors.Is(err, storeErr) {
		t.Errorf("SeedAdmin() error = %v, want wrapped store error", err)
	}
}
