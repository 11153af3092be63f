package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
)

// seedPasswordBytes is the number of random bytes for the seed admin password.
const seedPasswordBytes = 16

// SeedAdmin creates an admin account on first boot if no accounts exist.
// The generated password is logged once and must be changed immediately.
// Returns the generated password (empty string if seeding was skipped).
func SeedAdmin(ctx context.Context, users UserRepository, hasher *Hasher, email string, logger *slog.Logger) (string, error) {
	count, err := users.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking account count: %w", err)
	}

	if count > 0 {
		logger.Info("accounts exist, skipping admin seed")
		return "", nil
	}

	passwordBytes := make([]byte, seedPasswordBytes)
	if _, err := rand.Read(passwordBytes); err != nil { //nolint:govet // shadow
		return "", fmt.Errorf("generating seed password: %w", err)
	}
	password := hex.EncodeToString(passwordBytes)

	hash, err := hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	admin := &Account{
		FullName:     "Administrator",
		BirthDate:    time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC),
		Email:        NormalizeEmail(email),
		PasswordHash: hash,
		Role:         RoleAdmin,
		IsActive:     true,
	}

	if err := users.Create(ctx, admin); err != nil {
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	logger.Warn("seed admin account created",
		"email", admin.Email,
		"password", password,
		"action_required", "change this password immediately",
	)

	return password, nil
}
