package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RegisterInput carries a validated registration request.
type RegisterInput struct {
	FullName  string
	BirthDate time.Time
	Email     string
	Password  string
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token     string
	ExpiresIn time.Duration
	Account   *Account
}

// Service implements registration and login on top of the repository,
// the hasher and the token service.
type Service struct {
	users  UserRepository
	hasher *Hasher
	tokens *TokenService
}

// NewService creates an auth service.
func NewService(users UserRepository, hasher *Hasher, tokens *TokenService) *Service {
	return &Service{users: users, hasher: hasher, tokens: tokens}
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an active account with the user role.
// Returns ErrEmailExists if the email is taken in any letter case.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Account, error) {
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	account := &Account{
		FullName:     strings.TrimSpace(in.FullName),
		BirthDate:    in.BirthDate,
		Email:        NormalizeEmail(in.Email),
		PasswordHash: hash,
		Role:         RoleUser,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

// Login checks the credentials and issues a token.
//
// Unknown email and wrong password both return ErrInvalidCredentials after the
// same amount of hashing work. A correct password for a blocked account
// returns ErrAccountBlocked and no token.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	account, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			s.hasher.burn(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up account: %w", err)
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if !account.IsActive {
		return nil, ErrAccountBlocked
	}

	token, err := s.tokens.Issue(account.ID, account.Role)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	return &LoginResult{
		Token:     token,
		ExpiresIn: s.tokens.TTL(),
		Account:   account,
	}, nil
}
