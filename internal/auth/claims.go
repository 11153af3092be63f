package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is used when the service is built with a non-positive TTL.
const DefaultTokenTTL = 2 * time.Hour

// Claims is the verified content of a bearer token.
type Claims struct {
	SubjectID int64
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// tokenClaims is the signed JWT payload. The subject id travels in "sub" as
// a decimal string.
type tokenClaims struct {
	jwt.RegisteredClaims
	Role Role `json:"role"`
}

// TokenService issues and verifies HS256 bearer tokens.
//
// The signing secret is fixed at construction; rotating it means building a
// new service, which invalidates every outstanding token.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// TokenOption customises a TokenService.
type TokenOption func(*TokenService)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		s.now = now
	}
}

// WithIssuer sets the "iss" claim on issued tokens and requires it on verification.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) {
		s.issuer = issuer
	}
}

// NewTokenService creates a token service. An empty secret is a
// configuration error and returns ErrMissingSecret.
func NewTokenService(secret string, ttl time.Duration, opts ...TokenOption) (*TokenService, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	s := &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for the given subject. The subject id must be positive
// and the role must be one of ValidRoles.
func (s *TokenService) Issue(subjectID int64, role Role) (string, error) {
	if subjectID <= 0 {
		return "", fmt.Errorf("%w: subject id must be positive", ErrInvalidClaims)
	}
	if !IsValidRole(role) {
		return "", fmt.Errorf("%w: role %q", ErrInvalidClaims, role)
	}

	now := s.now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(subjectID, 10),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
		Role: role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of a token and returns its claims.
//
// Every failure wraps ErrInvalidToken and exactly one of:
//   - ErrTokenExpired: authentic token whose expiry instant has been reached
//   - ErrTokenMalformed: anything else (bad signature, wrong algorithm, garbled
//     structure, missing or invalid claims)
//
// There is no leeway: a token is rejected from its expiry second onwards.
func (s *TokenService) Verify(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w: %w: %v", ErrInvalidToken, ErrTokenMalformed, err)
	}

	tc, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrTokenMalformed)
	}

	subjectID, err := strconv.ParseInt(tc.Subject, 10, 64)
	if err != nil || subjectID <= 0 {
		return nil, fmt.Errorf("%w: %w: bad subject", ErrInvalidToken, ErrTokenMalformed)
	}
	if !IsValidRole(tc.Role) {
		return nil, fmt.Errorf("%w: %w: bad role", ErrInvalidToken, ErrTokenMalformed)
	}
	if tc.IssuedAt == nil {
		return nil, fmt.Errorf("%w: %w: missing iat", ErrInvalidToken, ErrTokenMalformed)
	}

	return &Claims{
		SubjectID: subjectID,
		Role:      tc.Role,
		IssuedAt:  tc.IssuedAt.Time,
		ExpiresAt: tc.ExpiresAt.Time,
	}, nil
}
