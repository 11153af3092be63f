package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// bearerScheme is the only accepted Authorization scheme.
const bearerScheme = "Bearer"

// Authenticator turns an Authorization header into an Identity.
//
// Every call runs the full pipeline:
//  1. Extract: header must be exactly "Bearer <token>" (ErrTokenRequired)
//  2. Verify: signature and expiry (ErrInvalidToken)
//  3. Resolve: load the subject from the store (ErrAccountNotFound)
//  4. Liveness: the account must be active (ErrAccountBlocked)
//  5. Attach: the identity carries the stored role, not the token's
//
// Any other error is an internal fault of the store.
type Authenticator struct {
	tokens *TokenService
	store  AccountStore
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(tokens *TokenService, store AccountStore) *Authenticator {
	return &Authenticator{tokens: tokens, store: store}
}

// Authenticate runs the pipeline for one request.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (Identity, error) {
	raw, err := ExtractBearer(header)
	if err != nil {
		return Identity{}, err
	}

	claims, err := a.tokens.Verify(raw)
	if err != nil {
		return Identity{}, err
	}

	snap, err := a.store.FindByID(ctx, claims.SubjectID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Identity{}, ErrAccountNotFound
		}
		return Identity{}, fmt.Errorf("resolving token subject: %w", err)
	}

	if !snap.IsActive {
		return Identity{}, ErrAccountBlocked
	}

	return Identity{ID: snap.ID, Role: snap.Role}, nil
}

// ExtractBearer returns the token from a "Bearer <token>" header value.
// Any other shape, including a lowercase scheme, extra whitespace or an
// empty token, returns ErrTokenRequired without inspecting the token.
func ExtractBearer(header string) (string, error) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != bearerScheme || token == "" || strings.ContainsAny(token, " \t") {
		return "", ErrTokenRequired
	}
	return token, nil
}
