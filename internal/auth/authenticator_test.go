package auth

import (
	"context"
	"errors"
	"testing"
)

// stubStore is an AccountStore with canned answers.
type stubStore struct {
	snap  Snapshot
	err   error
	calls int
}

func (s *stubStore) FindByID(_ context.Context, _ int64) (Snapshot, error) {
	s.calls++
	return s.snap, s.err
}

func (s *stubStore) FindByEmail(_ context.Context, _ string) (*Account, error) {
	return nil, ErrAccountNotFound
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"valid", "Bearer abc.def.ghi", "abc.def.ghi", false},
		{"empty header", "", "", true},
		{"scheme only", "Bearer", "", true},
		{"scheme and space", "Bearer ", "", true},
		{"basic scheme", "Basic abc", "", true},
		{"lowercase scheme", "bearer abc", "", true},
		{"double space", "Bearer  abc", "", true},
		{"trailing garbage", "Bearer abc def", "", true},
		{"token only", "abc.def.ghi", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractBearer(tt.header)
			if tt.wantErr {
				if !errors.Is(err, ErrTokenRequired) {
					t.Errorf("ExtractBearer(%q) error = %v, want ErrTokenRequired", tt.header, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractBearer(%q) error = %v", tt.header, err)
			}
			if got != tt.want {
				t.Errorf("ExtractBearer(%q) = %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}

func TestAuthenticate_BasicRejectedBeforeParsing(t *testing.T) {
	store := &stubStore{}
	a := NewAuthenticator(testTokens(t, newClock()), store)

	_, err := a.Authenticate(context.Background(), "Basic abc")
	if !errors.Is(err, ErrTokenRequired) {
		t.Fatalf("Authenticate() error = %v, want ErrTokenRequired", err)
	}
	if errors.Is(err, ErrInvalidToken) {
		t.Error("Basic header must not reach token verification")
	}
	if store.calls != 0 {
		t.Errorf("store called %d times, want 0", store.calls)
	}
}

func TestAuthenticate_Pipeline(t *testing.T) {
	repo := testRepo(t)
	h := testHasher(t)
	clock := newClock()
	tokens := testTokens(t, clock)
	a := NewAuthenticator(tokens, repo)
	ctx := context.Background()

	active := seedTestAccount(t, repo, h, "active@example.com", RoleUser, true)
	blocked := seedTestAccount(t, repo, h, "blocked@example.com", RoleUser, false)

	issue := func(id int64, role Role) string {
		t.Helper()
		tok, err := tokens.Issue(id, role)
		if err != nil {
			t.Fatalf("Issue() error = %v", err)
		}
		return tok
	}

	t.Run("active account", func(t *testing.T) {
		id, err := a.Authenticate(ctx, "Bearer "+issue(active.ID, RoleUser))
		if err != nil {
			t.Fatalf("Authenticate() error = %v", err)
		}
		if id != (Identity{ID: active.ID, Role: RoleUser}) {
			t.Errorf("Authenticate() = %+v", id)
		}
	})

	t.Run("blocked account", func(t *testing.T) {
		_, err := a.Authenticate(ctx, "Bearer "+issue(blocked.ID, RoleUser))
		if !errors.Is(err, ErrAccountBlocked) {
			t.Errorf("Authenticate() error = %v, want ErrAccountBlocked", err)
		}
	})

	t.Run("unknown subject", func(t *testing.T) {
		_, err := a.Authenticate(ctx, "Bearer "+issue(9999, RoleAdmin))
		if !errors.Is(err, ErrAccountNotFound) {
			t.Errorf("Authenticate() error = %v, want ErrAccountNotFound", err)
		}
	})

	t.Run("garbled token", func(t *testing.T) {
		_, err := a.Authenticate(ctx, "Bearer not-a-token")
		if !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Authenticate() error = %v, want ErrInvalidToken", err)
		}
	})
}

func TestAuthenticate_RoleComesFromStore(t *testing.T) {
	repo := testRepo(t)
	h := testHasher(t)
	tokens := testTokens(t, newClock())
	a := NewAuthenticator(tokens, repo)
	ctx := context.Background()

	account := seedTestAccount(t, repo, h, "demoted@example.com", RoleAdmin, true)
	tok, err := tokens.Issue(account.ID, RoleAdmin)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := repo.UpdateRole(ctx, account.ID, RoleUser); err != nil {
		t.Fatalf("UpdateRole() error = %v", err)
	}

	id, err := a.Authenticate(ctx, "Bearer "+tok)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if id.Role != RoleUser {
		t.Errorf("Identity.Role = %q, want %q from the store", id.Role, RoleUser)
	}
}

func TestAuthenticate_BlockedAfterIssue(t *testing.T) {
	repo := testRepo(t)
	h := testHasher(t)
	tokens := testTokens(t, newClock())
	a := NewAuthenticator(tokens, repo)
	ctx := context.Background()

	account := seedTestAccount(t, repo, h, "later@example.com", RoleUser, true)
	tok, err := tokens.Issue(account.ID, RoleUser)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := repo.Deactivate(ctx, account.ID); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}

	if _, err := a.Authenticate(ctx, "Bearer "+tok); !errors.Is(err, ErrAccountBlocked) {
		t.Errorf("Authenticate() error = %v, want ErrAccountBlocked", err)
	}
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	clock := newClock()
	tokens := testTokens(t, clock)
	store := &stubStore{snap: Snapshot{ID: 1, Role: RoleUser, IsActive: true}}
	a := NewAuthenticator(tokens, store)

	tok, err := tokens.Issue(1, RoleUser)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	clock.Advance(DefaultTokenTTL + 1)

	_, err = a.Authenticate(context.Background(), "Bearer "+tok)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Authenticate() error = %v, want ErrTokenExpired", err)
	}
	if store.calls != 0 {
		t.Errorf("store called %d times for an expired token, want 0", store.calls)
	}
}

func TestAuthenticate_StoreFailureIsInternal(t *testing.T) {
	tokens := testTokens(t, newClock())
	storeErr := errors.New("connection refused")
	a := NewAuthenticator(tokens, &stubStore{err: storeErr})

	tok, err := tokens.Issue(1, RoleUser)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	_, err = a.Authenticate(context.Background(), "Bearer "+tok)
	if !errors.Is(err, storeErr) {
		t.Fatalf("Authenticate() error = %v, want wrapped store error", err)
	}
	for _, sentinel := range []error{ErrTokenRequired, ErrInvalidToken, ErrAccountNotFound, ErrAccountBlocked} {
		if errors.Is(err, sentinel) {
			t.Errorf("store failure must not look like %v", sentinel)
		}
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()
	if _, ok := IdentityFromContext(ctx); ok {
		t.Error("IdentityFromContext() on empty context should report false")
	}

	want := Identity{ID: 5, Role: RoleAdmin}
	got, ok := IdentityFromContext(WithIdentity(ctx, want))
	if !ok || got != want {
		t.Errorf("IdentityFromContext() = %+v, %v; want %+v, true", got, ok, want)
	}
}
