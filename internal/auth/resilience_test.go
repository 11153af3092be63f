package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// Resilience tests verify that the auth subsystem handles failure scenarios
// gracefully. These tests use the TestResilience_ prefix for easy filtering:
//
//	go test -run TestResilience -race ./internal/auth/...

// TestResilience_ConcurrentAuthenticate verifies that many goroutines can run
// the authentication pipeline against the same store and token service.
func TestResilience_ConcurrentAuthenticate(t *testing.T) {
	repo := testRepo(t)
	h := testHasher(t)
	tokens := testTokens(t, newClock())
	a := NewAuthenticator(tokens, repo)
	ctx := context.Background()

	account := seedTestAccount(t, repo, h, "busy@example.com", RoleUser, true)
	tok, err := tokens.Issue(account.ID, RoleUser)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := a.Authenticate(ctx, "Bearer "+tok)
			if err != nil {
				errs <- err
				return
			}
			if id.ID != account.ID {
				errs <- errors.New("identity mismatch")
			}
		}()
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Authenticate() error = %v", err)
	}
}

// TestResilience_ConcurrentRegister_SameEmail verifies that racing
// registrations for one address leave exactly one account behind.
func TestResilience_ConcurrentRegister_SameEmail(t *testing.T) {
	svc, repo, _ := testService(t)
	ctx := context.Background()

	const attempts = 4
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			email := "race@example.com"
			if i%2 == 1 {
				email = "RACE@example.com"
			}
			_, err := svc.Register(ctx, RegisterInput{FullName: "Racer", Email: email, Password: testPassword})
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	var successes int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrEmailExists):
		default:
			t.Errorf("Register() unexpected error = %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("successful registrations = %d, want 1", successes)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}
}

// TestResilience_ContextCancellation_RepositoryOps verifies that repository
// operations respect context cancellation and return clean errors rather
// than panicking or leaving partial state.
func TestResilience_ContextCancellation_RepositoryOps(t *testing.T) {
	repo := testRepo(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := repo.List(ctx, 10, 0); err == nil {
		t.Error("List with cancelled context should return error")
	}
	if _, err := repo.FindByEmail(ctx, "nonexistent@example.com"); err == nil {
		t.Error("FindByEmail with cancelled context should return error")
	}
	if _, err := repo.Count(ctx); err == nil {
		t.Error("Count with cancelled context should return error")
	}

	account := &Account{
		FullName:     "Cancel Test",
		Email:        "cancel@example.com",
		PasswordHash: "$argon2id$v=19$m=65536,t=3,p=1$dGVzdHNhbHQ$dGVzdGhhc2g",
		Role:         RoleUser,
		IsActive:     true,
	}
	if err := repo.Create(ctx, account); err == nil {
		t.Error("Create with cancelled context should return error")
	}
}

// TestResilience_CancelledContext_Authenticate verifies that a cancelled
// request surfaces as an internal error, never as a 401/403 sentinel.
func TestResilience_CancelledContext_Authenticate(t *testing.T) {
	repo := testRepo(t)
	h := testHasher(t)
	tokens := testTokens(t, newClock())
	a := NewAuthenticator(tokens, repo)

	account := seedTestAccount(t, repo, h, "cancel@example.com", RoleUser, true)
	tok, err := tokens.Issue(account.ID, RoleUser)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = a.Authenticate(ctx, "Bearer "+tok)
	if err == nil {
		t.Fatal("Authenticate() with cancelled context should return error")
	}
	if errors.Is(err, ErrAccountNotFound) || errors.Is(err, ErrAccountBlocked) {
		t.Errorf("cancelled lookup reported as %v", err)
	}
}
