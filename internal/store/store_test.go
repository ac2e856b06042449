package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "access.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAuthorizeRevokeRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, err := s.IsAuthorized(ctx, "u1")
	if err != nil || ok {
		t.Fatalf("fresh user should not be authorized (ok=%v err=%v)", ok, err)
	}

	if err := s.Authorize(ctx, "u1"); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	ok, err = s.IsAuthorized(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("user should be authorized (ok=%v err=%v)", ok, err)
	}

	if err := s.Revoke(ctx, "u1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	ok, _ = s.IsAuthorized(ctx, "u1")
	if ok {
		t.Fatal("revoked user should not be authorized")
	}
}

// Scenario: authorizing a user clears their pending request in the same
// transaction.
func TestAuthorizeClearsPendingRequest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.AddPendingRequest(ctx, PendingRequest{
		UserID: "u1", Username: "mario", DisplayName: "Mario", RequestedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("AddPendingRequest: %v", err)
	}

	if err := s.Authorize(ctx, "u1"); err != nil {
		t.Fatalf("Authorize: %v", err)
	}

	reqs, err := s.PendingRequests(ctx)
	if err != nil {
		t.Fatalf("PendingRequests: %v", err)
	}
	if len(reqs) != 0 {
		t.Fatalf("pending request should be cleared, got %d", len(reqs))
	}
}

func TestRepeatedRequestKeepsOneRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := s.AddPendingRequest(ctx, PendingRequest{
			UserID: "u1", Username: "mario", DisplayName: "Mario", RequestedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("AddPendingRequest: %v", err)
		}
	}

	reqs, err := s.PendingRequests(ctx)
	if err != nil {
		t.Fatalf("PendingRequests: %v", err)
	}
	if len(reqs) != 1 {
		t.Fatalf("expected 1 pending request, got %d", len(reqs))
	}
	if reqs[0].Username != "mario" {
		t.Errorf("unexpected request: %+v", reqs[0])
	}
}

func TestAttemptsAccumulate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.RecordAttempt(ctx, "u1"); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}
	if err := s.RecordAttempt(ctx, "u2"); err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}

	_, _, attempts, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if attempts != 4 {
		t.Errorf("expected 4 attempts, got %d", attempts)
	}
}

func TestAuthorizedListOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := s.Authorize(ctx, id); err != nil {
			t.Fatalf("Authorize: %v", err)
		}
	}

	ids, err := s.AuthorizedList(ctx)
	if err != nil {
		t.Fatalf("AuthorizedList: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(ids))
	}
}
