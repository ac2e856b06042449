package access

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/duetbots/adam/internal/store"
)

func testLog() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(logger)
}

func TestAdminsAreAlwaysAuthorized(t *testing.T) {
	c := New(nil, []string{"admin1"}, testLog())

	if !c.IsAdmin("admin1") {
		t.Error("admin1 should be admin")
	}
	if !c.IsAuthorized("admin1") {
		t.Error("admins should be implicitly authorized")
	}
	if c.IsAuthorized("stranger") {
		t.Error("stranger should not be authorized")
	}
}

// Scenario: no database at all. The controller still authorizes, revokes
// and counts in memory.
func TestDegradedModeWithoutStore(t *testing.T) {
	c := New(nil, nil, testLog())
	ctx := context.Background()

	c.RequestAccess(ctx, "u1", "mario", "Mario")
	c.Authorize(ctx, "u1")

	if !c.IsAuthorized("u1") {
		t.Error("u1 should be authorized")
	}
	if len(c.PendingRequests()) != 0 {
		t.Error("authorization should clear the pending request")
	}

	authorized, pending, attempts := c.Stats(ctx)
	if authorized != 1 || pending != 0 || attempts != 1 {
		t.Errorf("stats = %d/%d/%d", authorized, pending, attempts)
	}

	c.Revoke(ctx, "u1")
	if c.IsAuthorized("u1") {
		t.Error("u1 should be revoked")
	}
}

// Scenario: the allow-list survives a restart when the store is present.
func TestAllowListPersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.db")
	ctx := context.Background()

	st, err := store.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	c := New(st, nil, testLog())
	c.Authorize(ctx, "u1")
	st.Close()

	st2, err := store.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()

	c2 := New(st2, nil, testLog())
	if !c2.IsAuthorized("u1") {
		t.Error("allow-list should survive a restart")
	}
}
