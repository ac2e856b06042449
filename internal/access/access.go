// Package access decides who may talk to the bot in private chats. Group
// chats are always allowed. The allow-list is cached in memory and written
// through to the SQLite store; if persistence is down the bot keeps running
// on the cache alone.
package access

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/duetbots/adam/internal/store"
)

// Controller answers authorization questions and records access requests.
type Controller struct {
	store  *store.Store
	admins map[string]struct{}
	log    *logrus.Entry

	mu         sync.Mutex
	authorized map[string]struct{}
	pending    map[string]store.PendingRequest
	attempts   int
}

// New builds a controller. st may be nil when persistence is unavailable.
// Admins are implicitly authorized.
func New(st *store.Store, adminIDs []string, log *logrus.Entry) *Controller {
	c := &Controller{
		store:      st,
		admins:     make(map[string]struct{}, len(adminIDs)),
		log:        log,
		authorized: make(map[string]struct{}),
		pending:    make(map[string]store.PendingRequest),
	}
	for _, id := range adminIDs {
		c.admins[id] = struct{}{}
	}

	if st != nil {
		ids, err := st.AuthorizedList(context.Background())
		if err != nil {
			log.WithError(err).Error("failed to load allow-list, starting empty")
		}
		for _, id := range ids {
			c.authorized[id] = struct{}{}
		}
	}
	return c
}

// IsAdmin reports whether the user may run admin commands.
func (c *Controller) IsAdmin(userID string) bool {
	_, ok := c.admins[userID]
	return ok
}

// IsAuthorized reports whether the user may DM the bot.
func (c *Controller) IsAuthorized(userID string) bool {
	if c.IsAdmin(userID) {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.authorized[userID]
	return ok
}

// Authorize adds a user to the allow-list.
func (c *Controller) Authorize(ctx context.Context, userID string) {
	c.mu.Lock()
	c.authorized[userID] = struct{}{}
	delete(c.pending, userID)
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Authorize(ctx, userID); err != nil {
			c.log.WithError(err).Error("failed to persist authorization")
		}
	}
}

// Revoke removes a user from the allow-list.
func (c *Controller) Revoke(ctx context.Context, userID string) {
	c.mu.Lock()
	delete(c.authorized, userID)
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Revoke(ctx, userID); err != nil {
			c.log.WithError(err).Error("failed to persist revocation")
		}
	}
}

// RequestAccess records a denied DM attempt and a pending request for the
// admins to review.
func (c *Controller) RequestAccess(ctx context.Context, userID, username, displayName string) {
	req := store.PendingRequest{
		UserID:      userID,
		Username:    username,
		DisplayName: displayName,
		RequestedAt: time.Now(),
	}

	c.mu.Lock()
	c.pending[userID] = req
	c.attempts++
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.AddPendingRequest(ctx, req); err != nil {
			c.log.WithError(err).Error("failed to persist pending request")
		}
		if err := c.store.RecordAttempt(ctx, userID); err != nil {
			c.log.WithError(err).Error("failed to persist access attempt")
		}
	}
}

// AuthorizedList returns the cached allow-list.
func (c *Controller) AuthorizedList() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.authorized))
	for id := range c.authorized {
		ids = append(ids, id)
	}
	return ids
}

// PendingRequests returns the users waiting for authorization.
func (c *Controller) PendingRequests() []store.PendingRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	reqs := make([]store.PendingRequest, 0, len(c.pending))
	for _, req := range c.pending {
		reqs = append(reqs, req)
	}
	return reqs
}

// AdminIDs returns every configured admin.
func (c *Controller) AdminIDs() []string {
	ids := make([]string, 0, len(c.admins))
	for id := range c.admins {
		ids = append(ids, id)
	}
	return ids
}

// Stats prefers persisted numbers and falls back to the in-memory view.
func (c *Controller) Stats(ctx context.Context) (authorized, pending, attempts int) {
	if c.store != nil {
		a, p, att, err := c.store.Stats(ctx)
		if err == nil {
			return a, p, att
		}
		c.log.WithError(err).Error("failed to read access stats from store")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.authorized), len(c.pending), c.attempts
}
