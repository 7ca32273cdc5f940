// Package admission bounds the number of concurrent interview sessions.
// Users beyond capacity wait in a FIFO queue and are promoted as slots
// free up.
package admission

import (
	"context"
	"log"
	"sync"

	"github.com/HamdanKAlmehairbi/DellioProject/internal/store"
)

// DefaultCapacity is the number of concurrent interview slots.
const DefaultCapacity = 5

// Controller manages the active-user set and waiting queue on top of the
// ephemeral store. A controller-level mutex makes check-then-add atomic;
// the store remains the source of truth so state survives restarts when
// backed by Redis.
type Controller struct {
	mu       sync.Mutex
	store    store.Store
	capacity int
}

// New creates a controller with the given capacity. capacity <= 0 falls
// back to DefaultCapacity.
func New(st store.Store, capacity int) *Controller {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Controller{store: st, capacity: capacity}
}

// Capacity returns the configured slot count.
func (c *Controller) Capacity() int {
	return c.capacity
}

// ActiveCount returns the current number of active users. Store failures
// degrade to zero.
func (c *Controller) ActiveCount(ctx context.Context) int {
	n, err := c.store.SetCard(ctx, store.ActiveUsersKey)
	if err != nil {
		log.Printf("[admission] active count failed: %v", err)
		return 0
	}
	return n
}

// IsActive reports whether the user currently holds a slot.
func (c *Controller) IsActive(ctx context.Context, userID string) bool {
	ok, err := c.store.InSet(ctx, store.ActiveUsersKey, userID)
	if err != nil {
		log.Printf("[admission] membership check for %s failed: %v", userID, err)
		return false
	}
	return ok
}

// TryActivate adds the user to the active set if a slot is free.
func (c *Controller) TryActivate(ctx context.Context, userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tryActivateLocked(ctx, userID)
}

func (c *Controller) tryActivateLocked(ctx context.Context, userID string) bool {
	n, err := c.store.SetCard(ctx, store.ActiveUsersKey)
	if err != nil {
		log.Printf("[admission] active count failed: %v", err)
		return false
	}
	if n >= c.capacity {
		return false
	}
	if err := c.store.AddToSet(ctx, store.ActiveUsersKey, userID); err != nil {
		log.Printf("[admission] activate %s failed: %v", userID, err)
		return false
	}
	return true
}

// Enqueue appends the user to the waiting queue and returns the 1-based
// position.
func (c *Controller) Enqueue(ctx context.Context, userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	pos, err := c.store.PushQueue(ctx, store.QueueKey, userID)
	if err != nil {
		log.Printf("[admission] enqueue %s failed: %v", userID, err)
		return 0
	}
	return pos
}

// Leave removes the user from the active set and promotes waiting users
// into any freed slots.
func (c *Controller) Leave(ctx context.Context, userID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.RemoveFromSet(ctx, store.ActiveUsersKey, userID); err != nil {
		log.Printf("[admission] remove active %s failed: %v", userID, err)
	}
	return c.promoteAllLocked(ctx)
}

// PromoteAll pops queued users into free slots, in FIFO order, and
// returns the promoted ids.
func (c *Controller) PromoteAll(ctx context.Context) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.promoteAllLocked(ctx)
}

func (c *Controller) promoteAllLocked(ctx context.Context) []string {
	var promoted []string
	for {
		n, err := c.store.SetCard(ctx, store.ActiveUsersKey)
		if err != nil {
			log.Printf("[admission] active count failed: %v", err)
			break
		}
		if n >= c.capacity {
			break
		}
		next, ok, err := c.store.PopQueue(ctx, store.QueueKey)
		if err != nil {
			log.Printf("[admission] pop queue failed: %v", err)
			break
		}
		if !ok {
			break
		}
		if c.tryActivateLocked(ctx, next) {
			promoted = append(promoted, next)
		}
	}
	return promoted
}

// PositionOf returns the user's 0-based position in the queue, or -1 when
// absent.
func (c *Controller) PositionOf(ctx context.Context, userID string) int {
	queue, err := c.store.QueueList(ctx, store.QueueKey)
	if err != nil {
		log.Printf("[admission] queue list failed: %v", err)
		return -1
	}
	for i, member := range queue {
		if member == userID {
			return i
		}
	}
	return -1
}

// Deregister removes the user from both the active set and the waiting
// queue. A user who disconnects while queued must leave the queue too,
// otherwise promotion would hand a slot to a ghost.
func (c *Controller) Deregister(ctx context.Context, userID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.RemoveFromQueue(ctx, store.QueueKey, userID); err != nil {
		log.Printf("[admission] remove queued %s failed: %v", userID, err)
	}
	if err := c.store.RemoveFromSet(ctx, store.ActiveUsersKey, userID); err != nil {
		log.Printf("[admission] remove active %s failed: %v", userID, err)
	}
	return c.promoteAllLocked(ctx)
}
