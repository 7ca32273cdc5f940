// Package store provides the ephemeral key-value store backing interview
// state: TTL'd JSON values plus the set and FIFO-list primitives the
// admission controller relies on. Failures degrade to not-found/no-op so a
// store outage never takes down a running interview.
package store

import (
	"context"
	"fmt"
	"time"
)

// TTLs applied to store writes. Every write refreshes its key's expiry.
const (
	DefaultTTL = 4 * time.Hour
	HistoryTTL = time.Hour
	AudioTTL   = 5 * time.Minute
)

// Key builders for interview state. Kept in one place so callers and
// cleanup agree on the full key set.
func PromptKey(userID string) string  { return "interview:prompt:" + userID }
func ContextKey(userID string) string { return "interview:context:" + userID }
func HistoryKey(userID string) string { return "interview:history:" + userID }
func TimerKey(userID string) string   { return "interview_timer:" + userID }

func AudioKey(userID, blobID string) string {
	return fmt.Sprintf("audio:%s:%s", userID, blobID)
}

// Shared keys for admission state.
const (
	ActiveUsersKey = "active_interview_users"
	QueueKey       = "interview_queue"
)

// Store is the ephemeral session store contract. Implementations must
// treat ttl <= 0 as DefaultTTL.
type Store interface {
	// Put marshals value as JSON under key with the given TTL.
	Put(ctx context.Context, key string, value any, ttl time.Duration) error
	// Get unmarshals the value at key into dest. Returns false when the
	// key is absent or expired.
	Get(ctx context.Context, key string, dest any) (bool, error)
	// PutBytes stores a raw payload, e.g. an audio blob.
	PutBytes(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Set primitives.
	AddToSet(ctx context.Context, key, member string) error
	RemoveFromSet(ctx context.Context, key, member string) error
	InSet(ctx context.Context, key, member string) (bool, error)
	SetCard(ctx context.Context, key string) (int, error)

	// FIFO queue primitives. PushQueue returns the 1-based length after
	// the push; PopQueue returns false when the queue is empty.
	PushQueue(ctx context.Context, key, member string) (int, error)
	PopQueue(ctx context.Context, key string) (string, bool, error)
	RemoveFromQueue(ctx context.Context, key, member string) error
	QueueList(ctx context.Context, key string) ([]string, error)
}

func effectiveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
