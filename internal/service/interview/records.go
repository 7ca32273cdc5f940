package interview

import (
	"context"
	"log"
	"strings"
	"time"

	model "github.com/HamdanKAlmehairbi/DellioProject/internal/model/interview"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/store"
)

// Records persists interview state in the ephemeral store: the generated
// prompt, the rolling conversation context, the transcript snapshot and
// the interview timer. Store failures degrade to not-found or no-op; the
// live session keeps running on in-memory state.
type Records struct {
	store store.Store
}

// NewRecords wraps the store with interview-domain operations.
func NewRecords(st store.Store) *Records {
	return &Records{store: st}
}

// StorePrompt saves the generated interview prompt for a user.
func (r *Records) StorePrompt(ctx context.Context, userID string, rec model.PromptRecord) error {
	if rec.CreatedAt == "" {
		rec.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	return r.store.Put(ctx, store.PromptKey(userID), rec, store.DefaultTTL)
}

// GetPrompt loads the stored prompt record. Missing or unreadable
// records report not-found.
func (r *Records) GetPrompt(ctx context.Context, userID string) (model.PromptRecord, bool) {
	var rec model.PromptRecord
	found, err := r.store.Get(ctx, store.PromptKey(userID), &rec)
	if err != nil {
		log.Printf("[records] failed to load prompt for %s: %v", userID, err)
		return model.PromptRecord{}, false
	}
	return rec, found
}

// StoreContext saves the rolling context record, trimming history to the
// retention limit and stamping the interaction time.
func (r *Records) StoreContext(ctx context.Context, userID string, rec model.ContextRecord) error {
	if n := len(rec.ConversationHistory); n > model.HistoryLimit {
		rec.ConversationHistory = rec.ConversationHistory[n-model.HistoryLimit:]
	}
	rec.LastInteraction = time.Now().UTC()
	return r.store.Put(ctx, store.ContextKey(userID), rec, store.DefaultTTL)
}

// GetContext loads the rolling context record.
func (r *Records) GetContext(ctx context.Context, userID string) (model.ContextRecord, bool) {
	var rec model.ContextRecord
	found, err := r.store.Get(ctx, store.ContextKey(userID), &rec)
	if err != nil {
		log.Printf("[records] failed to load context for %s: %v", userID, err)
		return model.ContextRecord{}, false
	}
	return rec, found
}

// AppendHistory adds one message to the rolling context history. Errors
// are logged; the turn never fails on context persistence.
func (r *Records) AppendHistory(ctx context.Context, userID string, msg model.Message) {
	rec, _ := r.GetContext(ctx, userID)
	rec.AppendHistory(msg)
	if err := r.StoreContext(ctx, userID, rec); err != nil {
		log.Printf("[records] failed to append history for %s: %v", userID, err)
	}
}

// AddQuestion records a question the interviewer has asked, deduplicated
// against the existing list.
func (r *Records) AddQuestion(ctx context.Context, userID, question string) {
	question = strings.TrimSpace(question)
	if question == "" {
		return
	}
	rec, _ := r.GetContext(ctx, userID)
	if !rec.AddQuestion(question) {
		return
	}
	if err := r.StoreContext(ctx, userID, rec); err != nil {
		log.Printf("[records] failed to record question for %s: %v", userID, err)
	}
}

// StoreTranscript snapshots the full transcript under a short TTL so a
// reconnecting client can recover recent conversation.
func (r *Records) StoreTranscript(ctx context.Context, userID string, messages []model.Message) {
	if err := r.store.Put(ctx, store.HistoryKey(userID), messages, store.HistoryTTL); err != nil {
		log.Printf("[records] failed to snapshot transcript for %s: %v", userID, err)
	}
}

// GetTranscript loads the transcript snapshot.
func (r *Records) GetTranscript(ctx context.Context, userID string) ([]model.Message, bool) {
	var messages []model.Message
	found, err := r.store.Get(ctx, store.HistoryKey(userID), &messages)
	if err != nil {
		log.Printf("[records] failed to load transcript for %s: %v", userID, err)
		return nil, false
	}
	return messages, found
}

// StartTimer stamps the interview start time if not already running.
func (r *Records) StartTimer(ctx context.Context, userID string) error {
	key := store.TimerKey(userID)
	var existing time.Time
	if found, err := r.store.Get(ctx, key, &existing); err == nil && found {
		return nil
	}
	return r.store.Put(ctx, key, time.Now().UTC(), store.DefaultTTL)
}

// TimeRemaining reports how much of the interview budget is left. With
// no running timer the full budget is reported and running is false.
func (r *Records) TimeRemaining(ctx context.Context, userID string, budget time.Duration) (time.Duration, bool) {
	var startedAt time.Time
	found, err := r.store.Get(ctx, store.TimerKey(userID), &startedAt)
	if err != nil {
		log.Printf("[records] failed to load timer for %s: %v", userID, err)
		return budget, false
	}
	if !found {
		return budget, false
	}
	remaining := budget - time.Since(startedAt)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// Clear removes all stored interview state for a user.
func (r *Records) Clear(ctx context.Context, userID string) error {
	return r.store.Delete(ctx,
		store.PromptKey(userID),
		store.ContextKey(userID),
		store.HistoryKey(userID),
		store.TimerKey(userID),
	)
}
