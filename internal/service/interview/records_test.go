package interview

import (
	"context"
	"testing"
	"time"

	model "github.com/HamdanKAlmehairbi/DellioProject/internal/model/interview"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/store"
)

func TestPromptRoundTrip(t *testing.T) {
	records := NewRecords(store.NewMemoryStore())
	ctx := context.Background()

	if _, found := records.GetPrompt(ctx, "user-1"); found {
		t.Fatal("prompt should be absent before storing")
	}

	if err := records.StorePrompt(ctx, "user-1", model.PromptRecord{Prompt: "interview prompt"}); err != nil {
		t.Fatalf("StorePrompt err: %v", err)
	}

	rec, found := records.GetPrompt(ctx, "user-1")
	if !found {
		t.Fatal("prompt not found after storing")
	}
	if rec.Prompt != "interview prompt" {
		t.Errorf("prompt = %q", rec.Prompt)
	}
	if rec.CreatedAt == "" {
		t.Error("CreatedAt not stamped")
	}
}

func TestHistoryTrimmedToLimit(t *testing.T) {
	records := NewRecords(store.NewMemoryStore())
	ctx := context.Background()

	for i := 0; i < model.HistoryLimit+4; i++ {
		records.AppendHistory(ctx, "user-1", model.Message{Role: model.RoleCandidate, Content: "answer"})
	}

	rec, found := records.GetContext(ctx, "user-1")
	if !found {
		t.Fatal("context record missing")
	}
	if len(rec.ConversationHistory) != model.HistoryLimit {
		t.Errorf("history length = %d, want %d", len(rec.ConversationHistory), model.HistoryLimit)
	}
}

func TestAddQuestionDeduplicates(t *testing.T) {
	records := NewRecords(store.NewMemoryStore())
	ctx := context.Background()

	records.AddQuestion(ctx, "user-1", "What is your greatest strength?")
	records.AddQuestion(ctx, "user-1", "What is your greatest strength?")
	records.AddQuestion(ctx, "user-1", "   ")

	rec, _ := records.GetContext(ctx, "user-1")
	if len(rec.QuestionsAsked) != 1 {
		t.Errorf("questions asked = %+v, want one entry", rec.QuestionsAsked)
	}
}

func TestTimerLifecycle(t *testing.T) {
	records := NewRecords(store.NewMemoryStore())
	ctx := context.Background()
	budget := 10 * time.Minute

	remaining, running := records.TimeRemaining(ctx, "user-1", budget)
	if running {
		t.Fatal("timer should not be running before start")
	}
	if remaining != budget {
		t.Errorf("remaining = %s, want full budget", remaining)
	}

	if err := records.StartTimer(ctx, "user-1"); err != nil {
		t.Fatalf("StartTimer err: %v", err)
	}
	// Starting again must not reset the clock.
	if err := records.StartTimer(ctx, "user-1"); err != nil {
		t.Fatalf("second StartTimer err: %v", err)
	}

	remaining, running = records.TimeRemaining(ctx, "user-1", budget)
	if !running {
		t.Fatal("timer should be running after start")
	}
	if remaining <= 0 || remaining > budget {
		t.Errorf("remaining = %s", remaining)
	}
}

func TestClearRemovesAllState(t *testing.T) {
	records := NewRecords(store.NewMemoryStore())
	ctx := context.Background()

	records.StorePrompt(ctx, "user-1", model.PromptRecord{Prompt: "p"})
	records.AppendHistory(ctx, "user-1", model.Message{Role: model.RoleCandidate, Content: "hi"})
	records.StartTimer(ctx, "user-1")
	records.StoreTranscript(ctx, "user-1", []model.Message{{Role: model.RoleCandidate, Content: "hi"}})

	if err := records.Clear(ctx, "user-1"); err != nil {
		t.Fatalf("Clear err: %v", err)
	}

	if _, found := records.GetPrompt(ctx, "user-1"); found {
		t.Error("prompt survived Clear")
	}
	if _, found := records.GetContext(ctx, "user-1"); found {
		t.Error("context survived Clear")
	}
	if _, found := records.GetTranscript(ctx, "user-1"); found {
		t.Error("transcript survived Clear")
	}
	if _, running := records.TimeRemaining(ctx, "user-1", time.Minute); running {
		t.Error("timer survived Clear")
	}
}
