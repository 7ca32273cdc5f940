package interview

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HamdanKAlmehairbi/DellioProject/internal/config"
	model "github.com/HamdanKAlmehairbi/DellioProject/internal/model/interview"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/store"
)

func testInterviewConfig() config.InterviewConfig {
	return config.InterviewConfig{
		MaxConcurrentUsers: 5,
		Duration:           10 * time.Minute,
		InactivityBudget:   6 * time.Minute,
		WatchdogInterval:   30 * time.Second,
		TurnTimeout:        time.Second,
		PromptTimeout:      time.Second,
	}
}

type captureArchiver struct {
	mu       sync.Mutex
	email    string
	userID   string
	messages []model.Message
	done     chan struct{}
	err      error
}

func newCaptureArchiver() *captureArchiver {
	return &captureArchiver{done: make(chan struct{})}
}

func (a *captureArchiver) Store(_ context.Context, email, userID string, messages []model.Message) error {
	a.mu.Lock()
	a.email = email
	a.userID = userID
	a.messages = messages
	a.mu.Unlock()
	close(a.done)
	return a.err
}

func newTestService(stream *scriptedStream, archiver Archiver) (*Service, *fakeStreamer, *Records) {
	records := NewRecords(store.NewMemoryStore())
	streamer := &fakeStreamer{stream: stream}
	pipeline := NewPipeline(streamer, &fakeSynth{}, records)
	return NewService(testInterviewConfig(), records, pipeline, archiver), streamer, records
}

func TestRunGreetingMarksGreeted(t *testing.T) {
	stream := &scriptedStream{chunks: []string{"Hello, I am your interviewer. Shall we begin?"}}
	svc, streamer, _ := newTestService(stream, nil)

	sess := model.NewSession("user-1", "u@example.com", "You are the interviewer.")
	reg := connect(t, newFakeTransport())

	if err := svc.RunGreeting(context.Background(), sess, reg); err != nil {
		t.Fatalf("RunGreeting err: %v", err)
	}
	if !sess.Greeted() {
		t.Error("session not marked greeted")
	}
	if got := sess.CurrentState(); got != model.StateAwaitingInput {
		t.Errorf("state = %s, want %s", got, model.StateAwaitingInput)
	}

	// The kickoff instruction reaches the model but never the transcript.
	last := streamer.messages[len(streamer.messages)-1]
	if last.Role != model.RoleCandidate || last.Content != greetingInstruction {
		t.Errorf("last model message = %+v", last)
	}
	for _, msg := range sess.Transcript() {
		if msg.Content == greetingInstruction {
			t.Error("greeting instruction leaked into transcript")
		}
	}
	if !strings.Contains(streamer.messages[0].Content, "warm introduction") {
		t.Errorf("system message missing opening guidance: %q", streamer.messages[0].Content)
	}
}

func TestHandleCandidateTextIgnoresEmptyInput(t *testing.T) {
	svc, streamer, _ := newTestService(&scriptedStream{}, nil)
	sess := model.NewSession("user-1", "u@example.com", "prompt")
	reg := connect(t, newFakeTransport())

	if err := svc.HandleCandidateText(context.Background(), sess, reg, "   "); err != nil {
		t.Fatalf("HandleCandidateText err: %v", err)
	}
	if streamer.messages != nil {
		t.Error("model should not be called for empty input")
	}
	if len(sess.Transcript()) != 0 {
		t.Error("empty input must not enter the transcript")
	}
}

func TestTurnMessagesWindowAfterGreeting(t *testing.T) {
	svc, _, _ := newTestService(&scriptedStream{}, nil)
	sess := model.NewSession("user-1", "u@example.com", "base prompt")
	sess.MarkGreeted()
	for i := 0; i < 8; i++ {
		role := model.RoleCandidate
		if i%2 == 1 {
			role = model.RoleInterviewer
		}
		sess.AddMessage(role, strings.Repeat("m", i+1))
	}

	messages := svc.turnMessages(sess)
	if len(messages) != modelWindow+1 {
		t.Fatalf("got %d messages, want %d", len(messages), modelWindow+1)
	}
	if messages[0].Role != model.RoleSystem {
		t.Errorf("first message role = %s", messages[0].Role)
	}
	if !strings.Contains(messages[0].Content, "open-ended questions") {
		t.Errorf("system message missing mid-interview guidance: %q", messages[0].Content)
	}
	// The window keeps the most recent transcript entries.
	if got := messages[len(messages)-1].Content; got != strings.Repeat("m", 8) {
		t.Errorf("last message = %q", got)
	}
}

func TestHandleCandidateTextRunsTurn(t *testing.T) {
	stream := &scriptedStream{chunks: []string{"Interesting. What drew you to that work?"}}
	svc, _, records := newTestService(stream, nil)

	sess := model.NewSession("user-1", "u@example.com", "prompt")
	sess.MarkGreeted()
	transport := newFakeTransport()
	reg := connect(t, transport)

	if err := svc.HandleCandidateText(context.Background(), sess, reg, "I built a search service."); err != nil {
		t.Fatalf("HandleCandidateText err: %v", err)
	}

	transcript := sess.Transcript()
	if len(transcript) != 3 {
		t.Fatalf("transcript = %+v, want candidate + 2 interviewer sentences", transcript)
	}
	if transcript[0].Role != model.RoleCandidate {
		t.Errorf("transcript[0] = %+v", transcript[0])
	}

	rec, found := records.GetContext(context.Background(), "user-1")
	if !found {
		t.Fatal("context record missing")
	}
	if len(rec.QuestionsAsked) != 1 {
		t.Errorf("questions asked = %+v", rec.QuestionsAsked)
	}
}

func TestRunTurnReportsFailureToClient(t *testing.T) {
	svc, streamer, _ := newTestService(&scriptedStream{}, nil)
	streamer.openErr = errors.New("model unavailable")

	sess := model.NewSession("user-1", "u@example.com", "prompt")
	transport := newFakeTransport()
	reg := connect(t, transport)

	if err := svc.HandleCandidateText(context.Background(), sess, reg, "hello"); err == nil {
		t.Fatal("expected turn error")
	}
	if got := sess.CurrentState(); got != model.StateAwaitingInput {
		t.Errorf("state = %s, want %s (session stays usable)", got, model.StateAwaitingInput)
	}

	frames := transport.sent()
	last := frames[len(frames)-1]
	if last.Type != model.FrameSystem {
		t.Errorf("last frame = %+v, want system notice", last)
	}
}

func TestWatchdogExpiresIdleSession(t *testing.T) {
	svc, _, _ := newTestService(&scriptedStream{}, nil)
	svc.cfg.WatchdogInterval = 5 * time.Millisecond
	svc.cfg.InactivityBudget = time.Millisecond

	sess := model.NewSession("user-1", "u@example.com", "prompt")
	transport := newFakeTransport()
	reg := connect(t, transport)

	expired := make(chan struct{})
	done := make(chan struct{})
	go func() {
		svc.Watchdog(context.Background(), sess, reg, func() { close(expired) })
		close(done)
	}()

	select {
	case <-expired:
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog did not expire idle session")
	}
	<-done

	if got := sess.CurrentState(); got != model.StateClosed {
		t.Errorf("state = %s, want %s", got, model.StateClosed)
	}
	frames := transport.sent()
	if len(frames) != 1 || frames[0].Content != inactivityNotice {
		t.Errorf("frames = %+v, want inactivity notice", frames)
	}
}

func TestWatchdogStopsOnCancel(t *testing.T) {
	svc, _, _ := newTestService(&scriptedStream{}, nil)
	svc.cfg.WatchdogInterval = 5 * time.Millisecond

	sess := model.NewSession("user-1", "u@example.com", "prompt")
	reg := connect(t, newFakeTransport())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Watchdog(ctx, sess, reg, func() { t.Error("expire must not fire on cancel") })
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog goroutine leaked after cancel")
	}
}

func TestTeardownSnapshotsAndArchives(t *testing.T) {
	archiver := newCaptureArchiver()
	svc, _, records := newTestService(&scriptedStream{}, archiver)

	sess := model.NewSession("user-1", "u@example.com", "prompt")
	sess.AddMessage(model.RoleInterviewer, "Tell me about yourself.")
	sess.AddMessage(model.RoleCandidate, "I am an engineer.")

	svc.Teardown(sess)

	select {
	case <-archiver.done:
	case <-time.After(2 * time.Second):
		t.Fatal("archiver never invoked")
	}
	if archiver.email != "u@example.com" || len(archiver.messages) != 2 {
		t.Errorf("archived %q with %d messages", archiver.email, len(archiver.messages))
	}

	snapshot, found := records.GetTranscript(context.Background(), "user-1")
	if !found || len(snapshot) != 2 {
		t.Errorf("transcript snapshot = %+v (found=%v)", snapshot, found)
	}
}

func TestTeardownWithoutArchiverOrMessages(t *testing.T) {
	svc, _, records := newTestService(&scriptedStream{}, nil)
	sess := model.NewSession("user-1", "u@example.com", "prompt")

	svc.Teardown(sess)

	if _, found := records.GetTranscript(context.Background(), "user-1"); found {
		t.Error("empty transcript should not be snapshotted")
	}
	if got := sess.CurrentState(); got != model.StateClosed {
		t.Errorf("state = %s, want %s", got, model.StateClosed)
	}
}
