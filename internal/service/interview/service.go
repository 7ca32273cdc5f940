// Package interview runs the live interview: it builds model context per
// turn, streams interviewer sentences through the synthesis pipeline,
// watches sessions for inactivity and archives transcripts on teardown.
package interview

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/HamdanKAlmehairbi/DellioProject/internal/config"
	model "github.com/HamdanKAlmehairbi/DellioProject/internal/model/interview"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/connection"
)

// modelWindow bounds how many transcript entries are forwarded to the
// model per turn once the greeting has completed.
const modelWindow = 5

// greetingInstruction is injected as the candidate turn that kicks off a
// fresh interview. It never enters the transcript.
const greetingInstruction = "[SYSTEM MESSAGE] Start the interview by introducing yourself briefly and ask the first question"

// System prompt suffixes. The opening turn asks for an introduction;
// later turns steer toward broad questions over repeated follow-ups.
const (
	preGreetingGuidance  = "\n\nBegin with a warm introduction as the interviewer, then ask your first question."
	midInterviewGuidance = "\n\nContinue the interview based on the conversation so far. Ask broad, open-ended questions more often than follow-ups."
)

// inactivityNotice is sent before an idle session is closed.
const inactivityNotice = "Interview ended due to inactivity"

// Archiver persists finished transcripts. Implemented by the postgres
// archive; nil disables archiving.
type Archiver interface {
	Store(ctx context.Context, email, userID string, messages []model.Message) error
}

// Service owns the live interview flow on top of the turn pipeline.
type Service struct {
	cfg      config.InterviewConfig
	records  *Records
	pipeline *Pipeline
	archiver Archiver
}

// NewService wires the interview orchestrator.
func NewService(cfg config.InterviewConfig, records *Records, pipeline *Pipeline, archiver Archiver) *Service {
	return &Service{cfg: cfg, records: records, pipeline: pipeline, archiver: archiver}
}

// Records exposes the store-backed interview state operations.
func (s *Service) Records() *Records { return s.records }

// Duration returns the configured interview length.
func (s *Service) Duration() time.Duration { return s.cfg.Duration }

// RunGreeting performs the opening interviewer turn for a new session.
func (s *Service) RunGreeting(ctx context.Context, sess *model.Session, reg *connection.Registration) error {
	sess.SetState(model.StateGreeting)

	messages := s.turnMessages(sess)
	messages = append(messages, model.Message{Role: model.RoleCandidate, Content: greetingInstruction})

	if err := s.runTurn(ctx, sess, reg, messages); err != nil {
		return err
	}
	sess.MarkGreeted()
	return nil
}

// HandleCandidateText processes one candidate utterance and produces the
// interviewer's response turn. Empty input is ignored.
func (s *Service) HandleCandidateText(ctx context.Context, sess *model.Session, reg *connection.Registration, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sess.AddMessage(model.RoleCandidate, text)
	s.records.AppendHistory(ctx, sess.UserID, model.Message{Role: model.RoleCandidate, Content: text})

	return s.runTurn(ctx, sess, reg, s.turnMessages(sess))
}

// turnMessages assembles the model context: the per-candidate prompt
// with phase guidance, then either the full transcript (pre-greeting) or
// its most recent window.
func (s *Service) turnMessages(sess *model.Session) []model.Message {
	system := sess.Prompt
	if sess.Greeted() {
		system += midInterviewGuidance
	} else {
		system += preGreetingGuidance
	}

	transcript := sess.Transcript()
	if sess.Greeted() && len(transcript) > modelWindow {
		transcript = transcript[len(transcript)-modelWindow:]
	}

	messages := make([]model.Message, 0, len(transcript)+1)
	messages = append(messages, model.Message{Role: model.RoleSystem, Content: system})
	messages = append(messages, transcript...)
	return messages
}

// runTurn executes one interviewer turn under the connection's turn lock
// and the configured turn deadline.
func (s *Service) runTurn(ctx context.Context, sess *model.Session, reg *connection.Registration, messages []model.Message) error {
	reg.LockTurn()
	defer reg.UnlockTurn()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.TurnTimeout)
	defer cancel()

	sess.SetState(model.StateGenerating)
	err := s.pipeline.Run(ctx, sess, reg, messages)
	sess.SetState(model.StateAwaitingInput)

	if err != nil {
		log.Printf("[interview] turn failed for user %s: %v", sess.UserID, err)
		if sendErr := reg.Send(model.SystemFrame("There was a problem generating a response. Please try again.")); sendErr != nil && !errors.Is(sendErr, connection.ErrClosed) {
			log.Printf("[interview] failed to notify user %s of turn failure: %v", sess.UserID, sendErr)
		}
		return err
	}
	return nil
}

// Watchdog periodically checks the session for inactivity and, once the
// budget is exceeded, notifies the client and invokes expire. It returns
// when the context is cancelled, the connection closes or the session
// expires. Run it in its own goroutine per connection.
func (s *Service) Watchdog(ctx context.Context, sess *model.Session, reg *connection.Registration, expire func()) {
	ticker := time.NewTicker(s.cfg.WatchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !reg.Open() {
				return
			}
			if !sess.IsInactive(s.cfg.InactivityBudget) {
				continue
			}

			log.Printf("[interview] closing session for user %s after inactivity", sess.UserID)
			if err := reg.Send(model.SystemFrame(inactivityNotice)); err != nil {
				log.Printf("[interview] failed to send inactivity notice to user %s: %v", sess.UserID, err)
			}
			sess.SetState(model.StateClosed)
			expire()
			return
		}
	}
}

// Teardown closes out a session: the transcript is snapshotted to the
// store and handed to the archiver without blocking the caller.
func (s *Service) Teardown(sess *model.Session) {
	sess.SetState(model.StateClosed)

	transcript := sess.Transcript()
	if len(transcript) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.records.StoreTranscript(ctx, sess.UserID, transcript)

	if s.archiver == nil {
		return
	}
	go func() {
		actx, acancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer acancel()
		if err := s.archiver.Store(actx, sess.Email, sess.UserID, transcript); err != nil {
			log.Printf("[interview] failed to archive conversation for user %s: %v", sess.UserID, err)
		}
	}()
}
