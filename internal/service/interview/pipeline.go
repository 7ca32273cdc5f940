package interview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	model "github.com/HamdanKAlmehairbi/DellioProject/internal/model/interview"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/ai"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/connection"
)

// Streamer opens an incremental model response stream for a turn.
type Streamer interface {
	OpenStream(ctx context.Context, messages []model.Message) (ai.TokenStream, error)
}

// Synthesizer converts one interviewer sentence into audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, userID, text string) ([]byte, error)
}

// Pipeline drives one interviewer turn: model tokens are accumulated
// into sentences, each completed sentence is synthesized and delivered
// as a frame, in order, before the next one starts. Provider failures
// abort the turn with an error; a transport that goes away mid-turn ends
// delivery quietly, since the session may be resumed on a new connection.
type Pipeline struct {
	streamer Streamer
	synth    Synthesizer
	records  *Records
}

// NewPipeline wires the turn pipeline.
func NewPipeline(streamer Streamer, synth Synthesizer, records *Records) *Pipeline {
	return &Pipeline{streamer: streamer, synth: synth, records: records}
}

// Run executes one interviewer turn over the given model messages.
func (p *Pipeline) Run(ctx context.Context, sess *model.Session, reg *connection.Registration, messages []model.Message) error {
	if err := reg.Send(model.SpeakerChangeFrame(model.SpeakerInterviewer, false)); err != nil {
		return nil
	}

	stream, err := p.streamer.OpenStream(ctx, messages)
	if err != nil {
		return fmt.Errorf("open model stream: %w", err)
	}
	defer stream.Close()

	reg.SetPartial("")
	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("model stream: %w", err)
		}

		complete, rest := SplitSentences(reg.Partial() + delta)
		reg.SetPartial(rest)
		for _, sentence := range complete {
			if err := p.deliver(ctx, sess, reg, sentence); err != nil {
				if errors.Is(err, connection.ErrClosed) {
					log.Printf("[pipeline] connection gone mid-turn for user %s", sess.UserID)
					return nil
				}
				return err
			}
		}
	}

	// Flush whatever fragment the stream ended on.
	if rest := reg.Partial(); strings.TrimSpace(rest) != "" {
		reg.SetPartial("")
		if err := p.deliver(ctx, sess, reg, rest); err != nil {
			if errors.Is(err, connection.ErrClosed) {
				return nil
			}
			return err
		}
	}

	if err := reg.Send(model.SpeakerChangeFrame(model.SpeakerUser, true)); err != nil && !errors.Is(err, connection.ErrClosed) {
		log.Printf("[pipeline] failed to send turn-end frame to user %s: %v", sess.UserID, err)
	}
	return nil
}

// deliver synthesizes one sentence and writes its frame, then records it
// in the transcript and rolling context.
func (p *Pipeline) deliver(ctx context.Context, sess *model.Session, reg *connection.Registration, sentence string) error {
	sentence = strings.TrimSpace(sentence)
	if sentence == "" {
		return nil
	}

	audio, err := p.synth.Synthesize(ctx, sess.UserID, sentence)
	if err != nil {
		return fmt.Errorf("synthesize sentence: %w", err)
	}

	if err := reg.Send(model.SentenceFrame(sentence, audio)); err != nil {
		if !errors.Is(err, connection.ErrClosed) {
			log.Printf("[pipeline] write failed for user %s: %v", sess.UserID, err)
		}
		return connection.ErrClosed
	}

	sess.AddMessage(model.RoleInterviewer, sentence)
	p.records.AppendHistory(ctx, sess.UserID, model.Message{Role: model.RoleInterviewer, Content: sentence})
	if strings.HasSuffix(sentence, "?") {
		p.records.AddQuestion(ctx, sess.UserID, sentence)
	}
	return nil
}
