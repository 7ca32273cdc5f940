// Package ai wraps the chat model behind the narrow token-stream
// interface the turn pipeline consumes.
package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/HamdanKAlmehairbi/DellioProject/internal/config"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/model/interview"
)

// TokenStream yields incremental text deltas of one model response.
// Recv returns io.EOF when the response is exhausted.
type TokenStream interface {
	Recv() (string, error)
	Close()
}

// Service owns the interview chat model.
type Service struct {
	chatModel model.ChatModel
	cfg       config.AIConfig
}

// NewService builds the chat model from configuration.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return &Service{chatModel: chatModel, cfg: cfg}, nil
}

// OpenStream starts a streaming completion over the given message list.
func (s *Service) OpenStream(ctx context.Context, messages []interview.Message) (TokenStream, error) {
	stream, err := s.chatModel.Stream(ctx, toSchemaMessages(messages))
	if err != nil {
		return nil, fmt.Errorf("failed to open model stream: %w", err)
	}
	return &modelStream{inner: stream}, nil
}

func toSchemaMessages(messages []interview.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case interview.RoleSystem:
			out = append(out, schema.SystemMessage(msg.Content))
		case interview.RoleCandidate:
			out = append(out, schema.UserMessage(msg.Content))
		case interview.RoleInterviewer:
			out = append(out, schema.AssistantMessage(msg.Content, nil))
		default:
			log.Printf("[ai] dropping message with unknown role %q", msg.Role)
		}
	}
	return out
}

// modelStream adapts the eino stream reader, skipping empty chunks.
type modelStream struct {
	inner *schema.StreamReader[*schema.Message]
}

func (s *modelStream) Recv() (string, error) {
	for {
		chunk, err := s.inner.Recv()
		if err != nil {
			return "", err
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		return chunk.Content, nil
	}
}

func (s *modelStream) Close() {
	s.inner.Close()
}
