// Package prompt generates the per-candidate interview prompt from a
// resume and job description. A primary OpenAI-compatible model is tried
// first; a Gemini fallback takes over with bounded retries when the
// fallback provider reports overload.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/sethvargo/go-retry"
	"google.golang.org/genai"

	"github.com/HamdanKAlmehairbi/DellioProject/internal/config"
)

// ErrNoProvider is returned when neither provider is configured.
var ErrNoProvider = errors.New("no prompt provider configured")

// Retry policy for the fallback provider: three attempts in total, with
// a linear 2s, 4s backoff between them. Only overloaded-class errors are
// retried; anything else propagates immediately.
const (
	fallbackAttempts = 3
	retryStep        = 2 * time.Second
)

const systemTemplate = `Create me a prompt in this exact format and fill in the square brackets
with the appropriate information based on the resume and job description:
"You are Noah, a professional interviewer conducting a job interview.
IMPORTANT ROLE INSTRUCTIONS:
- You are ALWAYS the interviewer, never the interviewee
- You must ONLY speak as Noah the interviewer
- Never respond as if you are the candidate
- Never pretend to be the person being interviewed
- Always ask questions and respond from the interviewer's perspective

Your task is to interview a candidate named [CANDIDATE NAME] for a position at [COMPANY NAME] in a virtual interview.
The job description is: [SUMMARIZE THE JOB DESCRIPTION GREATLY]
The candidate's background: [SUMMARIZE THE CANDIDATE'S EXPERIENCE GREATLY]

Interview guidance:
- Begin with a friendly introduction as Noah the interviewer
- Ask questions naturally as part of the conversation
- Balance follow-ups with progression to new topics
- Focus on their experience and qualifications
- Assess their fit for the role

Question topics to cover:
[BEHAVIORAL QUESTION ABOUT RESUME EXPERIENCE]
[ROLE-SPECIFIC QUESTION FROM JOB DESC]
[TECHNICAL QUESTION RELEVANT TO ROLE]
[CULTURE FIT QUESTION]
[PROBLEM-SOLVING SCENARIO]
[PAST EXPERIENCE DEEP DIVE]
[HYPOTHETICAL SITUATION QUESTION]
[CAREER GOALS QUESTION]

IMPORTANT FORMAT RULES:
- Do not use quotation marks or colons in responses
- Do not number questions
- Do not prefix responses with 'Noah:'
- Speak naturally as the interviewer
- Never switch perspectives to the candidate's side
- ALWAYS end your responses with a question
- Balance between follow-up and new topic questions (unless clarity is crucial)
- Never end with just a statement`

// provider is one prompt-generation backend.
type provider interface {
	generate(ctx context.Context, resume, jobDescription string) (string, error)
	name() string
}

// Generator runs the primary/fallback generation flow.
type Generator struct {
	primary  provider
	fallback provider
	step     time.Duration
}

// NewGenerator wires the configured providers. Either may be absent; at
// least one must be configured for Generate to succeed.
func NewGenerator(ctx context.Context, cfg config.PromptConfig) (*Generator, error) {
	g := &Generator{step: retryStep}

	if cfg.PrimaryEnabled() {
		chatModel, err := cfg.NewPrimaryModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create primary prompt model: %w", err)
		}
		g.primary = &chatModelProvider{chatModel: chatModel}
	}

	if cfg.FallbackEnabled() {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.GeminiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		g.fallback = &geminiProvider{
			client:    client,
			model:     cfg.GeminiModel,
			maxTokens: cfg.MaxTokens,
		}
	}

	if g.primary == nil && g.fallback == nil {
		return nil, ErrNoProvider
	}
	return g, nil
}

func newWithProviders(primary, fallback provider) *Generator {
	return &Generator{primary: primary, fallback: fallback, step: time.Millisecond}
}

// Generate produces the interview prompt. Primary failures fall through
// to the fallback; fallback overload is retried with linear backoff.
func (g *Generator) Generate(ctx context.Context, resume, jobDescription string) (string, error) {
	if g.primary != nil {
		out, err := g.primary.generate(ctx, resume, jobDescription)
		if err == nil && strings.TrimSpace(out) != "" {
			return out, nil
		}
		if err != nil {
			log.Printf("[prompt] primary provider %s failed: %v", g.primary.name(), err)
		}
	}

	if g.fallback == nil {
		return "", ErrNoProvider
	}

	var out string
	attempt := 0
	backoff := retry.WithMaxRetries(fallbackAttempts-1, retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		return time.Duration(attempt) * g.step, false
	}))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var genErr error
		out, genErr = g.fallback.generate(ctx, resume, jobDescription)
		if genErr != nil {
			if isOverloaded(genErr) {
				log.Printf("[prompt] fallback provider %s overloaded, will retry: %v", g.fallback.name(), genErr)
				return retry.RetryableError(genErr)
			}
			return genErr
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("prompt generation failed: %w", err)
	}
	return out, nil
}

func isOverloaded(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "resource exhausted") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "503")
}

func userContent(resume, jobDescription string) string {
	return fmt.Sprintf("Resume:\n%s\n\nJob Description:\n%s", resume, jobDescription)
}

// chatModelProvider generates via the configured eino chat model.
type chatModelProvider struct {
	chatModel model.ChatModel
}

func (p *chatModelProvider) name() string { return "chat-model" }

func (p *chatModelProvider) generate(ctx context.Context, resume, jobDescription string) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(systemTemplate),
		schema.UserMessage(userContent(resume, jobDescription)),
	}

	resp, err := p.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Content == "" {
		return "", errors.New("empty response from chat model")
	}
	return resp.Content, nil
}

// geminiProvider generates via the Gemini API.
type geminiProvider struct {
	client    *genai.Client
	model     string
	maxTokens int
}

func (p *geminiProvider) name() string { return "gemini" }

func (p *geminiProvider) generate(ctx context.Context, resume, jobDescription string) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model,
		genai.Text(userContent(resume, jobDescription)),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemTemplate, genai.RoleUser),
			MaxOutputTokens:   int32(p.maxTokens),
		})
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if text == "" {
		return "", errors.New("empty response from gemini")
	}
	return text, nil
}
