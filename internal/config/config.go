package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every setting the service reads from the environment.
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	AI        AIConfig
	Prompt    PromptConfig
	Speech    SpeechConfig
	Redis     RedisConfig
	Archive   ArchiveConfig
	Interview InterviewConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	auth, err := loadAuthConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	prompt, err := loadPromptConfig()
	if err != nil {
		return nil, err
	}

	interview, err := loadInterviewConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		Auth:      auth,
		AI:        ai,
		Prompt:    prompt,
		Speech:    loadSpeechConfig(),
		Redis:     loadRedisConfig(),
		Archive:   ArchiveConfig{DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL"))},
		Interview: interview,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8000"
	}

	if strings.Contains(port, ":") {
		// Accept ":8000" or "127.0.0.1:8000" as-is.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AuthConfig carries the token signing secret.
type AuthConfig struct {
	SecretKey string
}

func loadAuthConfig() (AuthConfig, error) {
	secret := strings.TrimSpace(os.Getenv("SECRET_KEY"))
	if secret == "" {
		return AuthConfig{}, fmt.Errorf("SECRET_KEY environment variable is not set")
	}
	return AuthConfig{SecretKey: secret}, nil
}

// AIConfig describes the interview chat model. Temperature and the output
// token cap default to what the live turn pipeline expects.
type AIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Region      string
	Temperature float32
	MaxTokens   int
}

// Enabled reports whether model credentials were provided.
func (c AIConfig) Enabled() bool {
	return c.Model != "" && c.APIKey != ""
}

// NewChatModel builds the streaming chat model from this configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("chat model credentials missing: set AI_API_KEY and AI_MODEL")
	}

	temperature := c.Temperature
	maxTokens := c.MaxTokens

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		Model:       c.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature := float32(0.7)
	if override, err := parseOptionalFloat32Env("AI_TEMPERATURE"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		temperature = *override
	}

	maxTokens := 300
	if override, err := parseOptionalIntEnv("AI_MAX_TOKENS"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		maxTokens = *override
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("AI_API_KEY")),
		Model:       strings.TrimSpace(os.Getenv("AI_MODEL")),
		BaseURL:     getEnvOrDefault("AI_BASE_URL", ""),
		Region:      getEnvOrDefault("AI_REGION", ""),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}, nil
}

// PromptConfig describes the prompt-generation providers: a primary
// OpenAI-compatible model plus a Gemini fallback.
type PromptConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	GeminiKey   string
	GeminiModel string
	MaxTokens   int
}

// PrimaryEnabled reports whether the primary provider is configured.
func (c PromptConfig) PrimaryEnabled() bool {
	return c.Model != "" && c.APIKey != ""
}

// FallbackEnabled reports whether the Gemini fallback is configured.
func (c PromptConfig) FallbackEnabled() bool {
	return c.GeminiKey != ""
}

// NewPrimaryModel builds the primary prompt-generation chat model.
func (c PromptConfig) NewPrimaryModel(ctx context.Context) (model.ChatModel, error) {
	if !c.PrimaryEnabled() {
		return nil, fmt.Errorf("prompt model credentials missing: set PROMPT_API_KEY and PROMPT_MODEL")
	}

	maxTokens := c.MaxTokens
	cfg := &ark.ChatModelConfig{
		BaseURL:   c.BaseURL,
		APIKey:    c.APIKey,
		Model:     c.Model,
		MaxTokens: &maxTokens,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadPromptConfig() (PromptConfig, error) {
	maxTokens := 2000
	if override, err := parseOptionalIntEnv("PROMPT_MAX_TOKENS"); err != nil {
		return PromptConfig{}, err
	} else if override != nil {
		maxTokens = *override
	}

	return PromptConfig{
		APIKey:      strings.TrimSpace(os.Getenv("PROMPT_API_KEY")),
		Model:       strings.TrimSpace(os.Getenv("PROMPT_MODEL")),
		BaseURL:     getEnvOrDefault("PROMPT_BASE_URL", ""),
		GeminiKey:   strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel: getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		MaxTokens:   maxTokens,
	}, nil
}

// SpeechConfig describes the synthesis and transcription endpoints.
type SpeechConfig struct {
	APIKey   string
	BaseURL  string
	TTSModel string
	TTSVoice string
	STTModel string
}

// Enabled reports whether speech credentials were provided.
func (c SpeechConfig) Enabled() bool {
	return c.APIKey != ""
}

func loadSpeechConfig() SpeechConfig {
	apiKey := strings.TrimSpace(os.Getenv("SPEECH_API_KEY"))
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}

	return SpeechConfig{
		APIKey:   apiKey,
		BaseURL:  getEnvOrDefault("SPEECH_BASE_URL", "https://api.openai.com/v1"),
		TTSModel: getEnvOrDefault("SPEECH_TTS_MODEL", "tts-1"),
		TTSVoice: getEnvOrDefault("SPEECH_TTS_VOICE", "alloy"),
		STTModel: getEnvOrDefault("SPEECH_STT_MODEL", "whisper-1"),
	}
}

// RedisConfig describes the ephemeral store backend. An empty Host means
// the service runs on the in-memory store.
type RedisConfig struct {
	Host     string
	Port     string
	Username string
	Password string
}

// Enabled reports whether a Redis host was configured.
func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

// Addr returns the host:port dial address.
func (c RedisConfig) Addr() string {
	port := c.Port
	if port == "" {
		port = "6379"
	}
	return c.Host + ":" + port
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Host:     strings.TrimSpace(os.Getenv("REDIS_HOST")),
		Port:     strings.TrimSpace(os.Getenv("REDIS_PORT")),
		Username: getEnvOrDefault("REDIS_USERNAME", "default"),
		Password: os.Getenv("REDIS_PASSWORD"),
	}
}

// ArchiveConfig describes the persistent conversation archive. An empty
// DatabaseURL disables archiving.
type ArchiveConfig struct {
	DatabaseURL string
}

// Enabled reports whether archiving is configured.
func (c ArchiveConfig) Enabled() bool {
	return c.DatabaseURL != ""
}

// InterviewConfig bounds the live interview flow.
type InterviewConfig struct {
	MaxConcurrentUsers int
	Duration           time.Duration
	InactivityBudget   time.Duration
	WatchdogInterval   time.Duration
	TurnTimeout        time.Duration
	PromptTimeout      time.Duration
}

func loadInterviewConfig() (InterviewConfig, error) {
	cfg := InterviewConfig{
		MaxConcurrentUsers: 5,
		Duration:           10 * time.Minute,
		InactivityBudget:   6 * time.Minute,
		WatchdogInterval:   30 * time.Second,
		TurnTimeout:        60 * time.Second,
		PromptTimeout:      120 * time.Second,
	}

	if override, err := parseOptionalIntEnv("MAX_CONCURRENT_USERS"); err != nil {
		return InterviewConfig{}, err
	} else if override != nil {
		cfg.MaxConcurrentUsers = *override
	}

	if override, err := parseOptionalIntEnv("INTERVIEW_DURATION_SECONDS"); err != nil {
		return InterviewConfig{}, err
	} else if override != nil {
		cfg.Duration = time.Duration(*override) * time.Second
	}

	if override, err := parseOptionalIntEnv("INACTIVITY_TIMEOUT_SECONDS"); err != nil {
		return InterviewConfig{}, err
	} else if override != nil {
		cfg.InactivityBudget = time.Duration(*override) * time.Second
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalFloat32Env(key string) (*float32, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	result := float32(val)
	return &result, nil
}
