// Package speech talks to the OpenAI-compatible audio endpoints: speech
// synthesis for interviewer sentences and transcription for candidate
// audio.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/HamdanKAlmehairbi/DellioProject/internal/config"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/store"
)

// MaxSynthesisInput is the provider's hard limit on synthesis input.
// Longer input is an error, never truncated.
const MaxSynthesisInput = 4096

var (
	// ErrTextTooLong is returned for synthesis input over MaxSynthesisInput.
	ErrTextTooLong = errors.New("text length exceeds synthesis input limit")
	// ErrEmptyAudio is returned when the provider responds with no audio.
	ErrEmptyAudio = errors.New("received empty audio data")
)

// Client calls the speech provider.
type Client struct {
	cfg        config.SpeechConfig
	httpClient *http.Client
	blobs      store.Store
}

// NewClient builds a speech client. blobs may be nil to disable audio
// caching.
func NewClient(cfg config.SpeechConfig, blobs store.Store) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		blobs:      blobs,
	}
}

type synthesisRequest struct {
	Model string `json:"model"`
	Voice string `json:"voice"`
	Input string `json:"input"`
}

// Synthesize converts one sentence to audio bytes.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if len(text) > MaxSynthesisInput {
		return nil, ErrTextTooLong
	}

	payload, err := json.Marshal(synthesisRequest{
		Model: c.cfg.TTSModel,
		Voice: c.cfg.TTSVoice,
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal synthesis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/audio/speech", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build synthesis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("synthesis returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read synthesis response: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	return audio, nil
}

// SynthesizeAndCache synthesizes and parks the audio blob in the store
// under a short TTL so clients can re-fetch it during playback. Cache
// failures are logged, never fatal.
func (c *Client) SynthesizeAndCache(ctx context.Context, userID, text string) ([]byte, string, error) {
	audio, err := c.Synthesize(ctx, text)
	if err != nil {
		return nil, "", err
	}

	key := ""
	if c.blobs != nil {
		key = store.AudioKey(userID, uuid.NewString())
		if err := c.blobs.PutBytes(ctx, key, audio, store.AudioTTL); err != nil {
			log.Printf("[speech] failed to cache audio blob %s: %v", key, err)
			key = ""
		}
	}
	return audio, key, nil
}

// Transcribe converts candidate audio into text via the multipart
// transcription endpoint.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename, language, hint string) (string, error) {
	if len(audio) == 0 {
		return "", errors.New("empty audio payload")
	}
	if filename == "" {
		filename = "audio.wav"
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("build transcription form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("write audio to form: %w", err)
	}
	_ = writer.WriteField("model", c.cfg.STTModel)
	if language != "" {
		_ = writer.WriteField("language", language)
	}
	if hint != "" {
		_ = writer.WriteField("prompt", hint)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close transcription form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("build transcription request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("transcription returned status %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode transcription response: %w", err)
	}
	return parsed.Text, nil
}
