package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/HamdanKAlmehairbi/DellioProject/internal/config"
	model "github.com/HamdanKAlmehairbi/DellioProject/internal/model/interview"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/admission"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/ai"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/connection"
	interviewservice "github.com/HamdanKAlmehairbi/DellioProject/internal/service/interview"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/speech"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/token"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/store"
)

type noopStreamer struct{}

func (noopStreamer) OpenStream(context.Context, []model.Message) (ai.TokenStream, error) {
	return nil, errors.New("no model in tests")
}

type noopSynth struct{}

func (noopSynth) Synthesize(context.Context, string, string) ([]byte, error) {
	return nil, errors.New("no synthesis in tests")
}

type testEnv struct {
	router http.Handler
	tokens *token.Manager
}

func newTestEnv(t *testing.T, capacity int, speechClient *speech.Client) *testEnv {
	t.Helper()

	tokens, err := token.NewManager("test-secret")
	if err != nil {
		t.Fatalf("NewManager err: %v", err)
	}

	st := store.NewMemoryStore()
	records := interviewservice.NewRecords(st)
	pipeline := interviewservice.NewPipeline(noopStreamer{}, noopSynth{}, records)
	interviews := interviewservice.NewService(config.InterviewConfig{
		MaxConcurrentUsers: capacity,
		Duration:           10 * time.Minute,
		InactivityBudget:   6 * time.Minute,
		WatchdogInterval:   30 * time.Second,
		TurnTimeout:        time.Second,
		PromptTimeout:      time.Second,
	}, records, pipeline, nil)

	router := NewRouter(Deps{
		Tokens:        tokens,
		Interviews:    interviews,
		Admission:     admission.New(st, capacity),
		Connections:   connection.NewManager(),
		Prompts:       nil,
		Speech:        speechClient,
		PromptTimeout: time.Second,
	})

	return &testEnv{router: router, tokens: tokens}
}

func (e *testEnv) accessToken(t *testing.T, userID string) string {
	t.Helper()
	pair, err := e.tokens.GeneratePair(userID, userID+"@example.com")
	if err != nil {
		t.Fatalf("GeneratePair err: %v", err)
	}
	return pair.AccessToken
}

func (e *testEnv) do(t *testing.T, method, path, bearer string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return payload
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, 5, nil)
	rec := env.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestTokenFlow(t *testing.T) {
	env := newTestEnv(t, 5, nil)

	body, _ := json.Marshal(map[string]string{"user_id": "user-1", "email": "u@example.com"})
	rec := env.do(t, http.MethodPost, "/generate-token", "", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("generate-token status = %d: %s", rec.Code, rec.Body.String())
	}
	payload := decodeBody(t, rec)
	refresh, _ := payload["refresh_token"].(string)
	if refresh == "" {
		t.Fatal("missing refresh token")
	}

	body, _ = json.Marshal(map[string]string{"refresh_token": refresh})
	rec = env.do(t, http.MethodPost, "/refresh-token", "", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh-token status = %d: %s", rec.Code, rec.Body.String())
	}
	if access, _ := decodeBody(t, rec)["access_token"].(string); access == "" {
		t.Fatal("refresh did not issue a new access token")
	}
}

func TestGenerateTokenRejectsMissingFields(t *testing.T) {
	env := newTestEnv(t, 5, nil)
	body, _ := json.Marshal(map[string]string{"user_id": "user-1"})
	rec := env.do(t, http.MethodPost, "/generate-token", "", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, 5, nil)

	rec := env.do(t, http.MethodGet, "/queue-status", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/queue-status", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status with bad token = %d", rec.Code)
	}
}

func TestQueueFlow(t *testing.T) {
	env := newTestEnv(t, 1, nil)
	first := env.accessToken(t, "user-1")
	second := env.accessToken(t, "user-2")

	rec := env.do(t, http.MethodPost, "/join-interview-queue", first, nil)
	if status := decodeBody(t, rec)["status"]; status != "active" {
		t.Fatalf("first join status = %v", status)
	}

	// Joining again keeps the slot rather than queueing the holder.
	rec = env.do(t, http.MethodPost, "/join-interview-queue", first, nil)
	if status := decodeBody(t, rec)["status"]; status != "active" {
		t.Fatalf("repeat join status = %v", status)
	}

	rec = env.do(t, http.MethodPost, "/join-interview-queue", second, nil)
	payload := decodeBody(t, rec)
	if payload["status"] != "queued" || payload["position"].(float64) != 1 {
		t.Fatalf("second join = %+v", payload)
	}

	rec = env.do(t, http.MethodGet, "/queue-status", second, nil)
	payload = decodeBody(t, rec)
	if payload["active_users"].(float64) != 1 || payload["queue_position"].(float64) != 1 {
		t.Fatalf("queue status = %+v", payload)
	}

	rec = env.do(t, http.MethodPost, "/leave-interview", first, nil)
	if promoted := decodeBody(t, rec)["promoted_users"].(float64); promoted != 1 {
		t.Fatalf("promoted = %v", promoted)
	}

	rec = env.do(t, http.MethodGet, "/queue-status", second, nil)
	payload = decodeBody(t, rec)
	if payload["queue_position"].(float64) != 0 {
		t.Fatalf("promoted user still queued: %+v", payload)
	}
}

func TestInterviewTimerEndpoints(t *testing.T) {
	env := newTestEnv(t, 5, nil)
	bearer := env.accessToken(t, "user-1")

	rec := env.do(t, http.MethodGet, "/check-interview-time", bearer, nil)
	payload := decodeBody(t, rec)
	if payload["running"].(bool) {
		t.Fatalf("timer running before start: %+v", payload)
	}

	rec = env.do(t, http.MethodPost, "/start-interview", bearer, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start-interview status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/check-interview-time", bearer, nil)
	payload = decodeBody(t, rec)
	if !payload["running"].(bool) {
		t.Fatalf("timer not running after start: %+v", payload)
	}
	if payload["remaining_seconds"].(float64) <= 0 {
		t.Fatalf("no time remaining right after start: %+v", payload)
	}
}

func TestClearInterviewEnforcesOwnership(t *testing.T) {
	env := newTestEnv(t, 5, nil)
	bearer := env.accessToken(t, "user-1")

	rec := env.do(t, http.MethodDelete, "/clear-interview/user-2", bearer, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("cross-user clear status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, "/clear-interview/user-1", bearer, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("own clear status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestProcessDocumentsWithoutProvider(t *testing.T) {
	env := newTestEnv(t, 5, nil)
	bearer := env.accessToken(t, "user-1")

	body, _ := json.Marshal(map[string]string{"resume": "r", "job_description": "jd"})
	rec := env.do(t, http.MethodPost, "/process-documents", bearer, body)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestTranscribeEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "transcribed answer"})
	}))
	defer srv.Close()

	speechClient := speech.NewClient(config.SpeechConfig{
		APIKey:   "key",
		BaseURL:  srv.URL,
		TTSModel: "tts-1",
		TTSVoice: "alloy",
		STTModel: "whisper-1",
	}, nil)

	env := newTestEnv(t, 5, speechClient)
	bearer := env.accessToken(t, "user-1")

	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	part, err := writer.CreateFormFile("file", "answer.wav")
	if err != nil {
		t.Fatalf("CreateFormFile err: %v", err)
	}
	part.Write([]byte("wav-bytes"))
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/transcribe", &form)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("transcribe status = %d: %s", rec.Code, rec.Body.String())
	}
	if text := decodeBody(t, rec)["text"]; text != "transcribed answer" {
		t.Fatalf("text = %v", text)
	}
}

func TestTranscribeWithoutSpeech(t *testing.T) {
	env := newTestEnv(t, 5, nil)
	bearer := env.accessToken(t, "user-1")

	rec := env.do(t, http.MethodPost, "/transcribe", bearer, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}
