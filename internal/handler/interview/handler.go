// Package interview exposes the interview REST routes and the realtime
// WebSocket channel.
package interview

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/HamdanKAlmehairbi/DellioProject/internal/middleware"
	model "github.com/HamdanKAlmehairbi/DellioProject/internal/model/interview"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/admission"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/connection"
	interviewservice "github.com/HamdanKAlmehairbi/DellioProject/internal/service/interview"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/prompt"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/speech"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/token"
	"github.com/HamdanKAlmehairbi/DellioProject/pkg/utils"
)

// transcriptionHint primes the transcription model with conversational
// interview context.
const transcriptionHint = "This is an interview conversation response."

// Handler serves the interview REST routes.
type Handler struct {
	interviews    *interviewservice.Service
	admission     *admission.Controller
	conns         *connection.Manager
	tokens        *token.Manager
	prompts       *prompt.Generator // nil when no provider is configured
	speech        *speech.Client    // nil when speech is not configured
	promptTimeout time.Duration
}

// New creates the interview handler.
func New(interviews *interviewservice.Service, adm *admission.Controller, conns *connection.Manager, tokens *token.Manager, prompts *prompt.Generator, speechClient *speech.Client, promptTimeout time.Duration) *Handler {
	return &Handler{
		interviews:    interviews,
		admission:     adm,
		conns:         conns,
		tokens:        tokens,
		prompts:       prompts,
		speech:        speechClient,
		promptTimeout: promptTimeout,
	}
}

// RegisterRoutes mounts the authenticated interview routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/process-documents", h.handleProcessDocuments)
	r.Delete("/clear-interview/{userID}", h.handleClearInterview)
	r.Post("/transcribe", h.handleTranscribe)
	r.Post("/start-interview", h.handleStartInterview)
	r.Get("/check-interview-time", h.handleCheckInterviewTime)
	r.Post("/end-interview", h.handleEndInterview)
	r.Get("/queue-status", h.handleQueueStatus)
	r.Post("/join-interview-queue", h.handleJoinQueue)
	r.Post("/leave-interview", h.handleLeaveInterview)
}

func (h *Handler) claims(w http.ResponseWriter, r *http.Request) (*token.Claims, bool) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "missing authentication")
		return nil, false
	}
	return claims, true
}

type processDocumentsRequest struct {
	Resume         string `json:"resume"`
	JobDescription string `json:"job_description"`
}

// handleProcessDocuments generates the interview prompt from the
// candidate's documents and resets any previous interview state.
func (h *Handler) handleProcessDocuments(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	if h.prompts == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "prompt generation unavailable")
		return
	}

	var req processDocumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Resume) == "" || strings.TrimSpace(req.JobDescription) == "" {
		utils.RespondError(w, http.StatusBadRequest, "resume and job_description are required")
		return
	}

	// A fresh prompt starts a fresh interview.
	h.conns.Disconnect(claims.UserID)
	if err := h.interviews.Records().Clear(r.Context(), claims.UserID); err != nil {
		log.Printf("[interview] failed to clear previous state for %s: %v", claims.UserID, err)
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.promptTimeout)
	defer cancel()

	promptText, err := h.prompts.Generate(ctx, req.Resume, req.JobDescription)
	if err != nil {
		log.Printf("[interview] prompt generation failed for %s: %v", claims.UserID, err)
		utils.RespondError(w, http.StatusBadGateway, "failed to generate interview prompt")
		return
	}

	records := h.interviews.Records()
	if err := records.StorePrompt(r.Context(), claims.UserID, model.PromptRecord{Prompt: promptText}); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to store interview prompt")
		return
	}
	if err := records.StoreContext(r.Context(), claims.UserID, model.ContextRecord{Prompt: promptText}); err != nil {
		log.Printf("[interview] failed to seed context for %s: %v", claims.UserID, err)
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"message": "Documents processed successfully",
		"user_id": claims.UserID,
	})
}

// handleClearInterview removes all stored state for a user. Users may
// only clear their own data.
func (h *Handler) handleClearInterview(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	userID := chi.URLParam(r, "userID")
	if userID != claims.UserID {
		utils.RespondError(w, http.StatusForbidden, "cannot clear another user's interview data")
		return
	}

	h.conns.Disconnect(userID)
	h.admission.Deregister(r.Context(), userID)
	if err := h.interviews.Records().Clear(r.Context(), userID); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to clear interview data")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": "Interview data cleared successfully"})
}

// handleTranscribe converts an uploaded audio file to text.
func (h *Handler) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.claims(w, r); !ok {
		return
	}
	if h.speech == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "transcription unavailable")
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read audio file")
		return
	}

	text, err := h.speech.Transcribe(r.Context(), audio, header.Filename, r.FormValue("language"), transcriptionHint)
	if err != nil {
		log.Printf("[interview] transcription failed: %v", err)
		utils.RespondError(w, http.StatusBadGateway, "transcription failed")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"text": text})
}

// handleStartInterview starts the interview timer. Starting twice keeps
// the original clock.
func (h *Handler) handleStartInterview(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	if err := h.interviews.Records().StartTimer(r.Context(), claims.UserID); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to start interview timer")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"message":          "Interview timer started",
		"duration_seconds": int(h.interviews.Duration().Seconds()),
	})
}

// handleCheckInterviewTime reports the remaining interview time.
func (h *Handler) handleCheckInterviewTime(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	remaining, running := h.interviews.Records().TimeRemaining(r.Context(), claims.UserID, h.interviews.Duration())
	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"remaining_seconds": int(remaining.Seconds()),
		"running":           running,
		"expired":           running && remaining <= 0,
	})
}

// handleEndInterview tears the interview down and frees the slot.
func (h *Handler) handleEndInterview(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	h.conns.Disconnect(claims.UserID)
	promoted := h.admission.Leave(r.Context(), claims.UserID)
	if err := h.interviews.Records().Clear(r.Context(), claims.UserID); err != nil {
		log.Printf("[interview] failed to clear state for %s: %v", claims.UserID, err)
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"message":        "Interview ended",
		"promoted_users": len(promoted),
	})
}

// handleQueueStatus reports slot usage and the caller's queue position.
func (h *Handler) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	position := 0
	if idx := h.admission.PositionOf(r.Context(), claims.UserID); idx >= 0 {
		position = idx + 1
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"active_users":   h.admission.ActiveCount(r.Context()),
		"max_users":      h.admission.Capacity(),
		"queue_position": position,
	})
}

// handleJoinQueue claims a slot or joins the FIFO queue.
func (h *Handler) handleJoinQueue(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	if h.admission.IsActive(ctx, claims.UserID) || h.admission.TryActivate(ctx, claims.UserID) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{"status": "active"})
		return
	}

	position := h.admission.PositionOf(ctx, claims.UserID)
	if position >= 0 {
		position++
	} else {
		position = h.admission.Enqueue(ctx, claims.UserID)
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":   "queued",
		"position": position,
	})
}

// handleLeaveInterview releases the caller's slot or queue spot and
// promotes waiting users.
func (h *Handler) handleLeaveInterview(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.claims(w, r)
	if !ok {
		return
	}

	h.conns.Disconnect(claims.UserID)
	promoted := h.admission.Deregister(r.Context(), claims.UserID)

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"message":        "Left interview",
		"promoted_users": len(promoted),
	})
}
