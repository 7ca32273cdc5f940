package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/HamdanKAlmehairbi/DellioProject/internal/handler/auth"
	interviewhandler "github.com/HamdanKAlmehairbi/DellioProject/internal/handler/interview"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/middleware"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/admission"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/connection"
	interviewservice "github.com/HamdanKAlmehairbi/DellioProject/internal/service/interview"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/prompt"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/speech"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/token"
	"github.com/HamdanKAlmehairbi/DellioProject/pkg/utils"
)

// Deps bundles the services the router wires into routes. Prompts and
// Speech may be nil; their routes respond 503.
type Deps struct {
	Tokens        *token.Manager
	Interviews    *interviewservice.Service
	Admission     *admission.Controller
	Connections   *connection.Manager
	Prompts       *prompt.Generator
	Speech        *speech.Client
	PromptTimeout time.Duration
}

// NewRouter wires HTTP routes to core services.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	authHandler := auth.New(deps.Tokens)
	authHandler.RegisterRoutes(r)

	interviewHandler := interviewhandler.New(deps.Interviews, deps.Admission, deps.Connections, deps.Tokens, deps.Prompts, deps.Speech, deps.PromptTimeout)
	r.Group(func(protected chi.Router) {
		protected.Use(middleware.Auth(deps.Tokens))
		interviewHandler.RegisterRoutes(protected)
	})

	// The WebSocket route authenticates via query parameter after the
	// upgrade, so it stays outside the bearer-token group.
	wsHandler := interviewhandler.NewWebSocket(deps.Interviews, deps.Connections, deps.Tokens, deps.Admission)
	wsHandler.RegisterRoutes(r)

	return r
}
