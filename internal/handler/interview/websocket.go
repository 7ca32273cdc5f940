package interview

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	model "github.com/HamdanKAlmehairbi/DellioProject/internal/model/interview"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/admission"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/connection"
	interviewservice "github.com/HamdanKAlmehairbi/DellioProject/internal/service/interview"
	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/token"
)

// WSHandler serves the realtime interview channel.
type WSHandler struct {
	interviews *interviewservice.Service
	conns      *connection.Manager
	tokens     *token.Manager
	admission  *admission.Controller
	upgrader   websocket.Upgrader
}

// NewWebSocket creates the realtime channel handler.
func NewWebSocket(interviews *interviewservice.Service, conns *connection.Manager, tokens *token.Manager, adm *admission.Controller) *WSHandler {
	return &WSHandler{
		interviews: interviews,
		conns:      conns,
		tokens:     tokens,
		admission:  adm,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Keepalive: pings flow on a ticker and each pong pushes the read
// deadline out. Inactivity handling is the watchdog's job; the deadline
// only reaps dead TCP peers.
const (
	pingInterval = 30 * time.Second
	pongWait     = 75 * time.Second
)

// RegisterRoutes mounts the WebSocket route. Authentication happens via
// the token query parameter, after the upgrade, so failures can be
// reported with a close code.
func (h *WSHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/interview", h.handleInterviewSocket)
}

func (h *WSHandler) handleInterviewSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}

	query := r.URL.Query()
	userID := query.Get("user_id")

	claims, err := h.tokens.Verify(query.Get("token"))
	if err != nil || (userID != "" && claims.UserID != userID) {
		closeWith(conn, model.CloseInvalidToken, "invalid token")
		conn.Close()
		return
	}
	if userID == "" {
		userID = claims.UserID
	}

	records := h.interviews.Records()
	promptRec, found := records.GetPrompt(r.Context(), userID)
	if !found {
		closeWith(conn, model.CloseMissingPrompt, "no interview prompt found, process documents first")
		conn.Close()
		return
	}

	reg := h.conns.Connect(userID, conn)
	sess := model.NewSession(userID, claims.Email, promptRec.Prompt)

	// Reconnects resume from the stored transcript snapshot when one is
	// still live.
	if query.Get("new_session") != "true" {
		if snapshot, ok := records.GetTranscript(r.Context(), userID); ok && len(snapshot) > 0 {
			for _, msg := range snapshot {
				sess.AddMessage(msg.Role, msg.Content)
			}
			sess.MarkGreeted()
		}
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	watchCtx, stopWatch := context.WithCancel(context.Background())
	go pingLoop(watchCtx, conn)
	go h.interviews.Watchdog(watchCtx, sess, reg, func() {
		closeWith(conn, model.CloseInactivity, "interview ended due to inactivity")
		h.conns.Disconnect(userID)
	})

	defer func() {
		stopWatch()
		h.conns.Disconnect(userID)
		h.admission.Deregister(context.Background(), userID)
		h.interviews.Teardown(sess)
	}()

	log.Printf("[ws] interview channel open for user %s", userID)

	ctx := r.Context()
	if !sess.Greeted() {
		if err := h.interviews.RunGreeting(ctx, sess, reg); err != nil {
			log.Printf("[ws] greeting turn failed for user %s: %v", userID, err)
		}
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			log.Printf("[ws] read loop ended for user %s: %v", userID, err)
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			continue
		}

		if err := h.interviews.HandleCandidateText(ctx, sess, reg, text); err != nil {
			log.Printf("[ws] turn failed for user %s: %v", userID, err)
		}
	}
}

func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)); err != nil {
				return
			}
		}
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(time.Second)
	if err := conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline); err != nil {
		log.Printf("[ws] failed to send close frame: %v", err)
	}
}
