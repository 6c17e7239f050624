package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/app"
	"github.com/CasperKristoff/AI-Toastmaster-sub000/internal/domain"
	"github.com/gorilla/websocket"
)

const maxMessageBytes = 4096

type WSHandler struct {
	service  *app.QuizService
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.QuizService, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// sessionPayload is one reconciled document as the client should render it.
type sessionPayload struct {
	Session        domain.Session           `json:"session"`
	Important      bool                     `json:"important"`
	ResetSelection bool                     `json:"resetSelection"`
	Placement      *domain.LeaderboardEntry `json:"placement,omitempty"`
}

type errorPayload struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func errorMessage(err error) outboundMessage {
	return outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error(), Status: statusFor(err)}}
}

// connection is the state of one socket. Only the writer goroutine touches
// the websocket for writes; everything else goes through send.
type connection struct {
	role          app.Role
	code          string
	participantID string
	send          chan outboundMessage
	writerDone    chan struct{}
	log           *slog.Logger
}

func (c *connection) push(msg outboundMessage) bool {
	select {
	case c.send <- msg:
		return true
	case <-c.writerDone:
		return false
	}
}

// ServeWS upgrades /ws?code=&role=&participantId=&name= and streams the
// session to the client, reconciled for its role.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := domain.NormalizeCode(q.Get("code"))
	roleName := q.Get("role")
	if roleName == "" {
		roleName = string(app.RoleParticipant)
	}
	role, err := app.ParseRole(roleName)
	if err != nil || code == "" {
		http.Error(w, "missing code or invalid role", http.StatusBadRequest)
		return
	}
	participantID := q.Get("participantId")
	if role == app.RoleParticipant && participantID == "" {
		http.Error(w, "missing participantId", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if _, err := h.service.Session(ctx, code); err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", "session", code, "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageBytes)

	c := &connection{
		role:          role,
		code:          code,
		participantID: participantID,
		send:          make(chan outboundMessage, 16),
		writerDone:    make(chan struct{}),
		log:           h.logger.With("session", code, "role", role, "participant", participantID),
	}

	if role == app.RoleParticipant {
		if _, err := h.service.Join(ctx, code, participantID, q.Get("name")); err != nil {
			_ = conn.WriteJSON(errorMessage(err))
			return
		}
	}

	updates, cancel, err := h.service.Subscribe(ctx, code)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	defer cancel()

	closeSignals := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(c.writerDone)
		for msg := range c.send {
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				c.log.Debug("ws write error", "error", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		reconciler := app.NewReconciler(role).WithViewer(participantID)
		for {
			select {
			case snap, ok := <-updates:
				if !ok {
					return
				}
				if !h.forward(c, reconciler, snap) {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	c.log.Info("client connected")
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if !h.handle(ctx, c, inbound) {
			break
		}
	}
	c.log.Info("client disconnected")

	close(closeSignals)
	<-updatesDone
	close(c.send)
	<-c.writerDone
}

// forward reconciles one pushed document and queues what the client needs.
func (h *WSHandler) forward(c *connection, reconciler *app.Reconciler, snap domain.Snapshot) bool {
	if snap.Session == nil {
		return c.push(errorMessage(fmt.Errorf("%w: %s", domain.ErrSessionNotFound, c.code)))
	}
	decision := reconciler.Reconcile(*snap.Session)
	if !decision.Apply {
		return true
	}
	payload := sessionPayload{
		Session:        decision.View,
		Important:      decision.Important,
		ResetSelection: decision.ResetSelection,
	}
	if c.role == app.RoleParticipant {
		if entry, ok := domain.Placement(decision.View, c.participantID); ok {
			payload.Placement = &entry
		}
	}
	if !c.push(outboundMessage{Type: "session", Payload: payload}) {
		return false
	}
	if decision.Important {
		switch domain.PhaseOf(*snap.Session) {
		case domain.PhaseQuestionsDone, domain.PhaseFinished:
			board := domain.BuildLeaderboard(*snap.Session, time.Now())
			return c.push(outboundMessage{Type: "leaderboard", Payload: board})
		}
	}
	return true
}

// handle runs one client message. Failures are reported inline; it returns
// false only when the writer has gone away.
func (h *WSHandler) handle(ctx context.Context, c *connection, inbound inboundMessage) bool {
	switch inbound.Type {
	case "answer":
		if c.role != app.RoleParticipant {
			return c.push(errorMessage(errNotAllowed(inbound.Type, c.role)))
		}
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return c.push(errorMessage(errBadRequestf("invalid answer payload")))
		}
		result, err := h.service.SubmitAnswer(ctx, c.code, domain.AnswerSubmission{
			ParticipantID: c.participantID,
			QuestionID:    payload.QuestionID,
			OptionID:      payload.OptionID,
		})
		if err != nil {
			return c.push(errorMessage(err))
		}
		return c.push(outboundMessage{Type: "answerResult", Payload: result})

	case "showFinalResults":
		if c.role != app.RoleHost {
			return c.push(errorMessage(errNotAllowed(inbound.Type, c.role)))
		}
		board, _, err := h.service.ShowFinalResults(ctx, c.code)
		if err != nil {
			return c.push(errorMessage(err))
		}
		return c.push(outboundMessage{Type: "leaderboard", Payload: board})
	}

	command, ok := h.hostCommands()[inbound.Type]
	if !ok {
		return c.push(errorMessage(errBadRequestf("unsupported message type %q", inbound.Type)))
	}
	if c.role != app.RoleHost {
		return c.push(errorMessage(errNotAllowed(inbound.Type, c.role)))
	}
	// The resulting document reaches the client through the subscription.
	if _, err := command(ctx, c.code); err != nil {
		c.log.Info("host command rejected", "command", inbound.Type, "error", err)
		return c.push(errorMessage(err))
	}
	return true
}

func (h *WSHandler) hostCommands() map[string]hostFunc {
	return map[string]hostFunc{
		"start":         h.service.Start,
		"toggleResults": h.service.ToggleResults,
		"advance":       h.service.Advance,
		"finish":        h.service.Finish,
	}
}

var errForbidden = errors.New("not allowed")

func errNotAllowed(msgType string, role app.Role) error {
	return fmt.Errorf("%w: %s cannot send %q", errForbidden, role, msgType)
}
