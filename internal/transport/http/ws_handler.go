package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"trivia-party-service/internal/app"
	"trivia-party-service/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 8 << 10
	maxUserID  = 64
)

// Inbound event names.
const (
	inRequestNewParty   = "request-new-party"
	inJoinParty         = "join-party"
	inStartQuiz         = "start-quiz"
	inUserReady         = "user-ready"
	inAnswer            = "answer"
	inChangeDisplayName = "change-display-name"
	inRequestMembers    = "request-party-members"
	inKickMember        = "kick-party-member"
	inDoesPartyExist    = "does-party-exist"
	scopedAnswerPrefix  = "answer-"
)

type WSHandler struct {
	coordinator *app.Coordinator
	hub         *Hub
	upgrader    websocket.Upgrader
	// runCtx outlives individual connections; quiz runs are bound to it.
	runCtx context.Context
	log    *slog.Logger
}

func NewWSHandler(runCtx context.Context, coordinator *app.Coordinator, hub *Hub, origins *OriginPolicy, log *slog.Logger) *WSHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WSHandler{
		coordinator: coordinator,
		hub:         hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.CheckOrigin,
		},
		runCtx: runCtx,
		log:    log,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type partyPayload struct {
	PartyID string `json:"partyId"`
}

type startQuizPayload struct {
	PartyID string      `json:"partyId"`
	Options quizOptions `json:"options"`
}

type quizOptions struct {
	Amount     flexInt    `json:"amount"`
	Category   flexString `json:"category"`
	Difficulty string     `json:"difficulty"`
	Type       string     `json:"type"`
	Time       flexInt    `json:"time"`
}

type answerPayload struct {
	PartyID    string  `json:"partyId"`
	QuizID     string  `json:"quizId"`
	Number     flexInt `json:"number"`
	Answer     string  `json:"answer"`
	AnswerText string  `json:"answerText"`
}

type displayNameRequest struct {
	PartyID string `json:"partyId"`
	Name    string `json:"name"`
}

type kickPayload struct {
	PartyID string `json:"partyId"`
	UserID  string `json:"userId"`
}

type userIDPayload struct {
	UserID string `json:"userId"`
}

type partyExistsPayload struct {
	PartyID string `json:"partyId"`
	Exists  bool   `json:"exists"`
}

// flexInt accepts a JSON number or a numeric string; anything else decodes to 0.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		if v, err := n.Int64(); err == nil {
			*f = flexInt(v)
			return nil
		}
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			*f = flexInt(v)
			return nil
		}
	}
	*f = 0
	return nil
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	*f = ""
	return nil
}

// ServeWS upgrades HTTP requests to websockets and routes inbound events to the coordinator.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" || len(userID) > maxUserID {
		userID = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	c := newClient(userID)
	h.hub.register(c)
	h.log.Debug("ws connected", "user", userID)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(conn, c)
	}()

	h.hub.SendTo(userID, app.EventUserID, userIDPayload{UserID: userID})

	conn.SetReadLimit(maxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if err := h.dispatch(r.Context(), userID, inbound); err != nil {
			h.log.Debug("inbound event failed", "user", userID, "type", inbound.Type, "err", err)
			h.hub.SendTo(userID, app.EventError, app.ErrorPayload{Message: err.Error()})
		}
	}

	partyID := h.hub.unregister(c)
	<-writerDone
	h.log.Debug("ws disconnected", "user", userID, "party", partyID)
	if partyID != "" {
		if err := h.coordinator.Leave(context.WithoutCancel(r.Context()), partyID, userID); err != nil {
			h.log.Warn("leave on disconnect", "party", partyID, "user", userID, "err", err)
		}
	}
}

// writeLoop is the only writer on conn.
func (h *WSHandler) writeLoop(conn *websocket.Conn, c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	// Unblocks the reader when the hub closes this client.
	defer conn.Close()

	for {
		select {
		case <-c.done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.log.Debug("ws write error", "user", c.userID, "err", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) dispatch(ctx context.Context, userID string, in inboundMessage) error {
	switch in.Type {
	case inRequestNewParty:
		if err := h.leaveCurrent(ctx, userID, ""); err != nil {
			return err
		}
		_, err := h.coordinator.RequestNewParty(ctx, userID)
		return err

	case inJoinParty:
		var p partyPayload
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		if err := h.leaveCurrent(ctx, userID, p.PartyID); err != nil {
			return err
		}
		_, err := h.coordinator.JoinParty(ctx, p.PartyID, userID)
		return err

	case inStartQuiz:
		var p startQuizPayload
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		opts := domain.QuizOptions{
			Amount:     int(p.Options.Amount),
			Category:   string(p.Options.Category),
			Difficulty: p.Options.Difficulty,
			Type:       p.Options.Type,
			TimeLimit:  int(p.Options.Time),
		}
		go func() {
			// Failures are already reported to the requester by the coordinator.
			_, _ = h.coordinator.RunQuiz(h.runCtx, p.PartyID, userID, opts)
		}()
		return nil

	case inUserReady:
		var p partyPayload
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		h.coordinator.MarkReady(p.PartyID, userID)
		return nil

	case inChangeDisplayName:
		var p displayNameRequest
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		return h.coordinator.ChangeDisplayName(ctx, p.PartyID, userID, p.Name)

	case inRequestMembers:
		var p partyPayload
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		if !domain.ValidPartyID(p.PartyID) {
			return domain.ErrInvalidPartyID
		}
		return h.coordinator.BroadcastMembers(ctx, p.PartyID)

	case inKickMember:
		var p kickPayload
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		return h.coordinator.KickMember(ctx, p.PartyID, userID, p.UserID)

	case inDoesPartyExist:
		var p partyPayload
		if err := decode(in.Payload, &p); err != nil {
			return err
		}
		exists, err := h.coordinator.PartyExists(ctx, p.PartyID)
		if err != nil {
			return err
		}
		h.hub.SendTo(userID, app.EventPartyExists, partyExistsPayload{PartyID: p.PartyID, Exists: exists})
		return nil
	}

	if in.Type == inAnswer || strings.HasPrefix(in.Type, scopedAnswerPrefix) {
		return h.answer(userID, in)
	}
	return fmt.Errorf("%w: unsupported message type %q", domain.ErrInvalidPayload, in.Type)
}

// answer accepts either the generic "answer" event or the scoped
// "answer-{quizId}-{number}" form. Late answers are dropped silently.
func (h *WSHandler) answer(userID string, in inboundMessage) error {
	var p answerPayload
	if err := decode(in.Payload, &p); err != nil {
		return err
	}
	if rest, ok := strings.CutPrefix(in.Type, scopedAnswerPrefix); ok {
		i := strings.LastIndex(rest, "-")
		if i <= 0 {
			return fmt.Errorf("%w: malformed answer event %q", domain.ErrInvalidPayload, in.Type)
		}
		n, err := strconv.Atoi(rest[i+1:])
		if err != nil {
			return fmt.Errorf("%w: malformed answer event %q", domain.ErrInvalidPayload, in.Type)
		}
		p.QuizID, p.Number = rest[:i], flexInt(n)
	}
	answer := p.Answer
	if answer == "" {
		answer = p.AnswerText
	}
	h.coordinator.SubmitAnswer(p.PartyID, p.QuizID, int(p.Number), userID, answer)
	return nil
}

// leaveCurrent removes userID from the party it is in unless that is next.
func (h *WSHandler) leaveCurrent(ctx context.Context, userID, next string) error {
	current := h.hub.PartyOf(userID)
	if current == "" || current == next {
		return nil
	}
	return h.coordinator.Leave(ctx, current, userID)
}

func decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return nil
}
