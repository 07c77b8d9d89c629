/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
)

// Handler binds connection events to sessions.
type Handler struct {
	registry *Registry
	gateway  *Gateway
}

type Stats struct {
	Sessions    int            `json:"sessions"`
	Codes       []string       `json:"codes"`
	Connections int            `json:"connections"`
	Rooms       map[string]int `json:"rooms"`
}

func NewHandler(registry *Registry, gw *Gateway) *Handler {
	return &Handler{
		registry: registry,
		gateway:  gw,
	}
}

func (h *Handler) Stats() Stats {
	gs := h.gateway.Stats()

	return Stats{
		Sessions:    h.registry.Len(),
		Codes:       h.registry.Codes(),
		Connections: gs.Connections,
		Rooms:       gs.Rooms,
	}
}

func (h *Handler) Connect(c Conn) {
	h.gateway.Attach(c)

	log.Debug().Str("conn", c.ID()).Msg("connection attached")
}

// Disconnect removes connID from whichever session it had joined.
func (h *Handler) Disconnect(connID string) {
	code := h.gateway.Detach(connID)

	log.Debug().Str("conn", connID).Str("code", code).Msg("connection detached")

	if code == "" {
		return
	}

	_ = h.leave(connID, code)
	h.gateway.Unsubscribe(code, connID)
}

func (h *Handler) leave(connID, code string) error {
	s, err := h.registry.Get(code)
	if err != nil {
		h.gateway.Unsubscribe(code, connID)

		return err
	}

	return s.Leave(connID)
}

// leavePrevious leaves the session connID belonged to before it moved to code.
func (h *Handler) leavePrevious(connID, previous, code string) {
	if previous == "" || previous == code {
		return
	}

	_ = h.leave(connID, previous)
}

func (h *Handler) replyError(connID, name string, err error) {
	h.gateway.Reply(connID, Event{Name: name, Data: MessagePayload{Message: message(err)}})
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (h *Handler) CreateSession(connID string, info PlayerInfo) {
	previous := h.gateway.SessionOf(connID)

	s, err := h.registry.Create()
	if err != nil {
		log.Error().Err(err).Str("conn", connID).Msg("unable to create session")

		h.replyError(connID, EventError, err)

		return
	}

	if err := s.Join(connID, info, true); err != nil {
		h.replyError(connID, EventError, err)

		return
	}

	h.leavePrevious(connID, previous, s.Code())
}

func (h *Handler) JoinSession(connID, code string, info PlayerInfo) {
	code = normalizeCode(code)

	s, err := h.registry.Get(code)
	if err != nil {
		h.replyError(connID, EventJoinError, err)

		return
	}

	previous := h.gateway.SessionOf(connID)

	if err := s.Join(connID, info, false); err != nil {
		log.Debug().Err(err).Str("conn", connID).Str("code", code).Msg("join rejected")

		h.replyError(connID, EventJoinError, err)

		return
	}

	h.leavePrevious(connID, previous, code)
}

func (h *Handler) GetPlayers(connID, code string) {
	s, err := h.registry.Get(normalizeCode(code))
	if err == nil {
		err = s.Players(connID)
	}
	if err != nil {
		h.replyError(connID, EventError, err)
	}
}

func (h *Handler) GetState(connID, code string) {
	s, err := h.registry.Get(normalizeCode(code))
	if err == nil {
		err = s.State(connID)
	}
	if err != nil {
		h.replyError(connID, EventError, err)
	}
}

// Start blocks while questions are fetched.
func (h *Handler) Start(ctx context.Context, connID, code string, settings Settings) {
	s, err := h.registry.Get(normalizeCode(code))
	if err == nil {
		err = s.Start(ctx, connID, settings)
	}
	if err != nil {
		log.Debug().Err(err).Str("conn", connID).Str("code", code).Msg("start rejected")

		h.replyError(connID, EventStartError, err)
	}
}

// SubmitAnswer drops stale and duplicate answers without a reply.
func (h *Handler) SubmitAnswer(connID, code, answer string, index int) {
	s, err := h.registry.Get(normalizeCode(code))
	if err == nil {
		err = s.SubmitAnswer(connID, answer, index)
	}
	if err == nil {
		return
	}

	if silent(err) {
		log.Debug().Err(err).Str("conn", connID).Str("code", code).Msg("answer dropped")

		return
	}

	h.replyError(connID, EventError, err)
}

func (h *Handler) LeaveSession(connID, code string) {
	if err := h.leave(connID, normalizeCode(code)); err != nil && !errors.Is(err, ErrNotFound) {
		h.replyError(connID, EventError, err)
	}
}

// Dispatch decodes one client message and routes it.
func (h *Handler) Dispatch(ctx context.Context, connID string, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.malformed(connID, "", err)

		return
	}

	decode := func(v any) bool {
		if len(msg.Data) == 0 {
			return true
		}
		if err := json.Unmarshal(msg.Data, v); err != nil {
			h.malformed(connID, msg.Event, err)

			return false
		}

		return true
	}

	switch msg.Event {
	case EventCreateSession:
		var req createRequest
		if decode(&req) {
			h.CreateSession(connID, req.Player)
		}
	case EventJoinSession:
		var req joinRequest
		if decode(&req) {
			h.JoinSession(connID, req.Code, req.Player)
		}
	case EventGetPlayers:
		var req codeRequest
		if decode(&req) {
			h.GetPlayers(connID, req.Code)
		}
	case EventGetState:
		var req codeRequest
		if decode(&req) {
			h.GetState(connID, req.Code)
		}
	case EventStart:
		var req startRequest
		if decode(&req) {
			h.Start(ctx, connID, req.Code, req.Settings)
		}
	case EventSubmitAnswer:
		var req answerRequest
		if decode(&req) {
			index := -1
			if req.QuestionIndex != nil {
				index = *req.QuestionIndex
			}
			h.SubmitAnswer(connID, req.Code, req.Answer, index)
		}
	case EventLeaveSession:
		var req codeRequest
		if decode(&req) {
			h.LeaveSession(connID, req.Code)
		}
	default:
		h.gateway.Reply(connID, Event{Name: EventError, Data: MessagePayload{Message: "unknown event " + msg.Event}})
	}
}

func (h *Handler) malformed(connID, event string, err error) {
	log.Debug().Err(err).Str("conn", connID).Str("event", event).Msg("malformed client message")

	h.gateway.Reply(connID, Event{Name: EventError, Data: MessagePayload{Message: "malformed message"}})
}
