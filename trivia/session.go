/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Seednode/triviabox/questions"
	"github.com/Seednode/triviabox/stats"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const maxNameLength = 32

type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhaseQuestion   Phase = "question"
	PhaseEvaluating Phase = "evaluating"
	PhaseReveal     Phase = "reveal"
	PhaseComplete   Phase = "complete"
)

type player struct {
	id         string
	name       string
	avatar     string
	score      int
	answer     string
	answered   bool
	answeredAt time.Time
}

// Session is one match. Every field below the channels is owned by the
// run goroutine; other goroutines reach it only through do.
type Session struct {
	code     string
	opts     Options
	clock    clockwork.Clock
	supplier questions.Supplier
	recorder stats.Recorder
	gateway  *Gateway
	onEmpty  func(code string)

	requests chan func()
	timers   chan timerFired
	quit     chan struct{}

	closed      bool
	players     []*player
	hostID      string
	settings    Settings
	questions   []questions.Question
	index       int
	answerOrder []string
	deadline    time.Time
	phase       Phase
	starting    bool
	epoch       uint64
	timer       clockwork.Timer
	lastActive  time.Time
}

// Snapshot is a copy of a session's state for inspection.
type Snapshot struct {
	Code        string       `json:"code"`
	Phase       Phase        `json:"phase"`
	HostID      string       `json:"host"`
	Players     []PlayerView `json:"players"`
	Index       int          `json:"index"`
	Total       int          `json:"total"`
	AnswerOrder []string     `json:"-"`
	Deadline    time.Time    `json:"deadline,omitzero"`
	LastActive  time.Time    `json:"last_active"`
}

func newSession(code string, opts Options, supplier questions.Supplier, recorder stats.Recorder, gw *Gateway, onEmpty func(string)) *Session {
	s := &Session{
		code:       code,
		opts:       opts,
		clock:      opts.Clock,
		supplier:   supplier,
		recorder:   recorder,
		gateway:    gw,
		onEmpty:    onEmpty,
		requests:   make(chan func()),
		timers:     make(chan timerFired),
		quit:       make(chan struct{}),
		index:      -1,
		phase:      PhaseLobby,
		lastActive: opts.Clock.Now(),
	}

	go s.run()

	return s
}

func (s *Session) Code() string {
	return s.code
}

func (s *Session) run() {
	for {
		select {
		case fn := <-s.requests:
			fn()
		case fired := <-s.timers:
			s.handleTimer(fired)
		}

		if s.closed {
			s.cancelTimer()
			close(s.quit)

			log.Debug().Str("code", s.code).Msg("session closed")

			return
		}
	}
}

// do runs fn on the session goroutine and waits for it to finish.
// It returns ErrNotFound once the session has shut down.
func (s *Session) do(fn func()) error {
	done := make(chan struct{})

	select {
	case s.requests <- func() {
		defer close(done)
		s.lastActive = s.clock.Now()
		fn()
	}:
	case <-s.quit:
		return ErrNotFound
	}

	<-done

	return nil
}

func (s *Session) active() bool {
	return s.phase == PhaseQuestion || s.phase == PhaseEvaluating || s.phase == PhaseReveal
}

func (s *Session) evaluating() bool {
	return s.phase == PhaseEvaluating || s.phase == PhaseReveal
}

func (s *Session) player(connID string) *player {
	for _, p := range s.players {
		if p.id == connID {
			return p
		}
	}

	return nil
}

func (s *Session) roster() []PlayerView {
	views := make([]PlayerView, 0, len(s.players))
	for _, p := range s.players {
		views = append(views, PlayerView{
			ID:       p.id,
			Name:     p.name,
			Avatar:   p.avatar,
			Score:    p.score,
			Answered: p.answered,
			Host:     p.id == s.hostID,
		})
	}

	return views
}

func (s *Session) broadcast(name string, data any) {
	s.gateway.Broadcast(s.code, Event{Name: name, Data: data})
}

func (s *Session) reply(connID, name string, data any) {
	s.gateway.Reply(connID, Event{Name: name, Data: data})
}

func (s *Session) broadcastPlayers() {
	s.broadcast(EventUpdatePlayers, PlayersPayload{Players: s.roster()})
}

func (s *Session) displayName(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > maxNameLength {
		name = string([]rune(name)[:maxNameLength])
	}
	if name == "" {
		name = fmt.Sprintf("Player %d", len(s.players)+1)
	}

	return name
}

// Join adds connID to the roster and subscribes it to the session's
// broadcasts. The creator receives session-created before the roster;
// later joiners receive join-success after it.
func (s *Session) Join(connID string, info PlayerInfo, created bool) error {
	var err error

	if derr := s.do(func() { err = s.join(connID, info, created) }); derr != nil {
		return derr
	}

	return err
}

func (s *Session) join(connID string, info PlayerInfo, created bool) error {
	if s.player(connID) != nil {
		s.gateway.Subscribe(s.code, connID)
		s.reply(connID, EventJoinSuccess, CodePayload{Code: s.code})
		s.reply(connID, EventUpdatePlayers, PlayersPayload{Players: s.roster()})

		return nil
	}

	if len(s.players) >= s.opts.Capacity {
		return fmt.Errorf("join %s: %w", s.code, ErrFull)
	}

	s.players = append(s.players, &player{
		id:     connID,
		name:   s.displayName(info.Name),
		avatar: info.Avatar,
	})
	if s.hostID == "" {
		s.hostID = connID
	}

	s.gateway.Subscribe(s.code, connID)

	log.Info().
		Str("code", s.code).
		Str("conn", connID).
		Int("players", len(s.players)).
		Msg("player joined")

	if created {
		s.reply(connID, EventSessionCreated, CodePayload{Code: s.code})
		s.broadcastPlayers()

		return nil
	}

	s.broadcastPlayers()
	s.reply(connID, EventJoinSuccess, CodePayload{Code: s.code})

	return nil
}

// Leave removes connID from the roster. The oldest remaining player
// becomes host if the host left, and the session shuts down once empty.
func (s *Session) Leave(connID string) error {
	var err error

	if derr := s.do(func() { err = s.leave(connID) }); derr != nil {
		return derr
	}

	return err
}

func (s *Session) leave(connID string) error {
	idx := -1
	for i, p := range s.players {
		if p.id == connID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("leave %s: %w", s.code, ErrNotFound)
	}

	s.players = append(s.players[:idx], s.players[idx+1:]...)
	s.gateway.Unsubscribe(s.code, connID)

	log.Info().
		Str("code", s.code).
		Str("conn", connID).
		Int("players", len(s.players)).
		Msg("player left")

	if len(s.players) == 0 {
		s.shutdown()

		return nil
	}

	if s.hostID == connID {
		s.hostID = s.players[0].id

		log.Info().
			Str("code", s.code).
			Str("host", s.hostID).
			Msg("host reassigned")
	}

	s.broadcastPlayers()
	s.closeIfAllAnswered()

	return nil
}

// Players replies with the roster to connID only.
func (s *Session) Players(connID string) error {
	return s.do(func() {
		s.reply(connID, EventUpdatePlayers, PlayersPayload{Players: s.roster()})
	})
}

// State replies with a resync snapshot to connID only. The open question is
// omitted while answers are being evaluated.
func (s *Session) State(connID string) error {
	return s.do(func() {
		s.reply(connID, EventState, s.statePayload(connID))
	})
}

func (s *Session) statePayload(connID string) StatePayload {
	payload := StatePayload{
		Code:    s.code,
		Players: s.roster(),
		Active:  s.active(),
	}

	if s.phase != PhaseQuestion {
		return payload
	}

	q := s.questionPayload()
	payload.Question = &q

	if !s.deadline.IsZero() {
		left := int((s.deadline.Sub(s.clock.Now()) + time.Second - 1) / time.Second)
		if left < 0 {
			left = 0
		}
		payload.TimeLeft = &left
	}

	if p := s.player(connID); p != nil && p.answered {
		payload.MyAnswer = p.answer
	}

	return payload
}

func (s *Session) Snapshot() (Snapshot, error) {
	var snap Snapshot

	err := s.do(func() {
		snap = Snapshot{
			Code:        s.code,
			Phase:       s.phase,
			HostID:      s.hostID,
			Players:     s.roster(),
			Index:       s.index,
			Total:       len(s.questions),
			AnswerOrder: append([]string(nil), s.answerOrder...),
			Deadline:    s.deadline,
			LastActive:  s.lastActive,
		}
	})

	return snap, err
}

// idleSince reports the last activity without counting as activity itself.
func (s *Session) idleSince() (time.Time, error) {
	var last time.Time

	done := make(chan struct{})
	select {
	case s.requests <- func() {
		defer close(done)
		last = s.lastActive
	}:
	case <-s.quit:
		return time.Time{}, ErrNotFound
	}
	<-done

	return last, nil
}

// Close notifies every subscriber and shuts the session down.
func (s *Session) Close() error {
	return s.do(func() {
		s.broadcast(EventSessionClosed, CodePayload{Code: s.code})

		for _, p := range s.players {
			s.gateway.Unsubscribe(s.code, p.id)
		}
		s.players = nil
		s.gateway.CloseRoom(s.code)

		s.shutdown()
	})
}

func (s *Session) shutdown() {
	s.cancelTimer()
	s.closed = true
	s.phase = PhaseComplete

	if s.onEmpty != nil {
		s.onEmpty(s.code)
	}
}
