/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/Seednode/triviabox/questions"
	"github.com/Seednode/triviabox/stats"
	"github.com/rs/zerolog/log"
)

const (
	defaultQuestionCount = 10
	maxQuestionCount     = 50
)

type timerKind int

const (
	timerDeadline timerKind = iota
	timerGrace
	timerReveal
)

func (k timerKind) String() string {
	switch k {
	case timerDeadline:
		return "deadline"
	case timerGrace:
		return "grace"
	case timerReveal:
		return "reveal"
	default:
		return "unknown"
	}
}

type timerFired struct {
	kind  timerKind
	epoch uint64
}

func normalizeSettings(settings Settings) Settings {
	settings.Category = strings.TrimSpace(settings.Category)
	settings.Difficulty = strings.ToLower(strings.TrimSpace(settings.Difficulty))

	switch {
	case settings.Count <= 0:
		settings.Count = defaultQuestionCount
	case settings.Count > maxQuestionCount:
		settings.Count = maxQuestionCount
	}

	if settings.TimeLimit < 0 {
		settings.TimeLimit = 0
	}

	return settings
}

// Start fetches a batch of questions and opens the first one. Only the host
// may start, and only while no match is running or being started. The fetch
// happens on the calling goroutine so the session keeps serving requests.
func (s *Session) Start(ctx context.Context, connID string, settings Settings) error {
	settings = normalizeSettings(settings)

	var err error

	if derr := s.do(func() { err = s.beginStart(connID, settings) }); derr != nil {
		return derr
	}
	if err != nil {
		return err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	batch, ferr := s.supplier.Fetch(fetchCtx, questions.Query{
		Category:   settings.Category,
		Difficulty: settings.Difficulty,
		Amount:     settings.Count,
	})
	cancel()

	if ferr == nil && len(batch) == 0 {
		ferr = questions.ErrNoResults
	}

	if derr := s.do(func() { err = s.finishStart(batch, ferr) }); derr != nil {
		return derr
	}

	return err
}

func (s *Session) beginStart(connID string, settings Settings) error {
	if connID != s.hostID {
		return fmt.Errorf("start %s: %w", s.code, ErrUnauthorized)
	}

	if s.active() || s.starting {
		return fmt.Errorf("start %s: %w", s.code, ErrInProgress)
	}

	s.settings = settings
	s.starting = true

	return nil
}

func (s *Session) finishStart(batch []questions.Question, ferr error) error {
	s.starting = false

	if ferr != nil {
		log.Warn().
			Err(ferr).
			Str("code", s.code).
			Str("category", s.settings.Category).
			Str("difficulty", s.settings.Difficulty).
			Msg("question fetch failed")

		return fmt.Errorf("start %s: %w: %w", s.code, ErrFetchFailed, ferr)
	}

	s.questions = batch
	s.index = 0

	for _, p := range s.players {
		p.score = 0
		p.clearAnswer()
	}

	log.Info().
		Str("code", s.code).
		Int("questions", len(batch)).
		Int("time_limit", s.settings.TimeLimit).
		Msg("match started")

	s.openQuestion()

	return nil
}

func (p *player) clearAnswer() {
	p.answer = ""
	p.answered = false
	p.answeredAt = time.Time{}
}

func (s *Session) openQuestion() {
	q := s.questions[s.index]

	order := q.Answers()
	rand.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	s.answerOrder = order

	for _, p := range s.players {
		p.clearAnswer()
	}

	s.phase = PhaseQuestion
	s.deadline = time.Time{}

	if s.settings.TimeLimit > 0 {
		limit := time.Duration(s.settings.TimeLimit) * time.Second
		s.deadline = s.clock.Now().Add(limit)
		s.armTimer(timerDeadline, limit)
	} else {
		s.cancelTimer()
	}

	s.broadcast(EventQuestion, s.questionPayload())
}

func (s *Session) questionPayload() QuestionPayload {
	q := s.questions[s.index]

	payload := QuestionPayload{
		Index:      s.index,
		Total:      len(s.questions),
		Category:   q.Category,
		Difficulty: q.Difficulty,
		Prompt:     q.Prompt,
		Answers:    append([]string(nil), s.answerOrder...),
		TimeLimit:  s.settings.TimeLimit,
	}
	if !s.deadline.IsZero() {
		payload.Deadline = s.deadline.UnixMilli()
	}

	return payload
}

// SubmitAnswer records the first answer connID gives for the open question.
func (s *Session) SubmitAnswer(connID, answer string, index int) error {
	var err error

	if derr := s.do(func() { err = s.submitAnswer(connID, answer, index) }); derr != nil {
		return derr
	}

	return err
}

func (s *Session) submitAnswer(connID, answer string, index int) error {
	if s.phase != PhaseQuestion || index != s.index {
		return fmt.Errorf("answer %s[%d]: %w", s.code, index, ErrStale)
	}

	p := s.player(connID)
	if p == nil {
		return fmt.Errorf("answer %s: %w", s.code, ErrNotFound)
	}

	if p.answered {
		return fmt.Errorf("answer %s[%d]: %w", s.code, index, ErrDuplicate)
	}

	p.answer = answer
	p.answered = true
	p.answeredAt = s.clock.Now()

	s.broadcastPlayers()
	s.closeIfAllAnswered()

	return nil
}

// closeIfAllAnswered ends the open question early once nobody is left to
// answer it.
func (s *Session) closeIfAllAnswered() {
	if s.phase != PhaseQuestion || len(s.players) == 0 {
		return
	}

	for _, p := range s.players {
		if !p.answered {
			return
		}
	}

	s.phase = PhaseEvaluating
	s.armTimer(timerGrace, s.opts.AnswerGrace)

	s.broadcast(EventAllAnswered, PlayersPayload{Players: s.roster()})
}

func (s *Session) evaluate() {
	q := s.questions[s.index]

	results := make([]stats.PlayerResult, 0, len(s.players))
	for _, p := range s.players {
		correct := p.answered && p.answer == q.CorrectAnswer
		if correct {
			p.score++
		}

		results = append(results, stats.PlayerResult{
			ID:      p.id,
			Name:    p.name,
			Score:   p.score,
			Answer:  p.answer,
			Correct: correct,
		})

		p.clearAnswer()
	}

	s.phase = PhaseReveal
	s.deadline = time.Time{}

	now := s.clock.Now()
	s.armTimer(timerReveal, s.opts.RevealDuration)

	s.broadcast(EventQuestionEnded, QuestionEndedPayload{
		Index:         s.index,
		CorrectAnswer: q.CorrectAnswer,
		Players:       s.roster(),
		TransitionEnd: now.Add(s.opts.RevealDuration).UnixMilli(),
	})

	result := stats.QuestionResult{
		Code:          s.code,
		Index:         s.index,
		Category:      q.Category,
		Difficulty:    q.Difficulty,
		CorrectAnswer: q.CorrectAnswer,
		Players:       results,
		EndedAt:       now,
	}
	s.record("question", func(ctx context.Context) error {
		return s.recorder.RecordQuestion(ctx, result)
	})
}

func (s *Session) endReveal() {
	s.index++

	if s.index < len(s.questions) {
		s.openQuestion()

		return
	}

	s.complete()
}

func (s *Session) complete() {
	s.cancelTimer()
	s.phase = PhaseComplete
	s.deadline = time.Time{}
	s.answerOrder = nil

	winners := s.winners()

	log.Info().
		Str("code", s.code).
		Strs("winners", winners).
		Msg("match complete")

	s.broadcast(EventGameOver, GameOverPayload{
		Players: s.roster(),
		Winners: winners,
	})

	players := make([]stats.PlayerResult, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, stats.PlayerResult{ID: p.id, Name: p.name, Score: p.score})
	}

	result := stats.MatchResult{
		Code:      s.code,
		Questions: len(s.questions),
		Players:   players,
		Winners:   winners,
		EndedAt:   s.clock.Now(),
	}
	s.record("match", func(ctx context.Context) error {
		return s.recorder.RecordMatch(ctx, result)
	})
}

// winners returns the ids of every player sharing the highest score.
func (s *Session) winners() []string {
	best := -1
	for _, p := range s.players {
		if p.score > best {
			best = p.score
		}
	}

	ids := []string{}
	for _, p := range s.players {
		if p.score == best {
			ids = append(ids, p.id)
		}
	}

	return ids
}

func (s *Session) record(kind string, fn func(ctx context.Context) error) {
	if s.recorder == nil {
		return
	}

	code := s.code
	timeout := s.opts.RecordTimeout

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			log.Warn().
				Err(err).
				Str("code", code).
				Str("kind", kind).
				Msg("unable to record result")
		}
	}()
}

// armTimer replaces the session's single timer.
func (s *Session) armTimer(kind timerKind, d time.Duration) {
	s.cancelTimer()

	epoch := s.epoch
	s.timer = s.clock.AfterFunc(d, func() {
		select {
		case s.timers <- timerFired{kind: kind, epoch: epoch}:
		case <-s.quit:
		}
	})
}

func (s *Session) cancelTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	s.epoch++
}

func (s *Session) handleTimer(fired timerFired) {
	if fired.epoch != s.epoch {
		log.Debug().
			Str("code", s.code).
			Stringer("timer", fired.kind).
			Uint64("epoch", fired.epoch).
			Msg("discarding stale timer")

		return
	}

	s.timer = nil

	switch fired.kind {
	case timerDeadline:
		if s.phase != PhaseQuestion {
			return
		}

		log.Debug().Str("code", s.code).Int("index", s.index).Msg("question timed out")

		s.phase = PhaseEvaluating
		s.evaluate()
	case timerGrace:
		if s.phase == PhaseEvaluating {
			s.evaluate()
		}
	case timerReveal:
		if s.phase == PhaseReveal {
			s.endReveal()
		}
	}
}
