/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package trivia coordinates live multiplayer trivia sessions: the session
// registry, the per-session round scheduler, the broadcast gateway and the
// websocket transport that feeds them.
package trivia

import (
	"context"
	"crypto/rand"
	"sort"
	"sync"
	"time"

	"github.com/Seednode/triviabox/questions"
	"github.com/Seednode/triviabox/stats"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	codeLetters  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 5
	codeAttempts = 16
)

type Options struct {
	Capacity       int
	AnswerGrace    time.Duration
	RevealDuration time.Duration
	FetchTimeout   time.Duration
	RecordTimeout  time.Duration

	// IdleTimeout of zero disables the reaper.
	IdleTimeout time.Duration

	Clock   clockwork.Clock
	NewCode func() string
}

func (o Options) withDefaults() Options {
	if o.Capacity <= 0 {
		o.Capacity = 8
	}
	if o.AnswerGrace <= 0 {
		o.AnswerGrace = time.Second
	}
	if o.RevealDuration <= 0 {
		o.RevealDuration = 3 * time.Second
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 10 * time.Second
	}
	if o.RecordTimeout <= 0 {
		o.RecordTimeout = 5 * time.Second
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.NewCode == nil {
		o.NewCode = NewCode
	}

	return o
}

// NewCode returns a crypto-random session code.
func NewCode() string {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}

	out := make([]byte, codeLength)
	for i := range out {
		out[i] = codeLetters[int(buf[i])%len(codeLetters)]
	}

	return string(out)
}

// Registry holds every live session keyed by code. Its mutex guards only
// the map; each session serializes its own state.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	gateway  *Gateway
	supplier questions.Supplier
	recorder stats.Recorder
	opts     Options
}

func NewRegistry(gw *Gateway, supplier questions.Supplier, recorder stats.Recorder, opts Options) *Registry {
	if recorder == nil {
		recorder = stats.Nop{}
	}

	return &Registry{
		sessions: make(map[string]*Session),
		gateway:  gw,
		supplier: supplier,
		recorder: recorder,
		opts:     opts.withDefaults(),
	}
}

// Create allocates a fresh code and starts an empty session under it.
func (r *Registry) Create() (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for attempt := 0; attempt < codeAttempts; attempt++ {
		code := r.opts.NewCode()
		if _, exists := r.sessions[code]; exists {
			continue
		}

		s := newSession(code, r.opts, r.supplier, r.recorder, r.gateway, r.Remove)
		r.sessions[code] = s

		log.Info().Str("code", code).Msg("session created")

		return s, nil
	}

	return nil, ErrCodeSpace
}

func (r *Registry) Get(code string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[code]
	if !ok {
		return nil, ErrNotFound
	}

	return s, nil
}

// Remove forgets code. Sessions call it on themselves when their roster
// empties, so it must never call back into a session.
func (r *Registry) Remove(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[code]; !ok {
		return
	}

	delete(r.sessions, code)

	log.Info().Str("code", code).Msg("session removed")
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

func (r *Registry) Codes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	codes := make([]string, 0, len(r.sessions))
	for code := range r.sessions {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	return codes
}

func (r *Registry) snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}

	return sessions
}

// Reap closes every session with no activity since cutoff and returns how
// many were closed.
func (r *Registry) Reap(cutoff time.Time) int {
	reaped := 0

	for _, s := range r.snapshot() {
		last, err := s.idleSince()
		if err != nil || !last.Before(cutoff) {
			continue
		}

		if err := s.Close(); err != nil {
			continue
		}

		log.Info().
			Str("code", s.Code()).
			Time("last_active", last).
			Msg("reaped idle session")

		reaped++
	}

	return reaped
}

// StartReaper closes idle sessions every IdleTimeout/2 until ctx is done.
func (r *Registry) StartReaper(ctx context.Context) {
	if r.opts.IdleTimeout <= 0 {
		return
	}

	ticker := r.opts.Clock.NewTicker(r.opts.IdleTimeout / 2)

	go func() {
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				r.Reap(r.opts.Clock.Now().Add(-r.opts.IdleTimeout))
			}
		}
	}()
}

// Close shuts down every session, notifying their players.
func (r *Registry) Close() {
	for _, s := range r.snapshot() {
		_ = s.Close()
	}
}
