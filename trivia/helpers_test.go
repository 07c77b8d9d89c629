/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Seednode/triviabox/questions"
	"github.com/Seednode/triviabox/stats"
	"github.com/jonboulle/clockwork"
)

const eventTimeout = 2 * time.Second

type recordingConn struct {
	id     string
	events chan Event

	mu     sync.Mutex
	closed bool
}

func newRecordingConn(id string) *recordingConn {
	return &recordingConn{id: id, events: make(chan Event, 256)}
}

func (c *recordingConn) ID() string { return c.id }

func (c *recordingConn) Send(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.events <- ev:
		return true
	default:
		return false
	}
}

func (c *recordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	return nil
}

func (c *recordingConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

// next skips events until one named name arrives.
func (c *recordingConn) next(t *testing.T, name string) Event {
	t.Helper()

	timeout := time.After(eventTimeout)
	for {
		select {
		case ev := <-c.events:
			if ev.Name == name {
				return ev
			}
		case <-timeout:
			t.Fatalf("%s: timed out waiting for %s", c.id, name)
		}
	}
}

// expectNone fails if an event named name arrives within d.
func (c *recordingConn) expectNone(t *testing.T, name string, d time.Duration) {
	t.Helper()

	timeout := time.After(d)
	for {
		select {
		case ev := <-c.events:
			if ev.Name == name {
				t.Fatalf("%s: unexpected %s: %#v", c.id, name, ev.Data)
			}
		case <-timeout:
			return
		}
	}
}

func (c *recordingConn) drain() {
	for {
		select {
		case <-c.events:
		default:
			return
		}
	}
}

type fakeSupplier struct {
	mu      sync.Mutex
	batch   []questions.Question
	err     error
	calls   int
	queries []questions.Query
	block   chan struct{}
	called  chan struct{}
}

func (f *fakeSupplier) Fetch(ctx context.Context, q questions.Query) ([]questions.Question, error) {
	f.mu.Lock()
	f.calls++
	f.queries = append(f.queries, q)
	block, called := f.block, f.called
	batch, err := f.batch, f.err
	f.mu.Unlock()

	if called != nil {
		called <- struct{}{}
	}

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}

	if q.Amount < len(batch) {
		batch = batch[:q.Amount]
	}

	return append([]questions.Question(nil), batch...), nil
}

func (f *fakeSupplier) set(batch []questions.Question, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.batch = batch
	f.err = err
}

type fakeRecorder struct {
	questions chan stats.QuestionResult
	matches   chan stats.MatchResult
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		questions: make(chan stats.QuestionResult, 64),
		matches:   make(chan stats.MatchResult, 64),
	}
}

func (r *fakeRecorder) RecordQuestion(_ context.Context, q stats.QuestionResult) error {
	r.questions <- q
	return nil
}

func (r *fakeRecorder) RecordMatch(_ context.Context, m stats.MatchResult) error {
	r.matches <- m
	return nil
}

type testEnv struct {
	clock    *clockwork.FakeClock
	gateway  *Gateway
	registry *Registry
	handler  *Handler
	supplier *fakeSupplier
	recorder *fakeRecorder
}

func sequentialCodes(codes ...string) func() string {
	var mu sync.Mutex
	i := 0

	return func() string {
		mu.Lock()
		defer mu.Unlock()

		if i < len(codes) {
			code := codes[i]
			i++
			return code
		}

		i++
		return fmt.Sprintf("Z%04d", i)
	}
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	clock := clockwork.NewFakeClock()
	supplier := &fakeSupplier{batch: sampleQuestions(3)}
	recorder := newFakeRecorder()
	gw := NewGateway()

	opts.Clock = clock
	if opts.NewCode == nil {
		opts.NewCode = sequentialCodes("ABCDE", "FGHIJ", "KLMNO")
	}

	registry := NewRegistry(gw, supplier, recorder, opts)
	t.Cleanup(registry.Close)

	return &testEnv{
		clock:    clock,
		gateway:  gw,
		registry: registry,
		handler:  NewHandler(registry, gw),
		supplier: supplier,
		recorder: recorder,
	}
}

func (e *testEnv) connect(id string) *recordingConn {
	c := newRecordingConn(id)
	e.handler.Connect(c)
	return c
}

// host connects a player and creates a session, returning its code.
func (e *testEnv) host(t *testing.T, id, name string) (*recordingConn, string) {
	t.Helper()

	c := e.connect(id)
	e.handler.CreateSession(id, PlayerInfo{Name: name})

	ev := c.next(t, EventSessionCreated)
	return c, ev.Data.(CodePayload).Code
}

func (e *testEnv) join(t *testing.T, id, name, code string) *recordingConn {
	t.Helper()

	c := e.connect(id)
	e.handler.JoinSession(id, code, PlayerInfo{Name: name})
	c.next(t, EventJoinSuccess)
	return c
}

func (e *testEnv) session(t *testing.T, code string) *Session {
	t.Helper()

	s, err := e.registry.Get(code)
	if err != nil {
		t.Fatalf("get %s: %v", code, err)
	}
	return s
}

func (e *testEnv) snapshot(t *testing.T, code string) Snapshot {
	t.Helper()

	snap, err := e.session(t, code).Snapshot()
	if err != nil {
		t.Fatalf("snapshot %s: %v", code, err)
	}
	return snap
}

func sampleQuestions(n int) []questions.Question {
	qs := make([]questions.Question, 0, n)
	for i := 0; i < n; i++ {
		qs = append(qs, questions.Question{
			Category:         "General Knowledge",
			Difficulty:       "easy",
			Prompt:           fmt.Sprintf("Question %d?", i+1),
			CorrectAnswer:    "Y",
			IncorrectAnswers: []string{"X", "Z"},
		})
	}
	return qs
}

func playerByID(players []PlayerView, id string) (PlayerView, bool) {
	for _, p := range players {
		if p.ID == id {
			return p, true
		}
	}
	return PlayerView{}, false
}

func hostOf(players []PlayerView) string {
	for _, p := range players {
		if p.Host {
			return p.ID
		}
	}
	return ""
}
