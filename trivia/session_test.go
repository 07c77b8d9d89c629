/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestCreateAndJoinBroadcastsRoster(t *testing.T) {
	env := newTestEnv(t, Options{})

	hostConn, code := env.host(t, "host", "Ada")
	if code != "ABCDE" {
		t.Fatalf("expected code ABCDE, got %s", code)
	}

	first := hostConn.next(t, EventUpdatePlayers).Data.(PlayersPayload)
	if len(first.Players) != 1 || !first.Players[0].Host {
		t.Fatalf("expected creator as sole host, got %#v", first.Players)
	}

	guest := env.connect("guest")
	env.handler.JoinSession("guest", " abcde ", PlayerInfo{Name: "Ben"})

	guestRoster := guest.next(t, EventUpdatePlayers).Data.(PlayersPayload)
	joined := guest.next(t, EventJoinSuccess).Data.(CodePayload)
	if joined.Code != code {
		t.Fatalf("expected join-success for %s, got %s", code, joined.Code)
	}

	hostRoster := hostConn.next(t, EventUpdatePlayers).Data.(PlayersPayload)

	for _, roster := range [][]PlayerView{guestRoster.Players, hostRoster.Players} {
		if len(roster) != 2 {
			t.Fatalf("expected 2 players, got %d", len(roster))
		}
		if roster[0].ID != "host" || roster[1].ID != "guest" {
			t.Fatalf("unexpected roster order %#v", roster)
		}
		if hostOf(roster) != "host" {
			t.Fatalf("expected host flag on creator, got %#v", roster)
		}
	}
}

func TestJoinUnknownCode(t *testing.T) {
	env := newTestEnv(t, Options{})

	c := env.connect("guest")
	env.handler.JoinSession("guest", "NOPE1", PlayerInfo{Name: "Ben"})

	ev := c.next(t, EventJoinError).Data.(MessagePayload)
	if ev.Message != ErrNotFound.Error() {
		t.Fatalf("unexpected message %q", ev.Message)
	}
}

func TestJoinEnforcesCapacity(t *testing.T) {
	env := newTestEnv(t, Options{Capacity: 2})

	_, code := env.host(t, "host", "Ada")
	env.join(t, "p2", "Ben", code)

	late := env.connect("p3")
	env.handler.JoinSession("p3", code, PlayerInfo{Name: "Cy"})

	ev := late.next(t, EventJoinError).Data.(MessagePayload)
	if ev.Message != ErrFull.Error() {
		t.Fatalf("expected %q, got %q", ErrFull.Error(), ev.Message)
	}

	if snap := env.snapshot(t, code); len(snap.Players) != 2 {
		t.Fatalf("expected roster of 2, got %d", len(snap.Players))
	}

	for _, id := range env.gateway.Members(code) {
		if id == "p3" {
			t.Fatal("rejected player was subscribed")
		}
	}
}

func TestRejoinIsIdempotent(t *testing.T) {
	env := newTestEnv(t, Options{})

	_, code := env.host(t, "host", "Ada")
	guest := env.join(t, "guest", "Ben", code)

	env.handler.JoinSession("guest", code, PlayerInfo{Name: "Ben again"})
	guest.next(t, EventJoinSuccess)

	roster := guest.next(t, EventUpdatePlayers).Data.(PlayersPayload)
	if len(roster.Players) != 2 {
		t.Fatalf("expected 2 players after re-join, got %d", len(roster.Players))
	}

	p, _ := playerByID(roster.Players, "guest")
	if p.Name != "Ben" {
		t.Fatalf("re-join should not rename, got %q", p.Name)
	}
}

func TestDisplayNames(t *testing.T) {
	env := newTestEnv(t, Options{})

	_, code := env.host(t, "host", "   ")
	env.join(t, "guest", strings.Repeat("x", 40), code)

	snap := env.snapshot(t, code)
	if snap.Players[0].Name != "Player 1" {
		t.Fatalf("expected default name, got %q", snap.Players[0].Name)
	}
	if got := len([]rune(snap.Players[1].Name)); got != maxNameLength {
		t.Fatalf("expected name truncated to %d runes, got %d", maxNameLength, got)
	}
}

func TestHostReassignedToOldestSurvivor(t *testing.T) {
	env := newTestEnv(t, Options{})

	_, code := env.host(t, "p1", "Ada")
	env.join(t, "p2", "Ben", code)
	p3 := env.join(t, "p3", "Cy", code)

	env.handler.LeaveSession("p1", code)

	roster := p3.next(t, EventUpdatePlayers).Data.(PlayersPayload)
	if len(roster.Players) != 2 || hostOf(roster.Players) != "p2" {
		t.Fatalf("expected p2 to be host, got %#v", roster.Players)
	}

	env.handler.Disconnect("p2")

	roster = p3.next(t, EventUpdatePlayers).Data.(PlayersPayload)
	if len(roster.Players) != 1 || hostOf(roster.Players) != "p3" {
		t.Fatalf("expected p3 to be host, got %#v", roster.Players)
	}

	if snap := env.snapshot(t, code); snap.HostID != "p3" {
		t.Fatalf("expected host p3, got %s", snap.HostID)
	}
}

func TestEmptySessionIsDestroyed(t *testing.T) {
	env := newTestEnv(t, Options{})

	_, code := env.host(t, "p1", "Ada")
	env.join(t, "p2", "Ben", code)

	env.handler.Disconnect("p1")
	env.handler.LeaveSession("p2", code)

	if _, err := env.registry.Get(code); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected session to be removed, got %v", err)
	}
	if env.registry.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", env.registry.Len())
	}
	if members := env.gateway.Members(code); len(members) != 0 {
		t.Fatalf("expected no subscribers, got %v", members)
	}
}

func TestCreateLeavesPreviousSession(t *testing.T) {
	env := newTestEnv(t, Options{})

	_, first := env.host(t, "p1", "Ada")
	p2 := env.join(t, "p2", "Ben", first)

	env.handler.CreateSession("p2", PlayerInfo{Name: "Ben"})
	second := p2.next(t, EventSessionCreated).Data.(CodePayload).Code

	if second == first {
		t.Fatalf("expected a new code, got %s", second)
	}
	if got := env.gateway.SessionOf("p2"); got != second {
		t.Fatalf("expected p2 subscribed to %s, got %s", second, got)
	}
	if snap := env.snapshot(t, first); len(snap.Players) != 1 {
		t.Fatalf("expected p2 removed from %s, got %#v", first, snap.Players)
	}
}

func TestFailedJoinKeepsPreviousSession(t *testing.T) {
	env := newTestEnv(t, Options{Capacity: 1})

	_, full := env.host(t, "h1", "Ada")
	h2, own := env.host(t, "h2", "Ben")
	h2.drain()

	env.handler.JoinSession("h2", full, PlayerInfo{Name: "Ben"})

	if msg := h2.next(t, EventJoinError).Data.(MessagePayload); msg.Message != ErrFull.Error() {
		t.Fatalf("expected %q, got %q", ErrFull.Error(), msg.Message)
	}

	snap := env.snapshot(t, own)
	if len(snap.Players) != 1 || snap.HostID != "h2" {
		t.Fatalf("expected h2 to remain host of %s, got %#v", own, snap)
	}
	if got := env.gateway.SessionOf("h2"); got != own {
		t.Fatalf("expected h2 subscribed to %s, got %s", own, got)
	}
	if snap := env.snapshot(t, full); len(snap.Players) != 1 {
		t.Fatalf("expected %s unchanged, got %#v", full, snap.Players)
	}
}

func TestJoinMovesBetweenSessions(t *testing.T) {
	env := newTestEnv(t, Options{})

	_, first := env.host(t, "h1", "Ada")
	h2, second := env.host(t, "h2", "Ben")
	h2.drain()

	env.handler.JoinSession("h2", first, PlayerInfo{Name: "Ben"})
	h2.next(t, EventJoinSuccess)

	if snap := env.snapshot(t, first); len(snap.Players) != 2 {
		t.Fatalf("expected 2 players in %s, got %#v", first, snap.Players)
	}
	if got := env.gateway.SessionOf("h2"); got != first {
		t.Fatalf("expected h2 subscribed to %s, got %s", first, got)
	}
	if _, err := env.registry.Get(second); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected abandoned session %s to be destroyed, got %v", second, err)
	}
}

func TestGetPlayersRepliesOnlyToRequester(t *testing.T) {
	env := newTestEnv(t, Options{})

	host, code := env.host(t, "host", "Ada")
	guest := env.join(t, "guest", "Ben", code)
	host.drain()

	env.handler.GetPlayers("guest", code)

	roster := guest.next(t, EventUpdatePlayers).Data.(PlayersPayload)
	if len(roster.Players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(roster.Players))
	}

	host.expectNone(t, EventUpdatePlayers, 50*time.Millisecond)

	env.handler.GetState("guest", "ZZZZZ")
	if msg := guest.next(t, EventError).Data.(MessagePayload); msg.Message != ErrNotFound.Error() {
		t.Fatalf("unexpected error %q", msg.Message)
	}
}

func TestReapClosesIdleSessions(t *testing.T) {
	env := newTestEnv(t, Options{IdleTimeout: 10 * time.Minute})

	host, code := env.host(t, "host", "Ada")

	env.clock.Advance(5 * time.Minute)
	if n := env.registry.Reap(env.clock.Now().Add(-10 * time.Minute)); n != 0 {
		t.Fatalf("expected nothing reaped, got %d", n)
	}

	env.clock.Advance(6 * time.Minute)
	if n := env.registry.Reap(env.clock.Now().Add(-10 * time.Minute)); n != 1 {
		t.Fatalf("expected 1 session reaped, got %d", n)
	}

	closed := host.next(t, EventSessionClosed).Data.(CodePayload)
	if closed.Code != code {
		t.Fatalf("unexpected code %s", closed.Code)
	}
	if env.registry.Len() != 0 {
		t.Fatalf("expected empty registry, got %d", env.registry.Len())
	}
	if env.gateway.SessionOf("host") != "" {
		t.Fatal("expected host unsubscribed")
	}
}

func TestReaperLoop(t *testing.T) {
	env := newTestEnv(t, Options{IdleTimeout: 10 * time.Minute})

	host, _ := env.host(t, "host", "Ada")

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	env.registry.StartReaper(ctx)
	if err := env.clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("reaper never started: %v", err)
	}

	env.clock.Advance(20 * time.Minute)

	host.next(t, EventSessionClosed)
}

func TestCreateRetriesOnCollision(t *testing.T) {
	env := newTestEnv(t, Options{NewCode: sequentialCodes("AAAAA", "AAAAA", "BBBBB")})

	first, err := env.registry.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := env.registry.Create()
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if first.Code() != "AAAAA" || second.Code() != "BBBBB" {
		t.Fatalf("unexpected codes %s %s", first.Code(), second.Code())
	}
}

func TestCreateGivesUpWhenCodesExhausted(t *testing.T) {
	env := newTestEnv(t, Options{NewCode: func() string { return "SAME1" }})

	if _, err := env.registry.Create(); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := env.registry.Create(); !errors.Is(err, ErrCodeSpace) {
		t.Fatalf("expected ErrCodeSpace, got %v", err)
	}
}

func TestNewCode(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := NewCode()
		if len(code) != codeLength {
			t.Fatalf("unexpected length %d", len(code))
		}
		for _, r := range code {
			if !strings.ContainsRune(codeLetters, r) {
				t.Fatalf("unexpected character %q in %s", r, code)
			}
		}
	}
}
