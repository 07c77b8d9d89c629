/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Conn is a transport connection as seen by the gateway.
type Conn interface {
	ID() string

	// Send queues ev without blocking. It returns false when the
	// connection is closed or cannot keep up.
	Send(ev Event) bool

	Close() error
}

// Gateway fans events out to the subscribers of a session and replies to
// single connections. A connection subscribes to at most one session.
type Gateway struct {
	mu      sync.RWMutex
	conns   map[string]Conn
	rooms   map[string]map[string]struct{}
	members map[string]string
}

type GatewayStats struct {
	Connections int            `json:"connections"`
	Rooms       map[string]int `json:"rooms"`
}

func NewGateway() *Gateway {
	return &Gateway{
		conns:   make(map[string]Conn),
		rooms:   make(map[string]map[string]struct{}),
		members: make(map[string]string),
	}
}

func (g *Gateway) Attach(c Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.conns[c.ID()] = c
}

// Detach forgets the connection and returns the session it was subscribed
// to, if any. Room membership is left for the session to clear when it
// removes the player.
func (g *Gateway) Detach(connID string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.conns, connID)

	return g.members[connID]
}

// SessionOf returns the code connID is subscribed to.
func (g *Gateway) SessionOf(connID string) string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.members[connID]
}

func (g *Gateway) Subscribe(code, connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if previous, ok := g.members[connID]; ok && previous != code {
		g.unsubscribeLocked(previous, connID)
	}

	room := g.rooms[code]
	if room == nil {
		room = make(map[string]struct{})
		g.rooms[code] = room
	}
	room[connID] = struct{}{}
	g.members[connID] = code
}

func (g *Gateway) Unsubscribe(code, connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.unsubscribeLocked(code, connID)
}

func (g *Gateway) unsubscribeLocked(code, connID string) {
	if room, ok := g.rooms[code]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(g.rooms, code)
		}
	}

	if g.members[connID] == code {
		delete(g.members, connID)
	}
}

// CloseRoom drops every subscription to code.
func (g *Gateway) CloseRoom(code string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for connID := range g.rooms[code] {
		if g.members[connID] == code {
			delete(g.members, connID)
		}
	}
	delete(g.rooms, code)
}

// Members returns the connection ids subscribed to code.
func (g *Gateway) Members(code string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, 0, len(g.rooms[code]))
	for id := range g.rooms[code] {
		ids = append(ids, id)
	}

	return ids
}

func (g *Gateway) Broadcast(code string, ev Event) {
	g.mu.RLock()
	targets := make([]Conn, 0, len(g.rooms[code]))
	for id := range g.rooms[code] {
		if c, ok := g.conns[id]; ok {
			targets = append(targets, c)
		}
	}
	g.mu.RUnlock()

	for _, c := range targets {
		g.deliver(c, ev)
	}

	log.Debug().
		Str("code", code).
		Str("event", ev.Name).
		Int("connections", len(targets)).
		Msg("event broadcast")
}

func (g *Gateway) Reply(connID string, ev Event) {
	g.mu.RLock()
	c, ok := g.conns[connID]
	g.mu.RUnlock()

	if !ok {
		return
	}

	g.deliver(c, ev)
}

// deliver closes connections that cannot keep up; the transport reports
// the resulting disconnect, which removes the player.
func (g *Gateway) deliver(c Conn, ev Event) {
	if c.Send(ev) {
		return
	}

	log.Warn().
		Str("conn", c.ID()).
		Str("event", ev.Name).
		Msg("connection send buffer full, closing connection")

	_ = c.Close()
}

func (g *Gateway) Stats() GatewayStats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rooms := make(map[string]int, len(g.rooms))
	for code, members := range g.rooms {
		rooms[code] = len(members)
	}

	return GatewayStats{
		Connections: len(g.conns),
		Rooms:       rooms,
	}
}
