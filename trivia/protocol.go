/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"encoding/json"
)

// Client → server events
const (
	EventCreateSession = "create-session"
	EventJoinSession   = "join-session"
	EventGetPlayers    = "get-players"
	EventGetState      = "get-state"
	EventStart         = "start"
	EventSubmitAnswer  = "submit-answer"
	EventLeaveSession  = "leave-session"
)

// Server → client events
const (
	EventSessionCreated = "session-created"
	EventJoinSuccess    = "join-success"
	EventJoinError      = "join-error"
	EventUpdatePlayers  = "update-players"
	EventQuestion       = "question"
	EventAllAnswered    = "all-answered"
	EventQuestionEnded  = "question-ended"
	EventGameOver       = "game-over"
	EventState          = "state"
	EventStartError     = "start-error"
	EventError          = "error"
	EventSessionClosed  = "session-closed"
)

// Event is a named message in either direction.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

// ClientMessage is an Event as received, with the payload left raw until
// the handler knows which shape to decode.
type ClientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type PlayerInfo struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Settings configure a match. A zero TimeLimit means untimed.
type Settings struct {
	Category   string `json:"category,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Count      int    `json:"count"`
	TimeLimit  int    `json:"timeLimit,omitempty"`
}

type createRequest struct {
	Player PlayerInfo `json:"player"`
}

type joinRequest struct {
	Code   string     `json:"code"`
	Player PlayerInfo `json:"player"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type startRequest struct {
	Code     string   `json:"code"`
	Settings Settings `json:"settings"`
}

type answerRequest struct {
	Code          string `json:"code"`
	Answer        string `json:"answer"`
	QuestionIndex *int   `json:"questionIndex"`
}

type CodePayload struct {
	Code string `json:"code"`
}

type MessagePayload struct {
	Message string `json:"message"`
}

// PlayerView is what other clients may see of a player: never the answer.
type PlayerView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar,omitempty"`
	Score    int    `json:"score"`
	Answered bool   `json:"answered"`
	Host     bool   `json:"host"`
}

type PlayersPayload struct {
	Players []PlayerView `json:"players"`
}

type QuestionPayload struct {
	Index      int      `json:"index"`
	Total      int      `json:"total"`
	Category   string   `json:"category"`
	Difficulty string   `json:"difficulty"`
	Prompt     string   `json:"prompt"`
	Answers    []string `json:"answers"`
	TimeLimit  int      `json:"timeLimit,omitempty"`
	Deadline   int64    `json:"deadline,omitempty"`
}

type QuestionEndedPayload struct {
	Index         int          `json:"index"`
	CorrectAnswer string       `json:"correctAnswer"`
	Players       []PlayerView `json:"players"`
	TransitionEnd int64        `json:"transitionEnd"`
}

type GameOverPayload struct {
	Players []PlayerView `json:"players"`
	Winners []string     `json:"winners"`
}

type StatePayload struct {
	Code     string           `json:"code"`
	Players  []PlayerView     `json:"players"`
	Active   bool             `json:"active"`
	Question *QuestionPayload `json:"question,omitempty"`
	TimeLeft *int             `json:"timeLeft,omitempty"`
	MyAnswer string           `json:"myAnswer,omitempty"`
}
