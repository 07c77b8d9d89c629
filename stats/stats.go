/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package stats hands finished questions and matches to the external
// account service. Nothing here may block or fail a running match.
package stats

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

type PlayerResult struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Score   int    `json:"score"`
	Answer  string `json:"answer,omitempty"`
	Correct bool   `json:"correct"`
}

type QuestionResult struct {
	Code          string         `json:"code"`
	Index         int            `json:"index"`
	Category      string         `json:"category"`
	Difficulty    string         `json:"difficulty"`
	CorrectAnswer string         `json:"correct_answer"`
	Players       []PlayerResult `json:"players"`
	EndedAt       time.Time      `json:"ended_at"`
}

type MatchResult struct {
	Code      string         `json:"code"`
	Questions int            `json:"questions"`
	Players   []PlayerResult `json:"players"`
	Winners   []string       `json:"winners"`
	EndedAt   time.Time      `json:"ended_at"`
}

type Recorder interface {
	RecordQuestion(ctx context.Context, r QuestionResult) error
	RecordMatch(ctx context.Context, r MatchResult) error
}

// Nop discards all results.
type Nop struct{}

func (Nop) RecordQuestion(context.Context, QuestionResult) error { return nil }

func (Nop) RecordMatch(context.Context, MatchResult) error { return nil }

// Logger writes results to the debug log instead of a downstream service.
type Logger struct{}

func (Logger) RecordQuestion(_ context.Context, r QuestionResult) error {
	log.Debug().
		Str("code", r.Code).
		Int("index", r.Index).
		Int("players", len(r.Players)).
		Msg("question resolved")
	return nil
}

func (Logger) RecordMatch(_ context.Context, r MatchResult) error {
	log.Debug().
		Str("code", r.Code).
		Int("questions", r.Questions).
		Strs("winners", r.Winners).
		Msg("match completed")
	return nil
}
