/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package questions supplies batches of trivia questions from an external
// content provider or a local question bank.
package questions

import (
	"context"
	"errors"
)

// ErrNoResults is returned when a provider has nothing for the requested
// category, difficulty and amount.
var ErrNoResults = errors.New("no questions available for the requested settings")

// Question is immutable once fetched.
type Question struct {
	Category         string   `json:"category" yaml:"category"`
	Difficulty       string   `json:"difficulty" yaml:"difficulty"`
	Prompt           string   `json:"question" yaml:"question"`
	CorrectAnswer    string   `json:"correct_answer" yaml:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers" yaml:"incorrect_answers"`
}

// Answers returns the correct answer followed by the incorrect ones.
func (q Question) Answers() []string {
	answers := make([]string, 0, len(q.IncorrectAnswers)+1)
	answers = append(answers, q.CorrectAnswer)
	return append(answers, q.IncorrectAnswers...)
}

// Query selects a batch. Empty Category or Difficulty means any.
type Query struct {
	Category   string
	Difficulty string
	Amount     int
}

// Supplier fetches an ordered batch of questions. Implementations may be
// slow and may fail; callers must not hold locks while waiting.
type Supplier interface {
	Fetch(ctx context.Context, q Query) ([]Question, error)
}
