/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package questions

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Bank serves questions from a fixed, locally loaded set.
type Bank struct {
	questions []Question
}

type bankFile struct {
	Questions []Question `yaml:"questions"`
}

// LoadBank reads a YAML file of the form:
//
//	questions:
//	  - category: Science
//	    difficulty: easy
//	    question: What is H2O?
//	    correct_answer: Water
//	    incorrect_answers: [Salt, Sand, Air]
func LoadBank(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question file: %w", err)
	}

	return ParseBank(data)
}

func ParseBank(data []byte) (*Bank, error) {
	var file bankFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse question file: %w", err)
	}

	for i, q := range file.Questions {
		if q.Prompt == "" || q.CorrectAnswer == "" {
			return nil, fmt.Errorf("question %d: question and correct_answer are required", i+1)
		}
	}

	return NewBank(file.Questions), nil
}

func NewBank(qs []Question) *Bank {
	return &Bank{questions: qs}
}

func (b *Bank) Len() int {
	return len(b.questions)
}

func (b *Bank) Fetch(ctx context.Context, q Query) ([]Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matches := make([]Question, 0, len(b.questions))
	for _, candidate := range b.questions {
		if q.Category != "" && !strings.EqualFold(candidate.Category, q.Category) {
			continue
		}
		if q.Difficulty != "" && !strings.EqualFold(candidate.Difficulty, q.Difficulty) {
			continue
		}
		matches = append(matches, candidate)
	}

	if len(matches) == 0 || q.Amount <= 0 {
		return nil, ErrNoResults
	}

	rand.Shuffle(len(matches), func(i, j int) {
		matches[i], matches[j] = matches[j], matches[i]
	})

	if q.Amount < len(matches) {
		matches = matches[:q.Amount]
	}

	return matches, nil
}
