/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package questions

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const DefaultOpenTDBURL = "https://opentdb.com"

// Open Trivia DB caps a single request at 50 questions.
const openTDBMaxAmount = 50

// OpenTDB fetches multiple-choice questions from the Open Trivia DB API.
type OpenTDB struct {
	baseURL string
	client  *http.Client
}

type openTDBResponse struct {
	ResponseCode int               `json:"response_code"`
	Results      []openTDBQuestion `json:"results"`
}

type openTDBQuestion struct {
	Type             string   `json:"type"`
	Difficulty       string   `json:"difficulty"`
	Category         string   `json:"category"`
	Question         string   `json:"question"`
	CorrectAnswer    string   `json:"correct_answer"`
	IncorrectAnswers []string `json:"incorrect_answers"`
}

func NewOpenTDB(baseURL string, timeout time.Duration) *OpenTDB {
	if baseURL == "" {
		baseURL = DefaultOpenTDBURL
	}

	return &OpenTDB{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (o *OpenTDB) endpoint(q Query) (string, error) {
	amount := q.Amount
	if amount > openTDBMaxAmount {
		amount = openTDBMaxAmount
	}

	params := url.Values{}
	params.Set("amount", strconv.Itoa(amount))
	params.Set("type", "multiple")

	if q.Category != "" {
		id, err := openTDBCategory(q.Category)
		if err != nil {
			return "", err
		}
		params.Set("category", id)
	}
	if q.Difficulty != "" {
		params.Set("difficulty", strings.ToLower(q.Difficulty))
	}

	return o.baseURL + "/api.php?" + params.Encode(), nil
}

func (o *OpenTDB) Fetch(ctx context.Context, q Query) ([]Question, error) {
	if q.Amount <= 0 {
		return nil, ErrNoResults
	}

	endpoint, err := o.endpoint(q)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("opentdb returned status code: %d, response: %s", resp.StatusCode, string(body))
	}

	var decoded openTDBResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	// Non-zero codes cover "not enough questions", invalid parameters and
	// rate limiting; all of them mean this batch is unusable.
	if decoded.ResponseCode != 0 || len(decoded.Results) == 0 {
		return nil, fmt.Errorf("opentdb response code %d: %w", decoded.ResponseCode, ErrNoResults)
	}

	out := make([]Question, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		incorrect := make([]string, 0, len(r.IncorrectAnswers))
		for _, a := range r.IncorrectAnswers {
			incorrect = append(incorrect, html.UnescapeString(a))
		}

		out = append(out, Question{
			Category:         html.UnescapeString(r.Category),
			Difficulty:       r.Difficulty,
			Prompt:           html.UnescapeString(r.Question),
			CorrectAnswer:    html.UnescapeString(r.CorrectAnswer),
			IncorrectAnswers: incorrect,
		})
	}

	return out, nil
}
