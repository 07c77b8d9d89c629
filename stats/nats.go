/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

const DefaultSubject = "triviabox.stats"

// Envelope is the message body published for every result.
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Code      string          `json:"code"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Publisher is the subset of *nats.Conn used to publish results.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATS publishes results as envelopes on <prefix>.question and <prefix>.match.
type NATS struct {
	pub    Publisher
	prefix string
	nc     *nats.Conn
}

// DialNATS connects to url with unlimited reconnects.
func DialNATS(url, prefix string) (*NATS, error) {
	opts := []nats.Option{
		nats.Name("triviabox"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	n := NewNATS(nc, prefix)
	n.nc = nc

	return n, nil
}

func NewNATS(pub Publisher, prefix string) *NATS {
	if prefix == "" {
		prefix = DefaultSubject
	}

	return &NATS{
		pub:    pub,
		prefix: prefix,
	}
}

func (n *NATS) RecordQuestion(ctx context.Context, r QuestionResult) error {
	return n.publish(ctx, "question", r.Code, r)
}

func (n *NATS) RecordMatch(ctx context.Context, r MatchResult) error {
	return n.publish(ctx, "match", r.Code, r)
}

func (n *NATS) publish(ctx context.Context, kind, code string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s result: %w", kind, err)
	}

	data, err := json.Marshal(Envelope{
		ID:        uuid.New().String(),
		Type:      kind,
		Code:      code,
		Timestamp: time.Now().UTC(),
		Payload:   body,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	subject := n.prefix + "." + kind
	if err := n.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	return nil
}

// Close drains the connection opened by DialNATS, if any.
func (n *NATS) Close() error {
	if n.nc == nil {
		return nil
	}

	return n.nc.Drain()
}
