package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/evalia-edu/evalia-api/internal/dto"
)

// JudgedSubject is the NATS subject verdict events are published on.
const JudgedSubject = "evalia.submissions.judged"

type natsEventPublisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewNATSEventPublisher publishes judged events over NATS. The returned
// publisher is safe for concurrent use.
func NewNATSEventPublisher(conn *nats.Conn, logger zerolog.Logger) JudgedEventPublisher {
	return &natsEventPublisher{
		conn:    conn,
		subject: JudgedSubject,
		logger:  logger.With().Str("component", "event_publisher").Logger(),
	}
}

func (p *natsEventPublisher) PublishJudged(ctx context.Context, event dto.JudgedEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal judged event: %w", err)
	}

	if err := p.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("publish judged event: %w", err)
	}

	p.logger.Debug().
		Str("event_id", event.EventID).
		Uint("submission_id", event.SubmissionID).
		Str("status", event.Status).
		Msg("judged event published")

	return nil
}
