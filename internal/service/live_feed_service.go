package service

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/evalia-edu/evalia-api/internal/dto"
)

// LiveFeedService fans judged events out to connected websocket clients.
// Events originate on the NATS subject so every node in the cluster sees
// verdicts judged anywhere.
type LiveFeedService interface {
	Start(ctx context.Context) error
	Subscribe() chan dto.JudgedEvent
	Unsubscribe(ch chan dto.JudgedEvent)
}

type liveFeedService struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger

	mu          sync.Mutex
	subscribers map[chan dto.JudgedEvent]struct{}
}

// NewLiveFeedService constructs the feed hub. Call Start before accepting
// websocket clients.
func NewLiveFeedService(conn *nats.Conn, logger zerolog.Logger) LiveFeedService {
	return &liveFeedService{
		conn:        conn,
		subject:     JudgedSubject,
		logger:      logger.With().Str("component", "live_feed_service").Logger(),
		subscribers: make(map[chan dto.JudgedEvent]struct{}),
	}
}

func (s *liveFeedService) Start(ctx context.Context) error {
	sub, err := s.conn.Subscribe(s.subject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain live feed subscription")
		}
	}()

	return nil
}

func (s *liveFeedService) Subscribe() chan dto.JudgedEvent {
	ch := make(chan dto.JudgedEvent, 16)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *liveFeedService) Unsubscribe(ch chan dto.JudgedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[ch]; ok {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *liveFeedService) handleEvent(payload []byte) {
	var event dto.JudgedEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid judged event payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			// Slow clients drop events rather than blocking the hub.
		}
	}
}
