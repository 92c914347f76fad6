package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/evalia-edu/evalia-api/internal/service"
)

// LiveFeedHandler streams judged events to websocket clients.
type LiveFeedHandler struct {
	service service.LiveFeedService
	logger  zerolog.Logger
}

// NewLiveFeedHandler constructs the handler.
func NewLiveFeedHandler(service service.LiveFeedService, logger zerolog.Logger) *LiveFeedHandler {
	return &LiveFeedHandler{
		service: service,
		logger:  logger.With().Str("component", "live_feed_handler").Logger(),
	}
}

// Register wires the websocket upgrade route.
func (h *LiveFeedHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *LiveFeedHandler) handleConnection(conn *websocket.Conn) {
	events := h.service.Subscribe()
	defer h.service.Unsubscribe(events)

	h.logger.Info().Msg("live feed client connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Drain client frames so close messages are processed.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug().Err(err).Msg("live feed write failed")
				return
			}
		case <-done:
			h.logger.Info().Msg("live feed client disconnected")
			return
		}
	}
}
