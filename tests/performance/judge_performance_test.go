package performance_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/evalia-edu/evalia-api/internal/dto"
	"github.com/evalia-edu/evalia-api/internal/handler"
	"github.com/evalia-edu/evalia-api/internal/models"
	"github.com/evalia-edu/evalia-api/internal/repository"
	"github.com/evalia-edu/evalia-api/internal/service"
)

func setupCatalogPerformanceApp(t *testing.T) *fiber.App {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:catalogperf?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Exercise{}))

	for i := 0; i < 200; i++ {
		exercise := models.Exercise{
			Slug:           fmt.Sprintf("exercise-%03d", i),
			Title:          fmt.Sprintf("Exercise %03d", i),
			Prompt:         "Solve the task.",
			Channel:        models.ExerciseChannelText,
			ExpectedOutput: "42",
			Difficulty:     "beginner",
			Tags:           "perf,catalog",
		}
		require.NoError(t, db.Create(&exercise).Error)
	}

	exerciseService := service.NewExerciseService(
		repository.NewExerciseRepository(db),
		nil,
		0,
		validator.New(validator.WithRequiredStructEnabled()),
		zerolog.Nop(),
	)
	exerciseHandler := handler.NewExerciseHandler(exerciseService, validator.New(), zerolog.Nop())

	app := fiber.New()
	group := app.Group("/api/v2/exercises", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(7))
		c.Locals("user_role", "student")
		return c.Next()
	})
	exerciseHandler.Register(group)

	return app
}

func TestExerciseCatalogP95LatencyBelow250ms(t *testing.T) {
	app := setupCatalogPerformanceApp(t)

	runs := 40
	durations := make([]time.Duration, 0, runs)

	for i := 0; i < runs; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v2/exercises?page_size=50", nil)
		start := time.Now()
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		durations = append(durations, time.Since(start))
	}

	p95 := percentile(durations, 0.95)
	require.LessOrEqual(t, p95, 250*time.Millisecond)
}

type broadcastFeed struct {
	mu          sync.Mutex
	subscribers map[chan dto.JudgedEvent]struct{}
}

func (f *broadcastFeed) Start(context.Context) error { return nil }

func (f *broadcastFeed) Subscribe() chan dto.JudgedEvent {
	ch := make(chan dto.JudgedEvent, 16)
	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()
	ch <- dto.JudgedEvent{EventID: "welcome", SubmissionID: 1, ExerciseID: 1, StudentID: 1, Status: "correct", OccurredAt: time.Now().UTC()}
	return ch
}

func (f *broadcastFeed) Unsubscribe(ch chan dto.JudgedEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subscribers[ch]; ok {
		delete(f.subscribers, ch)
		close(ch)
	}
}

func TestLiveFeedWebsocketP95Under250ms(t *testing.T) {
	feed := &broadcastFeed{subscribers: make(map[chan dto.JudgedEvent]struct{})}
	feedHandler := handler.NewLiveFeedHandler(feed, zerolog.Nop())

	app := fiber.New()
	feedHandler.Register(app.Group("/api/v2/feed"))

	baseURL, shutdown := startFiberServer(t, app)
	defer shutdown()

	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v2/feed/ws"
	clients := 200
	durations := make([]time.Duration, 0, clients)

	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}

	for i := 0; i < clients; i++ {
		start := time.Now()
		conn, resp, err := dialer.Dial(url, nil)
		require.NoError(t, err)
		if resp != nil {
			_ = resp.Body.Close()
		}

		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, _ = conn.ReadMessage()
		_ = conn.Close()

		durations = append(durations, time.Since(start))
	}

	p95 := percentile(durations, 0.95)
	require.LessOrEqual(t, p95, 250*time.Millisecond)
}

func percentile(values []time.Duration, pct float64) time.Duration {
	if len(values) == 0 {
		return 0
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	index := int(math.Ceil(pct*float64(len(values)))) - 1
	if index < 0 {
		index = 0
	}
	if index >= len(values) {
		index = len(values) - 1
	}
	return values[index]
}

func startFiberServer(t *testing.T, app *fiber.App) (string, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)

	shutdown := func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	}

	return "http://" + listener.Addr().String(), shutdown
}
