package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/evalia-edu/evalia-api/internal/models"
	"github.com/evalia-edu/evalia-api/internal/repository"
)

var (
	// ErrSeedDisabled indicates the seeding tools are disabled by configuration.
	ErrSeedDisabled = errors.New("seeding is disabled")
	// ErrSeedUnauthorized indicates the provided token is invalid.
	ErrSeedUnauthorized = errors.New("invalid seed token")
)

// SeedService orchestrates exercise catalog seeding.
type SeedService interface {
	SeedExercises(ctx context.Context, token string, items []models.Exercise) (int64, error)
	SeedBuiltins(ctx context.Context, token string) (int64, error)
}

type seedService struct {
	exerciseRepo repository.ExerciseRepository
	enabled      bool
	token        string
	logger       zerolog.Logger
}

// NewSeedService constructs a seeding service.
func NewSeedService(exerciseRepo repository.ExerciseRepository, enabled bool, token string, logger zerolog.Logger) SeedService {
	return &seedService{
		exerciseRepo: exerciseRepo,
		enabled:      enabled,
		token:        token,
		logger:       logger.With().Str("component", "seed_service").Logger(),
	}
}

func (s *seedService) SeedExercises(ctx context.Context, token string, items []models.Exercise) (int64, error) {
	if !s.enabled {
		return 0, ErrSeedDisabled
	}
	if !s.validateToken(token) {
		return 0, ErrSeedUnauthorized
	}
	normalized := normalizeExercises(items)
	affected, err := s.exerciseRepo.UpsertBatch(ctx, normalized)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int64("affected", affected).Msg("exercises seeded")
	return affected, nil
}

func (s *seedService) SeedBuiltins(ctx context.Context, token string) (int64, error) {
	return s.SeedExercises(ctx, token, BuiltinExercises())
}

func (s *seedService) validateToken(token string) bool {
	expected := strings.TrimSpace(s.token)
	if expected == "" {
		return false
	}
	return constantTimeCompare(expected, strings.TrimSpace(token))
}

func constantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func normalizeExercises(items []models.Exercise) []models.Exercise {
	for i := range items {
		if items[i].Slug == "" {
			items[i].Slug = strings.ReplaceAll(strings.ToLower(items[i].Title), " ", "-")
		}
		if items[i].Channel == "" {
			items[i].Channel = models.ExerciseChannelText
		}
		if items[i].Difficulty == "" {
			items[i].Difficulty = "beginner"
		}
	}
	return items
}

// BuiltinExercises returns the starter catalog shipped with the judge.
func BuiltinExercises() []models.Exercise {
	return []models.Exercise{
		{
			Slug:           "echo-function",
			Title:          "Echo Function",
			Prompt:         "Reply with the word that proves you understood the assignment.",
			Channel:        models.ExerciseChannelText,
			ExpectedOutput: "correct",
			Note:           "Hallo",
			Difficulty:     "beginner",
			Tags:           "warmup,text",
		},
		{
			Slug:           "echo",
			Title:          "Echo",
			Prompt:         "Write a program that prints exactly: Hello, world!",
			Language:       "python",
			Channel:        models.ExerciseChannelText,
			ExpectedOutput: "Hello, world!\n",
			Difficulty:     "beginner",
			Tags:           "warmup,stdout",
		},
		{
			Slug:             "sum-loose",
			Title:            "Sum With Loose Formatting",
			Prompt:           "Print the sum of 2 and 40. Capitalisation and spacing are not graded.",
			Language:         "python",
			Channel:          models.ExerciseChannelText,
			ExpectedOutput:   "The Sum Is 42",
			IgnoreCase:       true,
			IgnoreWhitespace: true,
			Difficulty:       "beginner",
			Tags:             "arithmetic,text",
		},
		{
			Slug:       "silent-runner",
			Title:      "Silent Runner",
			Prompt:     "Write a program that completes without printing anything.",
			Language:   "python",
			Channel:    models.ExerciseChannelNothing,
			Difficulty: "beginner",
			Tags:       "stdout",
		},
		{
			Slug:             "clean-exit",
			Title:            "Clean Exit",
			Prompt:           "Write a program that exits with status code 3.",
			Language:         "python",
			Channel:          models.ExerciseChannelExitCode,
			ExpectedExitCode: 3,
			Difficulty:       "intermediate",
			Tags:             "process,exitcode",
		},
	}
}
