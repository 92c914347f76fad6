package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/evalia-edu/evalia-api/internal/models"
)

func TestSeedRequiresEnabledFlag(t *testing.T) {
	svc := NewSeedService(&stubExerciseRepo{}, false, "token", zerolog.Nop())

	_, err := svc.SeedBuiltins(context.Background(), "token")
	require.ErrorIs(t, err, ErrSeedDisabled)
}

func TestSeedRejectsBadToken(t *testing.T) {
	svc := NewSeedService(&stubExerciseRepo{}, true, "token", zerolog.Nop())

	_, err := svc.SeedBuiltins(context.Background(), "wrong")
	require.ErrorIs(t, err, ErrSeedUnauthorized)
}

func TestSeedRejectsSameLengthToken(t *testing.T) {
	svc := NewSeedService(&stubExerciseRepo{}, true, "token", zerolog.Nop())

	_, err := svc.SeedBuiltins(context.Background(), "nekot")
	require.ErrorIs(t, err, ErrSeedUnauthorized)
}

func TestSeedRejectsEmptyConfiguredToken(t *testing.T) {
	svc := NewSeedService(&stubExerciseRepo{}, true, "", zerolog.Nop())

	_, err := svc.SeedBuiltins(context.Background(), "")
	require.ErrorIs(t, err, ErrSeedUnauthorized)
}

func TestSeedBuiltinsUpserts(t *testing.T) {
	svc := NewSeedService(&stubExerciseRepo{}, true, "token", zerolog.Nop())

	affected, err := svc.SeedBuiltins(context.Background(), "token")
	require.NoError(t, err)
	require.Equal(t, int64(len(BuiltinExercises())), affected)
}

func TestSeedNormalizesExercises(t *testing.T) {
	items := normalizeExercises([]models.Exercise{{Title: "My New Exercise"}})
	require.Equal(t, "my-new-exercise", items[0].Slug)
	require.Equal(t, models.ExerciseChannelText, items[0].Channel)
	require.Equal(t, "beginner", items[0].Difficulty)
}

func TestBuiltinCatalogContainsEchoFunction(t *testing.T) {
	var found models.Exercise
	for _, exercise := range BuiltinExercises() {
		if exercise.Slug == "echo-function" {
			found = exercise
			break
		}
	}
	require.NotZero(t, found.Slug)
	require.Equal(t, models.ExerciseChannelText, found.Channel)
	require.Equal(t, "correct", found.ExpectedOutput)
	require.Equal(t, "Hallo", found.Note)
	require.Empty(t, found.Language)
}
