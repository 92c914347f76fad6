package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/evalia-edu/evalia-api/internal/dto"
	"github.com/evalia-edu/evalia-api/internal/models"
)

func newTestExerciseService(repo *stubExerciseRepo, cache *redis.Client) ExerciseService {
	return NewExerciseService(repo, cache, time.Minute, validator.New(validator.WithRequiredStructEnabled()), zerolog.Nop())
}

func TestExerciseListHidesExpectedOutputFromStudents(t *testing.T) {
	repo := &stubExerciseRepo{exercise: echoFunctionExercise()}
	svc := newTestExerciseService(repo, nil)

	response, err := svc.List(context.Background(), dto.ExerciseFilter{}, models.RoleStudent)
	require.NoError(t, err)
	require.Len(t, response.Items, 1)
	require.Empty(t, response.Items[0].ExpectedOutput)
	require.Empty(t, response.Items[0].Note)

	staff, err := svc.List(context.Background(), dto.ExerciseFilter{}, models.RoleTeacher)
	require.NoError(t, err)
	require.Equal(t, "correct", staff.Items[0].ExpectedOutput)
	require.Equal(t, "Hallo", staff.Items[0].Note)
}

func TestExerciseListCachesPerRole(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	repo := &stubExerciseRepo{exercise: echoFunctionExercise()}
	svc := newTestExerciseService(repo, client)

	_, err = svc.List(context.Background(), dto.ExerciseFilter{}, models.RoleStudent)
	require.NoError(t, err)
	_, err = svc.List(context.Background(), dto.ExerciseFilter{}, models.RoleTeacher)
	require.NoError(t, err)

	keys := server.Keys()
	require.Len(t, keys, 2)
}

func TestExerciseGetNotFound(t *testing.T) {
	svc := newTestExerciseService(&stubExerciseRepo{}, nil)

	_, err := svc.Get(context.Background(), 42, models.RoleStudent)
	require.ErrorIs(t, err, ErrExerciseNotFound)
}

func TestExerciseCreateRequiresStaff(t *testing.T) {
	svc := newTestExerciseService(&stubExerciseRepo{}, nil)

	_, err := svc.Create(context.Background(), dto.ExerciseRequest{
		Slug:    "new-exercise",
		Title:   "New Exercise",
		Prompt:  "Do the thing.",
		Channel: models.ExerciseChannelText,
	}, models.RoleStudent)
	require.ErrorIs(t, err, ErrExerciseForbidden)
}

func TestExerciseCreateValidatesChannel(t *testing.T) {
	svc := newTestExerciseService(&stubExerciseRepo{}, nil)

	_, err := svc.Create(context.Background(), dto.ExerciseRequest{
		Slug:    "new-exercise",
		Title:   "New Exercise",
		Prompt:  "Do the thing.",
		Channel: "stderr",
	}, models.RoleTeacher)
	require.Error(t, err)
}

func TestExerciseCreateRejectsDuplicateSlug(t *testing.T) {
	repo := &stubExerciseRepo{exercise: echoFunctionExercise()}
	svc := newTestExerciseService(repo, nil)

	_, err := svc.Create(context.Background(), dto.ExerciseRequest{
		Slug:    "echo-function",
		Title:   "Echo Function",
		Prompt:  "Duplicate.",
		Channel: models.ExerciseChannelText,
	}, models.RoleTeacher)
	require.ErrorIs(t, err, ErrSlugTaken)
}

func TestExerciseDeleteRequiresStaff(t *testing.T) {
	repo := &stubExerciseRepo{exercise: echoFunctionExercise()}
	svc := newTestExerciseService(repo, nil)

	err := svc.Delete(context.Background(), 1, models.RoleStudent)
	require.ErrorIs(t, err, ErrExerciseForbidden)

	err = svc.Delete(context.Background(), 1, models.RoleAdmin)
	require.NoError(t, err)
}
