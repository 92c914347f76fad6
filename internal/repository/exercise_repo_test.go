package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/evalia-edu/evalia-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Student{}, &models.Exercise{}, &models.Submission{}, &models.Evaluation{}))
	return db
}

func TestExerciseRepositoryListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewExerciseRepository(db)

	echo := models.Exercise{Slug: "echo-function", Title: "Echo Function", Prompt: "Echo the input", Channel: models.ExerciseChannelText, ExpectedOutput: "correct", Note: "Hallo", Language: "python", Difficulty: "easy", Tags: "io,basics"}
	sum := models.Exercise{Slug: "sum", Title: "Sum", Prompt: "Add two numbers", Channel: models.ExerciseChannelText, ExpectedOutput: "3", Language: "go", Difficulty: "easy", Tags: "math"}
	require.NoError(t, repo.Create(context.Background(), &echo))
	require.NoError(t, repo.Create(context.Background(), &sum))

	exercises, total, err := repo.List(context.Background(), ExerciseQuery{Language: "python"})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Len(t, exercises, 1)
	require.Equal(t, "echo-function", exercises[0].Slug)

	exercises, total, err = repo.List(context.Background(), ExerciseQuery{Search: "add"})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "sum", exercises[0].Slug)

	_, total, err = repo.List(context.Background(), ExerciseQuery{Tags: []string{"basics"}})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
}

func TestExerciseRepositoryGetBySlug(t *testing.T) {
	db := setupTestDB(t)
	repo := NewExerciseRepository(db)

	exercise := models.Exercise{Slug: "echo-function", Title: "Echo Function", Prompt: "Echo", Channel: models.ExerciseChannelText, ExpectedOutput: "correct", Note: "Hallo"}
	require.NoError(t, repo.Create(context.Background(), &exercise))

	found, err := repo.GetBySlug(context.Background(), "echo-function")
	require.NoError(t, err)
	require.Equal(t, exercise.ID, found.ID)
	require.Equal(t, "correct", found.ExpectedOutput)
	require.Equal(t, "Hallo", found.Note)

	_, err = repo.GetBySlug(context.Background(), "missing")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestExerciseRepositoryUpsertBatch(t *testing.T) {
	db := setupTestDB(t)
	repo := NewExerciseRepository(db)

	first := []models.Exercise{
		{Slug: "echo-function", Title: "Echo Function", Prompt: "Echo", Channel: models.ExerciseChannelText, ExpectedOutput: "correct", Note: "Hallo"},
		{Slug: "sum", Title: "Sum", Prompt: "Add", Channel: models.ExerciseChannelText, ExpectedOutput: "3"},
	}
	affected, err := repo.UpsertBatch(context.Background(), first)
	require.NoError(t, err)
	require.Equal(t, int64(2), affected)

	second := []models.Exercise{
		{Slug: "echo-function", Title: "Echo Function v2", Prompt: "Echo", Channel: models.ExerciseChannelText, ExpectedOutput: "correct", Note: "Hallo"},
	}
	affected, err = repo.UpsertBatch(context.Background(), second)
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	updated, err := repo.GetBySlug(context.Background(), "echo-function")
	require.NoError(t, err)
	require.Equal(t, "Echo Function v2", updated.Title)

	_, total, err := repo.List(context.Background(), ExerciseQuery{})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
}
