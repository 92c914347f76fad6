package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/evalia-edu/evalia-api/internal/models"
)

// ExerciseQuery defines filters and pagination for the exercise catalog.
type ExerciseQuery struct {
	Language   string
	Difficulty string
	Channel    string
	Tags       []string
	Search     string
	Offset     int
	Limit      int
}

// ExerciseRepository exposes persistence operations for exercises.
type ExerciseRepository interface {
	List(ctx context.Context, query ExerciseQuery) ([]models.Exercise, int64, error)
	GetByID(ctx context.Context, id uint) (models.Exercise, error)
	GetBySlug(ctx context.Context, slug string) (models.Exercise, error)
	Create(ctx context.Context, exercise *models.Exercise) error
	Update(ctx context.Context, exercise *models.Exercise) error
	Delete(ctx context.Context, id uint) error
	UpsertBatch(ctx context.Context, exercises []models.Exercise) (int64, error)
}

// NewExerciseRepository constructs an exercise repository.
func NewExerciseRepository(db *gorm.DB) ExerciseRepository {
	return &exerciseRepository{db: db}
}

type exerciseRepository struct {
	db *gorm.DB
}

func (r *exerciseRepository) List(ctx context.Context, query ExerciseQuery) ([]models.Exercise, int64, error) {
	db := r.db.WithContext(ctx).Model(&models.Exercise{})

	if query.Language != "" {
		db = db.Where("LOWER(language) = ?", strings.ToLower(query.Language))
	}

	if query.Difficulty != "" {
		db = db.Where("LOWER(difficulty) = ?", strings.ToLower(query.Difficulty))
	}

	if query.Channel != "" {
		db = db.Where("channel = ?", query.Channel)
	}

	if query.Search != "" {
		pattern := fmt.Sprintf("%%%s%%", strings.ToLower(query.Search))
		db = db.Where("LOWER(title) LIKE ? OR LOWER(prompt) LIKE ?", pattern, pattern)
	}

	if len(query.Tags) > 0 {
		for _, tag := range query.Tags {
			trimmed := strings.TrimSpace(tag)
			if trimmed == "" {
				continue
			}
			like := fmt.Sprintf("%%%s%%", strings.ToLower(trimmed))
			db = db.Where("LOWER(tags) LIKE ?", like)
		}
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if query.Offset > 0 {
		db = db.Offset(query.Offset)
	}
	if query.Limit > 0 {
		db = db.Limit(query.Limit)
	}

	db = db.Order("created_at DESC")

	var exercises []models.Exercise
	if err := db.Find(&exercises).Error; err != nil {
		return nil, 0, err
	}

	return exercises, total, nil
}

func (r *exerciseRepository) GetByID(ctx context.Context, id uint) (models.Exercise, error) {
	var exercise models.Exercise
	if err := r.db.WithContext(ctx).First(&exercise, id).Error; err != nil {
		return models.Exercise{}, err
	}
	return exercise, nil
}

func (r *exerciseRepository) GetBySlug(ctx context.Context, slug string) (models.Exercise, error) {
	var exercise models.Exercise
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&exercise).Error; err != nil {
		return models.Exercise{}, err
	}
	return exercise, nil
}

func (r *exerciseRepository) Create(ctx context.Context, exercise *models.Exercise) error {
	return r.db.WithContext(ctx).Create(exercise).Error
}

func (r *exerciseRepository) Update(ctx context.Context, exercise *models.Exercise) error {
	return r.db.WithContext(ctx).Save(exercise).Error
}

func (r *exerciseRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Exercise{}, id).Error
}

func (r *exerciseRepository) UpsertBatch(ctx context.Context, exercises []models.Exercise) (int64, error) {
	var affected int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range exercises {
			var existing models.Exercise
			err := tx.Where("slug = ?", exercises[i].Slug).First(&existing).Error
			switch {
			case err == nil:
				exercises[i].ID = existing.ID
				exercises[i].CreatedAt = existing.CreatedAt
				if err := tx.Save(&exercises[i]).Error; err != nil {
					return err
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Create(&exercises[i]).Error; err != nil {
					return err
				}
			default:
				return err
			}
			affected++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}
