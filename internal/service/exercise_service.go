package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/evalia-edu/evalia-api/internal/dto"
	"github.com/evalia-edu/evalia-api/internal/models"
	"github.com/evalia-edu/evalia-api/internal/repository"
)

// ErrExerciseNotFound indicates the exercise cannot be located.
var ErrExerciseNotFound = errors.New("exercise not found")

// ErrExerciseForbidden indicates the caller may not modify exercises.
var ErrExerciseForbidden = errors.New("forbidden")

// ErrSlugTaken indicates another exercise already uses the requested slug.
var ErrSlugTaken = errors.New("slug already in use")

const defaultExercisePageSize = 20

// ExerciseService exposes catalog operations.
type ExerciseService interface {
	List(ctx context.Context, filter dto.ExerciseFilter, role string) (dto.ExerciseListResponse, error)
	Get(ctx context.Context, id uint, role string) (dto.ExerciseResponse, error)
	Create(ctx context.Context, payload dto.ExerciseRequest, role string) (dto.ExerciseResponse, error)
	Update(ctx context.Context, id uint, payload dto.ExerciseRequest, role string) (dto.ExerciseResponse, error)
	Delete(ctx context.Context, id uint, role string) error
}

type exerciseService struct {
	repo      repository.ExerciseRepository
	cache     *redis.Client
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewExerciseService constructs the catalog service.
func NewExerciseService(repo repository.ExerciseRepository, cache *redis.Client, cacheTTL time.Duration, validate *validator.Validate, logger zerolog.Logger) ExerciseService {
	return &exerciseService{
		repo:      repo,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger.With().Str("component", "exercise_service").Logger(),
	}
}

func (s *exerciseService) List(ctx context.Context, filter dto.ExerciseFilter, role string) (dto.ExerciseListResponse, error) {
	includeExpected := isStaff(role)
	cacheKey := s.listCacheKey(filter, includeExpected)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.ExerciseListResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				s.logger.Debug().Str("key", cacheKey).Msg("exercise list cache hit")
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read exercise list cache")
		}
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = defaultExercisePageSize
	}

	query := repository.ExerciseQuery{
		Language:   filter.Language,
		Difficulty: filter.Difficulty,
		Channel:    filter.Channel,
		Tags:       filter.Tags,
		Search:     filter.Search,
		Offset:     (page - 1) * pageSize,
		Limit:      pageSize,
	}

	exercises, total, err := s.repo.List(ctx, query)
	if err != nil {
		return dto.ExerciseListResponse{}, err
	}

	pagination := dto.Pagination{Page: page, PageSize: pageSize, TotalItems: int(total)}
	response := dto.NewExerciseListResponse(exercises, pagination, includeExpected)

	if s.cache != nil {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store exercise list cache")
			}
		}
	}

	return response, nil
}

func (s *exerciseService) Get(ctx context.Context, id uint, role string) (dto.ExerciseResponse, error) {
	exercise, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExerciseResponse{}, ErrExerciseNotFound
		}
		return dto.ExerciseResponse{}, err
	}

	return dto.NewExerciseResponse(exercise, isStaff(role)), nil
}

func (s *exerciseService) Create(ctx context.Context, payload dto.ExerciseRequest, role string) (dto.ExerciseResponse, error) {
	if !isStaff(role) {
		return dto.ExerciseResponse{}, ErrExerciseForbidden
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.ExerciseResponse{}, err
	}

	if _, err := s.repo.GetBySlug(ctx, payload.Slug); err == nil {
		return dto.ExerciseResponse{}, ErrSlugTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.ExerciseResponse{}, err
	}

	exercise := exerciseFromRequest(payload)
	if err := s.repo.Create(ctx, &exercise); err != nil {
		return dto.ExerciseResponse{}, err
	}

	s.invalidateListCache(ctx)
	return dto.NewExerciseResponse(exercise, true), nil
}

func (s *exerciseService) Update(ctx context.Context, id uint, payload dto.ExerciseRequest, role string) (dto.ExerciseResponse, error) {
	if !isStaff(role) {
		return dto.ExerciseResponse{}, ErrExerciseForbidden
	}
	if err := s.validator.Struct(payload); err != nil {
		return dto.ExerciseResponse{}, err
	}

	exercise, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExerciseResponse{}, ErrExerciseNotFound
		}
		return dto.ExerciseResponse{}, err
	}

	if payload.Slug != exercise.Slug {
		if existing, err := s.repo.GetBySlug(ctx, payload.Slug); err == nil && existing.ID != exercise.ID {
			return dto.ExerciseResponse{}, ErrSlugTaken
		} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExerciseResponse{}, err
		}
	}

	updated := exerciseFromRequest(payload)
	updated.ID = exercise.ID
	updated.CreatedAt = exercise.CreatedAt

	if err := s.repo.Update(ctx, &updated); err != nil {
		return dto.ExerciseResponse{}, err
	}

	s.invalidateListCache(ctx)
	return dto.NewExerciseResponse(updated, true), nil
}

func (s *exerciseService) Delete(ctx context.Context, id uint, role string) error {
	if !isStaff(role) {
		return ErrExerciseForbidden
	}

	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrExerciseNotFound
		}
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.invalidateListCache(ctx)
	return nil
}

func (s *exerciseService) listCacheKey(filter dto.ExerciseFilter, includeExpected bool) string {
	return fmt.Sprintf("exercises:list:%s:%s:%s:%s:%s:%d:%d:%t",
		strings.ToLower(filter.Language),
		strings.ToLower(filter.Difficulty),
		filter.Channel,
		strings.ToLower(strings.Join(filter.Tags, ",")),
		strings.ToLower(filter.Search),
		filter.Page,
		filter.PageSize,
		includeExpected,
	)
}

func (s *exerciseService) invalidateListCache(ctx context.Context) {
	if s.cache == nil {
		return
	}

	iter := s.cache.Scan(ctx, 0, "exercises:list:*", 100).Iterator()
	for iter.Next(ctx) {
		if err := s.cache.Del(ctx, iter.Val()).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to invalidate exercise cache entry")
		}
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to scan exercise cache keys")
	}
}

func exerciseFromRequest(payload dto.ExerciseRequest) models.Exercise {
	return models.Exercise{
		Slug:             strings.TrimSpace(payload.Slug),
		Title:            strings.TrimSpace(payload.Title),
		Prompt:           payload.Prompt,
		StarterCode:      payload.StarterCode,
		Language:         strings.ToLower(strings.TrimSpace(payload.Language)),
		Difficulty:       strings.ToLower(strings.TrimSpace(payload.Difficulty)),
		Tags:             strings.Join(payload.Tags, ","),
		Channel:          payload.Channel,
		ExpectedOutput:   payload.ExpectedOutput,
		ExpectedExitCode: payload.ExpectedExitCode,
		IgnoreCase:       payload.IgnoreCase,
		IgnoreWhitespace: payload.IgnoreWhitespace,
		Note:             payload.Note,
	}
}

func isStaff(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	return role == models.RoleTeacher || role == models.RoleAdmin
}
