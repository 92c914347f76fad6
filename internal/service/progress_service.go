package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/evalia-edu/evalia-api/internal/dto"
	"github.com/evalia-edu/evalia-api/internal/models"
	"github.com/evalia-edu/evalia-api/internal/repository"
)

const recentActivityLimit = 5

// ProgressService produces aggregated per-student progress reports.
type ProgressService interface {
	GetProgress(ctx context.Context, studentID uint) (dto.StudentProgressResponse, error)
	InvalidateProgress(ctx context.Context, studentID uint)
}

type progressService struct {
	exercises   repository.ExerciseRepository
	submissions repository.SubmissionRepository
	students    repository.StudentRepository
	cache       *redis.Client
	cacheTTL    time.Duration
	logger      zerolog.Logger
	now         func() time.Time
}

// NewProgressService builds the progress aggregator. students may be nil when
// no identity store is attached; reports then carry only the student ID.
func NewProgressService(exercises repository.ExerciseRepository, submissions repository.SubmissionRepository, students repository.StudentRepository, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) ProgressService {
	return &progressService{
		exercises:   exercises,
		submissions: submissions,
		students:    students,
		cache:       cache,
		cacheTTL:    ttl,
		logger:      logger.With().Str("component", "progress_service").Logger(),
		now:         time.Now,
	}
}

func (s *progressService) GetProgress(ctx context.Context, studentID uint) (dto.StudentProgressResponse, error) {
	cacheKey := progressCacheKey(studentID)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.StudentProgressResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				s.logger.Debug().Uint("student_id", studentID).Msg("progress cache hit")
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read progress cache")
		}
	}

	_, total, err := s.exercises.List(ctx, repository.ExerciseQuery{Limit: 1})
	if err != nil {
		return dto.StudentProgressResponse{}, err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{StudentID: &studentID})
	if err != nil {
		return dto.StudentProgressResponse{}, err
	}

	response := s.buildResponse(int(total), submissions)
	response.Student = s.studentIdentity(ctx, studentID)

	if s.cache != nil {
		if payload, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store progress cache")
			}
		}
	}

	return response, nil
}

// InvalidateProgress drops the cached report so the next read reflects a new
// verdict.
func (s *progressService) InvalidateProgress(ctx context.Context, studentID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, progressCacheKey(studentID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to invalidate progress cache")
	}
}

// studentIdentity resolves the display identity for a report. A missing
// student record is not an error; the report still carries the ID.
func (s *progressService) studentIdentity(ctx context.Context, studentID uint) dto.StudentIdentity {
	identity := dto.StudentIdentity{ID: studentID}
	if s.students == nil {
		return identity
	}

	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		s.logger.Debug().Err(err).Uint("student_id", studentID).Msg("student record not found for progress report")
		return identity
	}

	identity.Name = student.Name
	identity.Role = student.Role
	return identity
}

func (s *progressService) buildResponse(totalExercises int, submissions []models.Submission) dto.StudentProgressResponse {
	attempted := map[uint]struct{}{}
	solved := map[uint]struct{}{}

	for _, submission := range submissions {
		attempted[submission.ExerciseID] = struct{}{}
		for _, eval := range submission.Evaluations {
			if eval.Provider == JudgeProvider && eval.Passed {
				solved[submission.ExerciseID] = struct{}{}
				break
			}
		}
	}

	summary := dto.ProgressSummary{
		TotalExercises: totalExercises,
		Attempted:      len(attempted),
		Solved:         len(solved),
	}
	if len(attempted) > 0 {
		summary.PassRate = (float64(len(solved)) / float64(len(attempted))) * 100
	}

	recent := make([]dto.SubmissionActivity, 0, recentActivityLimit)
	for idx, submission := range submissions {
		if idx >= recentActivityLimit {
			break
		}
		activity := dto.SubmissionActivity{
			SubmissionID: submission.ID,
			ExerciseID:   submission.ExerciseID,
			ExerciseName: submission.Exercise.Title,
			Status:       submission.Status,
			SubmittedAt:  submission.CreatedAt,
		}
		for _, eval := range submission.Evaluations {
			if eval.Provider == JudgeProvider {
				passed := eval.Passed
				activity.Passed = &passed
				break
			}
		}
		recent = append(recent, activity)
	}

	return dto.StudentProgressResponse{
		Summary:     summary,
		Recent:      recent,
		GeneratedAt: s.now().UTC(),
	}
}

func progressCacheKey(studentID uint) string {
	return fmt.Sprintf("progress:student:%d", studentID)
}
