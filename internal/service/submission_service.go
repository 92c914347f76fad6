package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/evalia-edu/evalia-api/internal/dto"
	"github.com/evalia-edu/evalia-api/internal/evaluation"
	"github.com/evalia-edu/evalia-api/internal/models"
	"github.com/evalia-edu/evalia-api/internal/observability"
	"github.com/evalia-edu/evalia-api/internal/repository"
	"github.com/evalia-edu/evalia-api/pkg/ai"
	"github.com/evalia-edu/evalia-api/pkg/sandbox"
)

// ErrSubmissionNotFound indicates the submission cannot be located.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrSubmissionForbidden indicates the caller is not allowed to access the submission.
var ErrSubmissionForbidden = errors.New("forbidden")

// ErrUnsupportedLanguage indicates the requested language has no runner image.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// ErrReviewerUnavailable indicates no AI reviewer is configured.
var ErrReviewerUnavailable = errors.New("reviewer unavailable")

// ErrAnswerFileRequired indicates the multipart upload is missing its file part.
var ErrAnswerFileRequired = errors.New("answer file is required")

// ErrAnswerFileNotText indicates the uploaded answer is not a plain text file.
var ErrAnswerFileNotText = errors.New("answer file must be plain text")

// JudgeProvider marks evaluations produced by the deterministic judge.
const JudgeProvider = "judge"

const maxAnswerFileSize = 64 * 1024

// AttachmentUploader stores an answer attachment and returns its public URL.
type AttachmentUploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// JudgedEventPublisher broadcasts judge verdicts to interested consumers.
type JudgedEventPublisher interface {
	PublishJudged(ctx context.Context, event dto.JudgedEvent) error
}

// SubmissionService accepts student work, executes program submissions in the
// sandbox, judges the output and records the verdict.
type SubmissionService interface {
	Submit(ctx context.Context, studentID uint, payload dto.SubmissionRequest) (dto.SubmissionResponse, error)
	SubmitFile(ctx context.Context, studentID uint, exerciseID uint, file *multipart.FileHeader) (dto.SubmissionResponse, error)
	Get(ctx context.Context, id uint, viewerID uint, role string) (dto.SubmissionResponse, error)
	Review(ctx context.Context, id uint, reviewerID uint, role string) (dto.EvaluationResponse, error)
}

// SubmissionConfig carries execution limits for program submissions.
type SubmissionConfig struct {
	ExecutionTimeout time.Duration
	MemoryLimitMB    int64
	CPUShares        int64
	WorkspaceRoot    string
}

type languageRunner struct {
	Image    string
	FileName string
	Command  []string
}

// ProgressInvalidator drops cached progress reports after a verdict changes
// them. ProgressService satisfies it.
type ProgressInvalidator interface {
	InvalidateProgress(ctx context.Context, studentID uint)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	exercises   repository.ExerciseRepository
	executor    sandbox.Executor
	reviewer    ai.Reviewer
	uploader    AttachmentUploader
	publisher   JudgedEventPublisher
	progress    ProgressInvalidator
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	tracer      trace.Tracer
	logger      zerolog.Logger
	config      SubmissionConfig
	languages   map[string]languageRunner
}

// NewSubmissionService wires the judging pipeline. The executor, reviewer,
// uploader, publisher and progress may be nil when the corresponding feature
// is disabled.
func NewSubmissionService(
	submissionRepo repository.SubmissionRepository,
	exerciseRepo repository.ExerciseRepository,
	executor sandbox.Executor,
	reviewer ai.Reviewer,
	uploader AttachmentUploader,
	publisher JudgedEventPublisher,
	progress ProgressInvalidator,
	validate *validator.Validate,
	logger zerolog.Logger,
	cfg SubmissionConfig,
) SubmissionService {
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = os.TempDir()
	}
	if cfg.ExecutionTimeout <= 0 {
		cfg.ExecutionTimeout = 10 * time.Second
	}

	return &submissionService{
		submissions: submissionRepo,
		exercises:   exerciseRepo,
		executor:    executor,
		reviewer:    reviewer,
		uploader:    uploader,
		publisher:   publisher,
		progress:    progress,
		validator:   validate,
		sanitizer:   bluemonday.UGCPolicy(),
		tracer:      otel.Tracer("github.com/evalia-edu/evalia-api/internal/service/submission"),
		logger:      logger.With().Str("component", "submission_service").Logger(),
		config:      cfg,
		languages: map[string]languageRunner{
			"python": {
				Image:    "python:3.11-alpine",
				FileName: "main.py",
				Command:  []string{"python", "main.py"},
			},
			"javascript": {
				Image:    "node:20-alpine",
				FileName: "main.js",
				Command:  []string{"node", "main.js"},
			},
			"go": {
				Image:    "golang:1.22-alpine",
				FileName: "main.go",
				Command:  []string{"sh", "-c", "go run main.go"},
			},
		},
	}
}

func (s *submissionService) Submit(ctx context.Context, studentID uint, payload dto.SubmissionRequest) (dto.SubmissionResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.submit", trace.WithAttributes(
		attribute.Int64("submission.exercise_id", int64(payload.ExerciseID)),
		attribute.String("submission.kind", payload.Kind),
	))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, err
	}

	exercise, err := s.exercises.GetByID(ctx, payload.ExerciseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrExerciseNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	submission := models.Submission{
		ExerciseID: exercise.ID,
		StudentID:  studentID,
		Kind:       payload.Kind,
		Source:     payload.Source,
	}

	if payload.Kind == models.SubmissionKindProgram {
		if err := s.runProgram(ctx, &submission, exercise, payload); err != nil {
			span.RecordError(err)
			return dto.SubmissionResponse{}, err
		}
	} else {
		// Answer submissions are judged on the submitted text itself.
		submission.Status = models.SubmissionStatusCompleted
		submission.Output = payload.Source
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}

	if err := s.judge(ctx, &submission, exercise); err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submission.ID).Msg("judging failed")
		span.RecordError(err)
	}

	span.SetAttributes(attribute.String("submission.status", submission.Status))
	submission.Exercise = exercise
	return dto.NewSubmissionResponse(submission, true), nil
}

func (s *submissionService) SubmitFile(ctx context.Context, studentID uint, exerciseID uint, file *multipart.FileHeader) (dto.SubmissionResponse, error) {
	if file == nil {
		return dto.SubmissionResponse{}, ErrAnswerFileRequired
	}

	exercise, err := s.exercises.GetByID(ctx, exerciseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrExerciseNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	answer, attachmentURL, err := s.readAnswerFile(ctx, file)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	submission := models.Submission{
		ExerciseID:    exercise.ID,
		StudentID:     studentID,
		Kind:          models.SubmissionKindAnswer,
		Source:        answer,
		Output:        answer,
		AttachmentURL: attachmentURL,
		Status:        models.SubmissionStatusCompleted,
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		return dto.SubmissionResponse{}, err
	}

	if err := s.judge(ctx, &submission, exercise); err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submission.ID).Msg("judging failed")
	}

	submission.Exercise = exercise
	return dto.NewSubmissionResponse(submission, true), nil
}

func (s *submissionService) Get(ctx context.Context, id uint, viewerID uint, role string) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	includeSource := s.canViewSource(viewerID, role, submission)
	return dto.NewSubmissionResponse(submission, includeSource), nil
}

func (s *submissionService) Review(ctx context.Context, id uint, reviewerID uint, role string) (dto.EvaluationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "submission.review", trace.WithAttributes(
		attribute.Int64("submission.id", int64(id)),
	))
	defer span.End()

	if !isStaff(role) {
		return dto.EvaluationResponse{}, ErrSubmissionForbidden
	}
	if s.reviewer == nil {
		return dto.EvaluationResponse{}, ErrReviewerUnavailable
	}

	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationResponse{}, ErrSubmissionNotFound
		}
		return dto.EvaluationResponse{}, err
	}

	verdict, expected, actual := latestJudgeVerdict(submission)
	observability.ReviewsRequested.WithLabelValues(s.reviewer.Name()).Inc()

	review, err := s.reviewer.Review(ctx, ai.ReviewInput{
		ExerciseTitle:    submission.Exercise.Title,
		Prompt:           submission.Exercise.Prompt,
		StarterCode:      submission.Exercise.StarterCode,
		Language:         submission.Language,
		SubmissionSource: submission.Source,
		SubmissionOutput: submission.Output,
		ReadableExpected: expected,
		ReadableActual:   actual,
		Verdict:          verdict,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "review_failed")
		return dto.EvaluationResponse{}, err
	}

	messages := []evaluation.Message{}
	if review.Feedback != "" {
		messages = append(messages, evaluation.NewMessage(s.sanitizer.Sanitize(review.Feedback), "", ""))
	}
	payload, err := json.Marshal(messages)
	if err != nil {
		return dto.EvaluationResponse{}, fmt.Errorf("marshal review messages: %w", err)
	}

	score := review.Score
	record := models.Evaluation{
		SubmissionID:     submission.ID,
		Passed:           strings.EqualFold(review.Verdict, "pass"),
		Status:           review.Verdict,
		ReadableExpected: expected,
		ReadableActual:   actual,
		Messages:         datatypes.JSON(payload),
		Score:            &score,
		Feedback:         review.Feedback,
		Provider:         s.reviewer.Name(),
	}

	if err := s.submissions.SaveEvaluation(ctx, &record); err != nil {
		return dto.EvaluationResponse{}, err
	}

	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("reviewer_id", reviewerID).
		Float64("score", score).
		Msg("ai review stored")

	return dto.NewEvaluationResponse(record), nil
}

func (s *submissionService) runProgram(ctx context.Context, submission *models.Submission, exercise models.Exercise, payload dto.SubmissionRequest) error {
	language := strings.ToLower(strings.TrimSpace(payload.Language))
	if language == "" {
		language = exercise.Language
	}
	runner, ok := s.languages[language]
	if !ok {
		return ErrUnsupportedLanguage
	}
	submission.Language = language

	workspace, err := os.MkdirTemp(s.config.WorkspaceRoot, "submission-")
	if err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	defer os.RemoveAll(workspace)

	if err := os.WriteFile(filepath.Join(workspace, runner.FileName), []byte(payload.Source), 0600); err != nil {
		return fmt.Errorf("write source: %w", err)
	}

	result, execErr := s.executor.Run(ctx, sandbox.RunRequest{
		Image:         runner.Image,
		Cmd:           runner.Command,
		Timeout:       s.config.ExecutionTimeout,
		Workspace:     workspace,
		WorkingDir:    "/workspace",
		MemoryLimitMB: s.config.MemoryLimitMB,
		CPUShares:     s.config.CPUShares,
	})

	submission.Output = result.Stdout
	submission.Error = combineErrors(result.Stderr, execErr)
	submission.ExitCode = result.ExitCode
	submission.CPUTimeMs = result.Duration.Milliseconds()
	submission.MemoryKB = result.MemoryUsageBytes / 1024

	switch {
	case result.TimedOut:
		submission.Status = models.SubmissionStatusTimeout
	case execErr != nil:
		submission.Status = models.SubmissionStatusFailed
	default:
		submission.Status = models.SubmissionStatusCompleted
	}

	return nil
}

// judge runs the exercise comparator over the captured output, persists the
// verdict and publishes the judged event.
func (s *submissionService) judge(ctx context.Context, submission *models.Submission, exercise models.Exercise) error {
	result := judgeChannel(exercise, submission)

	status := result.Status()
	switch submission.Status {
	case models.SubmissionStatusTimeout:
		status = evaluation.StatusTimeLimit
	case models.SubmissionStatusFailed:
		if exercise.Channel != models.ExerciseChannelExitCode {
			status = evaluation.StatusRuntimeError
		}
	}

	record, err := s.evaluationRecord(submission.ID, result, status)
	if err != nil {
		return err
	}

	if err := s.submissions.SaveEvaluation(ctx, &record); err != nil {
		return err
	}

	if submission.Status == models.SubmissionStatusCompleted {
		submission.Status = models.SubmissionStatusJudged
	}
	submission.Evaluations = append(submission.Evaluations, record)
	if err := s.submissions.Update(ctx, submission); err != nil {
		s.logger.Error().Err(err).Uint("submission_id", submission.ID).Msg("failed to mark submission judged")
	}

	observability.SubmissionsJudged.WithLabelValues(string(status)).Inc()

	if s.publisher != nil {
		event := dto.JudgedEvent{
			SubmissionID: submission.ID,
			ExerciseID:   exercise.ID,
			StudentID:    submission.StudentID,
			Passed:       result.Passed,
			Status:       string(status),
			OccurredAt:   time.Now().UTC(),
		}
		if err := s.publisher.PublishJudged(ctx, event); err != nil {
			s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to publish judged event")
		}
	}

	if s.progress != nil {
		s.progress.InvalidateProgress(ctx, submission.StudentID)
	}

	return nil
}

func (s *submissionService) evaluationRecord(submissionID uint, result evaluation.Result, status evaluation.Status) (models.Evaluation, error) {
	messages := make([]evaluation.Message, 0, len(result.Messages))
	for _, msg := range result.Messages {
		if msg.Format == evaluation.FormatHTML {
			msg.Description = s.sanitizer.Sanitize(msg.Description)
		}
		messages = append(messages, msg)
	}

	payload, err := json.Marshal(messages)
	if err != nil {
		return models.Evaluation{}, fmt.Errorf("marshal messages: %w", err)
	}

	return models.Evaluation{
		SubmissionID:     submissionID,
		Passed:           result.Passed,
		Status:           string(status),
		ReadableExpected: result.ReadableExpected,
		ReadableActual:   result.ReadableActual,
		Messages:         datatypes.JSON(payload),
		Provider:         JudgeProvider,
	}, nil
}

// judgeChannel selects the comparator matching the exercise channel. Program
// submissions that crashed or timed out short-circuit to a failure verdict on
// the text and nothing channels.
func judgeChannel(exercise models.Exercise, submission *models.Submission) evaluation.Result {
	switch {
	case submission.Status == models.SubmissionStatusTimeout:
		return evaluation.Result{
			Passed:           false,
			ReadableExpected: exercise.ExpectedOutput,
			ReadableActual:   submission.Output,
			Messages:         []evaluation.Message{evaluation.NewMessage("Time limit exceeded.", "", "")},
		}
	case exercise.Channel == models.ExerciseChannelExitCode:
		return evaluation.EvaluateExitCode(evaluation.ExitCodeChannel{
			Expected: exercise.ExpectedExitCode,
			Note:     exercise.Note,
		}, submission.ExitCode)
	case exercise.Channel == models.ExerciseChannelNothing:
		result := evaluation.EvaluateNothing(submission.Output)
		if exercise.Note != "" {
			result = result.WithMessage(evaluation.NewMessage(exercise.Note, "", ""))
		}
		return result
	case exercise.Channel == models.ExerciseChannelIgnored:
		return evaluation.EvaluateIgnored(submission.Output)
	default:
		return evaluation.EvaluateText(evaluation.TextChannel{
			Expected: exercise.ExpectedOutput,
			Options: evaluation.TextOptions{
				IgnoreCase:       exercise.IgnoreCase,
				IgnoreWhitespace: exercise.IgnoreWhitespace,
			},
			Note: exercise.Note,
		}, submission.Output)
	}
}

func (s *submissionService) readAnswerFile(ctx context.Context, file *multipart.FileHeader) (string, string, error) {
	if file.Size > maxAnswerFileSize {
		return "", "", ErrAnswerFileNotText
	}

	src, err := file.Open()
	if err != nil {
		return "", "", fmt.Errorf("open answer file: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxAnswerFileSize+1))
	if err != nil {
		return "", "", fmt.Errorf("read answer file: %w", err)
	}
	if len(data) > maxAnswerFileSize {
		return "", "", ErrAnswerFileNotText
	}

	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "text/") {
		return "", "", ErrAnswerFileNotText
	}

	attachmentURL := ""
	if s.uploader != nil {
		url, err := s.uploader.Upload(ctx, file.Filename, bytes.NewReader(data))
		if err != nil {
			s.logger.Warn().Err(err).Str("file", file.Filename).Msg("attachment upload failed")
		} else {
			attachmentURL = url
		}
	}

	// The judged answer is the file content with the trailing newline kept,
	// matching what a program would have printed.
	return string(data), attachmentURL, nil
}

func latestJudgeVerdict(submission models.Submission) (verdict, expected, actual string) {
	for i := len(submission.Evaluations) - 1; i >= 0; i-- {
		if submission.Evaluations[i].Provider == JudgeProvider {
			eval := submission.Evaluations[i]
			return eval.Status, eval.ReadableExpected, eval.ReadableActual
		}
	}
	return "unknown", "", submission.Output
}

func (s *submissionService) canViewSource(viewerID uint, role string, submission models.Submission) bool {
	if viewerID != 0 && viewerID == submission.StudentID {
		return true
	}
	return isStaff(role)
}

func combineErrors(stderr string, execErr error) string {
	if execErr == nil {
		return strings.TrimSpace(stderr)
	}
	if stderr == "" {
		return execErr.Error()
	}
	return strings.TrimSpace(stderr) + "\n" + execErr.Error()
}
