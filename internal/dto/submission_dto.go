package dto

import (
	"encoding/json"

	"github.com/evalia-edu/evalia-api/internal/evaluation"
	"github.com/evalia-edu/evalia-api/internal/models"
)

// SubmissionRequest represents the payload for creating a submission. Answer
// submissions carry the answer text; program submissions carry source code.
type SubmissionRequest struct {
	ExerciseID uint   `json:"exercise_id" validate:"required,gt=0"`
	Kind       string `json:"kind" validate:"required,oneof=answer program"`
	Language   string `json:"language"`
	Source     string `json:"source" validate:"required,min=1"`
}

// SubmissionResponse represents a submission to API consumers.
type SubmissionResponse struct {
	ID            uint                 `json:"id"`
	ExerciseID    uint                 `json:"exercise_id"`
	StudentID     uint                 `json:"student_id"`
	Kind          string               `json:"kind"`
	Language      string               `json:"language,omitempty"`
	Source        string               `json:"source,omitempty"`
	AttachmentURL string               `json:"attachment_url,omitempty"`
	Status        string               `json:"status"`
	Output        string               `json:"output"`
	Error         string               `json:"error,omitempty"`
	ExitCode      int                  `json:"exit_code"`
	CPUTimeMs     int64                `json:"cpu_time_ms"`
	MemoryKB      int64                `json:"memory_kb"`
	Exercise      ExerciseResponse     `json:"exercise"`
	Evaluations   []EvaluationResponse `json:"evaluations"`
}

// EvaluationResponse describes one judged outcome for a submission.
type EvaluationResponse struct {
	ID               uint                 `json:"id"`
	Passed           bool                 `json:"passed"`
	Status           string               `json:"status"`
	ReadableExpected string               `json:"readable_expected"`
	ReadableActual   string               `json:"readable_actual"`
	Messages         []evaluation.Message `json:"messages"`
	Score            *float64             `json:"score,omitempty"`
	Feedback         string               `json:"feedback,omitempty"`
	Provider         string               `json:"provider"`
}

// NewSubmissionResponse builds a response DTO from a model.
func NewSubmissionResponse(submission models.Submission, includeSource bool) SubmissionResponse {
	response := SubmissionResponse{
		ID:            submission.ID,
		ExerciseID:    submission.ExerciseID,
		StudentID:     submission.StudentID,
		Kind:          submission.Kind,
		Language:      submission.Language,
		AttachmentURL: submission.AttachmentURL,
		Status:        submission.Status,
		Output:        submission.Output,
		Error:         submission.Error,
		ExitCode:      submission.ExitCode,
		CPUTimeMs:     submission.CPUTimeMs,
		MemoryKB:      submission.MemoryKB,
		Exercise:      NewExerciseResponse(submission.Exercise, false),
	}

	if includeSource {
		response.Source = submission.Source
	}

	if len(submission.Evaluations) > 0 {
		evals := make([]EvaluationResponse, 0, len(submission.Evaluations))
		for _, eval := range submission.Evaluations {
			evals = append(evals, NewEvaluationResponse(eval))
		}
		response.Evaluations = evals
	}

	return response
}

// NewEvaluationResponse converts an Evaluation model into a DTO.
func NewEvaluationResponse(eval models.Evaluation) EvaluationResponse {
	var messages []evaluation.Message
	if len(eval.Messages) > 0 {
		// Stored messages were marshalled by the judge; a decode failure
		// means a corrupted row and surfaces as an empty message list.
		_ = json.Unmarshal(eval.Messages, &messages)
	}
	if messages == nil {
		messages = []evaluation.Message{}
	}

	return EvaluationResponse{
		ID:               eval.ID,
		Passed:           eval.Passed,
		Status:           eval.Status,
		ReadableExpected: eval.ReadableExpected,
		ReadableActual:   eval.ReadableActual,
		Messages:         messages,
		Score:            eval.Score,
		Feedback:         eval.Feedback,
		Provider:         eval.Provider,
	}
}
