package dto

import "github.com/evalia-edu/evalia-api/internal/models"

// ExerciseFilter defines query parameters for listing exercises.
type ExerciseFilter struct {
	Language   string   `query:"language"`
	Difficulty string   `query:"difficulty"`
	Channel    string   `query:"channel"`
	Tags       []string `query:"tags"`
	Search     string   `query:"search"`
	Page       int      `query:"page"`
	PageSize   int      `query:"page_size"`
}

// Pagination describes pagination metadata for list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
}

// ExerciseRequest is the payload for creating or updating an exercise.
type ExerciseRequest struct {
	Slug             string `json:"slug" validate:"required,min=1,max=128"`
	Title            string `json:"title" validate:"required,min=1,max=255"`
	Prompt           string `json:"prompt" validate:"required"`
	StarterCode      string `json:"starter_code"`
	Language         string `json:"language"`
	Difficulty       string `json:"difficulty"`
	Tags             []string `json:"tags"`
	Channel          string `json:"channel" validate:"required,oneof=text nothing ignored exitcode"`
	ExpectedOutput   string `json:"expected_output"`
	ExpectedExitCode int    `json:"expected_exit_code"`
	IgnoreCase       bool   `json:"ignore_case"`
	IgnoreWhitespace bool   `json:"ignore_whitespace"`
	Note             string `json:"note"`
}

// ExerciseResponse represents an exercise returned by the API.
type ExerciseResponse struct {
	ID               uint     `json:"id"`
	Slug             string   `json:"slug"`
	Title            string   `json:"title"`
	Prompt           string   `json:"prompt"`
	StarterCode      string   `json:"starter_code"`
	Language         string   `json:"language"`
	Difficulty       string   `json:"difficulty"`
	Tags             []string `json:"tags"`
	Channel          string   `json:"channel"`
	ExpectedOutput   string   `json:"expected_output,omitempty"`
	ExpectedExitCode int      `json:"expected_exit_code,omitempty"`
	IgnoreCase       bool     `json:"ignore_case"`
	IgnoreWhitespace bool     `json:"ignore_whitespace"`
	Note             string   `json:"note,omitempty"`
}

// ExerciseListResponse wraps exercises and pagination metadata.
type ExerciseListResponse struct {
	Items      []ExerciseResponse `json:"items"`
	Pagination Pagination         `json:"pagination"`
}

// NewExerciseResponse builds a response DTO from the model. When
// includeExpected is false the fields revealing the answer are hidden, so
// student-facing listings do not leak the expected output.
func NewExerciseResponse(exercise models.Exercise, includeExpected bool) ExerciseResponse {
	response := ExerciseResponse{
		ID:               exercise.ID,
		Slug:             exercise.Slug,
		Title:            exercise.Title,
		Prompt:           exercise.Prompt,
		StarterCode:      exercise.StarterCode,
		Language:         exercise.Language,
		Difficulty:       exercise.Difficulty,
		Tags:             exercise.TagsSlice(),
		Channel:          exercise.Channel,
		IgnoreCase:       exercise.IgnoreCase,
		IgnoreWhitespace: exercise.IgnoreWhitespace,
	}

	if includeExpected {
		response.ExpectedOutput = exercise.ExpectedOutput
		response.ExpectedExitCode = exercise.ExpectedExitCode
		response.Note = exercise.Note
	}

	return response
}

// NewExerciseListResponse builds a list response from models and pagination meta.
func NewExerciseListResponse(exercises []models.Exercise, pagination Pagination, includeExpected bool) ExerciseListResponse {
	items := make([]ExerciseResponse, 0, len(exercises))
	for _, exercise := range exercises {
		items = append(items, NewExerciseResponse(exercise, includeExpected))
	}

	return ExerciseListResponse{
		Items:      items,
		Pagination: pagination,
	}
}
