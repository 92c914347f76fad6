package dto

import "time"

// ProgressSummary aggregates a student's results across the catalog.
type ProgressSummary struct {
	TotalExercises int     `json:"total_exercises"`
	Attempted      int     `json:"attempted"`
	Solved         int     `json:"solved"`
	PassRate       float64 `json:"pass_rate"`
}

// StudentIdentity names the student a progress report belongs to.
type StudentIdentity struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// SubmissionActivity is one row in the recent activity feed.
type SubmissionActivity struct {
	SubmissionID uint      `json:"submission_id"`
	ExerciseID   uint      `json:"exercise_id"`
	ExerciseName string    `json:"exercise_name"`
	Status       string    `json:"status"`
	Passed       *bool     `json:"passed,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// StudentProgressResponse is the aggregated progress payload.
type StudentProgressResponse struct {
	Student     StudentIdentity      `json:"student"`
	Summary     ProgressSummary      `json:"summary"`
	Recent      []SubmissionActivity `json:"recent"`
	GeneratedAt time.Time            `json:"generated_at"`
	CacheHit    bool                 `json:"cache_hit"`
}

// JudgedEvent is broadcast whenever a submission receives a verdict.
type JudgedEvent struct {
	EventID      string    `json:"event_id"`
	SubmissionID uint      `json:"submission_id"`
	ExerciseID   uint      `json:"exercise_id"`
	StudentID    uint      `json:"student_id"`
	Passed       bool      `json:"passed"`
	Status       string    `json:"status"`
	OccurredAt   time.Time `json:"occurred_at"`
}
