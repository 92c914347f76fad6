package models

import "time"

// SubmissionStatus enumerates possible submission states.
const (
	SubmissionStatusPending   = "pending"
	SubmissionStatusCompleted = "completed"
	SubmissionStatusFailed    = "failed"
	SubmissionStatusTimeout   = "timeout"
	SubmissionStatusJudged    = "judged"
)

// Submission kinds.
const (
	SubmissionKindAnswer  = "answer"
	SubmissionKindProgram = "program"
)

// Submission represents a student's attempt at an exercise. Answer
// submissions carry the answer text directly; program submissions carry
// source code that runs in the sandbox first.
type Submission struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	ExerciseID    uint         `gorm:"not null;index" json:"exercise_id"`
	StudentID     uint         `gorm:"not null;index" json:"student_id"`
	Kind          string       `gorm:"size:16;not null" json:"kind"`
	Language      string       `gorm:"size:32" json:"language"`
	Source        string       `gorm:"type:text" json:"source"`
	AttachmentURL string       `gorm:"size:512" json:"attachment_url"`
	Status        string       `gorm:"size:32;not null" json:"status"`
	Output        string       `gorm:"type:text" json:"output"`
	Error         string       `gorm:"type:text" json:"error"`
	ExitCode      int          `gorm:"default:0" json:"exit_code"`
	CPUTimeMs     int64        `gorm:"default:0" json:"cpu_time_ms"`
	MemoryKB      int64        `gorm:"default:0" json:"memory_kb"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	Exercise      Exercise     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"exercise"`
	Evaluations   []Evaluation `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"evaluations"`
}

// HasBeenJudged reports whether the submission carries a judge verdict.
func (s Submission) HasBeenJudged() bool {
	return s.Status == SubmissionStatusJudged
}
