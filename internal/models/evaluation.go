package models

import (
	"time"

	"gorm.io/datatypes"
)

// Evaluation captures one judged outcome for a submission: the verdict, the
// expected/actual strings shown to the student, and the feedback messages.
type Evaluation struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	SubmissionID     uint           `gorm:"not null;index" json:"submission_id"`
	Passed           bool           `gorm:"not null" json:"passed"`
	Status           string         `gorm:"size:32;not null" json:"status"`
	ReadableExpected string         `gorm:"type:text" json:"readable_expected"`
	ReadableActual   string         `gorm:"type:text" json:"readable_actual"`
	Messages         datatypes.JSON `json:"messages"`
	Score            *float64       `json:"score"`
	Feedback         string         `gorm:"type:text" json:"feedback"`
	Provider         string         `gorm:"size:32;not null;default:judge" json:"provider"`
	CreatedAt        time.Time      `json:"created_at"`
	Submission       Submission     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"submission"`
}
