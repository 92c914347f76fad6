package models

import (
	"strings"
	"time"
)

// Exercise channel kinds determine which built-in comparator judges a
// submission's output.
const (
	ExerciseChannelText     = "text"
	ExerciseChannelNothing  = "nothing"
	ExerciseChannelIgnored  = "ignored"
	ExerciseChannelExitCode = "exitcode"
)

// Exercise represents a gradable exercise in the catalog.
type Exercise struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Slug             string    `gorm:"size:128;uniqueIndex;not null" json:"slug"`
	Title            string    `gorm:"size:255;not null" json:"title"`
	Prompt           string    `gorm:"type:text;not null" json:"prompt"`
	StarterCode      string    `gorm:"type:text" json:"starter_code"`
	Language         string    `gorm:"size:32" json:"language"`
	Difficulty       string    `gorm:"size:32" json:"difficulty"`
	Tags             string    `gorm:"type:text" json:"tags"`
	Channel          string    `gorm:"size:32;not null;default:text" json:"channel"`
	ExpectedOutput   string    `gorm:"type:text" json:"expected_output"`
	ExpectedExitCode int       `gorm:"default:0" json:"expected_exit_code"`
	IgnoreCase       bool      `gorm:"default:false" json:"ignore_case"`
	IgnoreWhitespace bool      `gorm:"default:false" json:"ignore_whitespace"`
	Note             string    `gorm:"size:512" json:"note"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TagsSlice returns the tags as a slice of strings.
func (e Exercise) TagsSlice() []string {
	if e.Tags == "" {
		return nil
	}

	parts := strings.Split(e.Tags, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}

// RequiresExecution reports whether submissions against this exercise carry
// program source that must run in the sandbox before judging.
func (e Exercise) RequiresExecution() bool {
	return e.Language != ""
}
