package ai

import "context"

// ReviewInput contains the artefacts needed to review a judged submission.
type ReviewInput struct {
	ExerciseTitle    string
	Prompt           string
	StarterCode      string
	Language         string
	SubmissionSource string
	SubmissionOutput string
	ReadableExpected string
	ReadableActual   string
	Verdict          string
	AdditionalNotes  string
}

// Review is the structured feedback returned by an AI reviewer.
type Review struct {
	Score    float64                `json:"score"`
	Feedback string                 `json:"feedback"`
	Verdict  string                 `json:"verdict"`
	Details  map[string]interface{} `json:"details,omitempty"`
	Raw      map[string]interface{} `json:"raw,omitempty"`
}

// Reviewer describes an AI model capable of reviewing judged submissions.
type Reviewer interface {
	// Name identifies the backing provider, e.g. "openai".
	Name() string
	Review(ctx context.Context, input ReviewInput) (Review, error)
}
