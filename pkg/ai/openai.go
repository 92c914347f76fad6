package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	reviewDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "evalia",
		Subsystem: "ai",
		Name:      "review_duration_seconds",
		Help:      "Duration of AI review requests",
	}, []string{"model"})

	reviewFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "evalia",
		Subsystem: "ai",
		Name:      "review_failures_total",
		Help:      "Number of AI review failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI reviewer.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIReviewer implements Reviewer against the OpenAI chat completion API.
type OpenAIReviewer struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIReviewer builds a new reviewer using the provided configuration.
func NewOpenAIReviewer(cfg OpenAIConfig) (*OpenAIReviewer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 512
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	client := openai.NewClientWithConfig(openai.DefaultConfig(cfg.APIKey))

	return &OpenAIReviewer{
		client: client,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/evalia-edu/evalia-api/pkg/ai/openai"),
		logger: logger,
	}, nil
}

// Name identifies the provider on stored evaluations.
func (r *OpenAIReviewer) Name() string { return "openai" }

// Review sends the review request to OpenAI and parses the response.
func (r *OpenAIReviewer) Review(parent context.Context, input ReviewInput) (Review, error) {
	ctx, span := r.tracer.Start(parent, "openai.review", trace.WithAttributes(
		attribute.String("model", r.cfg.Model),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       r.cfg.Model,
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: reviewerSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildReviewPrompt(input),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := r.client.CreateChatCompletion(ctx, request)
	duration := time.Since(start)
	reviewDuration.WithLabelValues(r.cfg.Model).Observe(duration.Seconds())
	if err != nil {
		reviewFailures.WithLabelValues(r.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Review{}, fmt.Errorf("openai review: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned from openai")
		reviewFailures.WithLabelValues(r.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Review{}, err
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	review, err := parseReviewResponse(content)
	if err != nil {
		reviewFailures.WithLabelValues(r.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Review{}, err
	}

	review.Raw = map[string]interface{}{
		"usage": resp.Usage,
	}

	return review, nil
}

func reviewerSystemPrompt() string {
	return "You are a programming tutor reviewing a submission that has already been judged automatically. Respond with a JSO" +
		"N object containing score (0-1), verdict, feedback aimed at the student, and an optional details object breaking down " +
		"the score. Explain why the output differed from the expected output when the verdict is wrong."
}

func buildReviewPrompt(input ReviewInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Exercise\n")
	builder.WriteString(input.ExerciseTitle)
	builder.WriteString("\n\n## Prompt\n")
	builder.WriteString(input.Prompt)
	builder.WriteString("\n\n## Starter Code\n")
	builder.WriteString(input.StarterCode)
	builder.WriteString("\n\n## Language\n")
	builder.WriteString(input.Language)
	builder.WriteString("\n\n## Submission\n")
	builder.WriteString(input.SubmissionSource)
	builder.WriteString("\n\n## Program Output\n")
	builder.WriteString(input.SubmissionOutput)
	builder.WriteString("\n\n## Expected\n")
	builder.WriteString(input.ReadableExpected)
	builder.WriteString("\n\n## Actual\n")
	builder.WriteString(input.ReadableActual)
	builder.WriteString("\n\n## Judge Verdict\n")
	builder.WriteString(input.Verdict)
	if input.AdditionalNotes != "" {
		builder.WriteString("\n\n## Notes\n")
		builder.WriteString(input.AdditionalNotes)
	}
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func parseReviewResponse(content string) (Review, error) {
	type payload struct {
		Score    float64                `json:"score"`
		Feedback string                 `json:"feedback"`
		Verdict  string                 `json:"verdict"`
		Details  map[string]interface{} `json:"details"`
	}

	var data payload
	if err := json.Unmarshal([]byte(content), &data); err != nil {
		return Review{}, fmt.Errorf("parse review json: %w", err)
	}

	if data.Score < 0 {
		data.Score = 0
	}
	if data.Score > 1 {
		data.Score = 1
	}

	return Review{
		Score:    data.Score,
		Feedback: data.Feedback,
		Verdict:  data.Verdict,
		Details:  data.Details,
	}, nil
}
