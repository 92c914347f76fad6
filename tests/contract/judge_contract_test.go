package contract_test

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/evalia-edu/evalia-api/internal/dto"
	"github.com/evalia-edu/evalia-api/internal/evaluation"
	"github.com/evalia-edu/evalia-api/internal/handler"
)

type stubSubmissionService struct {
	response dto.SubmissionResponse
}

func (s stubSubmissionService) Submit(context.Context, uint, dto.SubmissionRequest) (dto.SubmissionResponse, error) {
	return s.response, nil
}

func (s stubSubmissionService) SubmitFile(context.Context, uint, uint, *multipart.FileHeader) (dto.SubmissionResponse, error) {
	return s.response, nil
}

func (s stubSubmissionService) Get(context.Context, uint, uint, string) (dto.SubmissionResponse, error) {
	return s.response, nil
}

func (s stubSubmissionService) Review(context.Context, uint, uint, string) (dto.EvaluationResponse, error) {
	return dto.EvaluationResponse{}, nil
}

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()

	schemaPath, err := filepath.Abs(filepath.Join("..", "contracts", name))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)

	return schema
}

func TestSubmissionJudgedContract(t *testing.T) {
	schema := compileSchema(t, "submission_judged.schema.json")

	verdict := dto.SubmissionResponse{
		ID:         12,
		ExerciseID: 1,
		StudentID:  7,
		Kind:       "answer",
		Source:     "correct",
		Status:     "judged",
		Output:     "correct",
		Exercise: dto.ExerciseResponse{
			ID:      1,
			Slug:    "echo-function",
			Title:   "Echo Function",
			Channel: "text",
		},
		Evaluations: []dto.EvaluationResponse{
			{
				ID:               3,
				Passed:           true,
				Status:           "correct",
				ReadableExpected: "correct",
				ReadableActual:   "correct",
				Messages:         []evaluation.Message{evaluation.NewMessage("Hallo", "", "")},
				Provider:         "judge",
			},
		},
	}

	submissionHandler := handler.NewSubmissionHandler(
		stubSubmissionService{response: verdict},
		validator.New(validator.WithRequiredStructEnabled()),
		zerolog.Nop(),
	)

	app := fiber.New()
	group := app.Group("/api/v2/submissions", func(c *fiber.Ctx) error {
		c.Locals("user_id", uint(7))
		c.Locals("user_role", "student")
		return c.Next()
	})
	submissionHandler.Register(group)

	payload := `{"exercise_id":1,"kind":"answer","source":"correct"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v2/submissions", strings.NewReader(payload))
	req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	require.NoError(t, schema.Validate(decoded))
}

func TestJudgedEventContract(t *testing.T) {
	schema := compileSchema(t, "judged_event.schema.json")

	event := dto.JudgedEvent{
		EventID:      "b1946ac9-2ea9-4e9f-9d5c-5f8f3a2c1e10",
		SubmissionID: 12,
		ExerciseID:   1,
		StudentID:    7,
		Passed:       true,
		Status:       "correct",
		OccurredAt:   time.Now().UTC(),
	}

	raw, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.NoError(t, schema.Validate(decoded))
}
