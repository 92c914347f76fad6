package evaluation

// Status describes the judged outcome of a submission channel.
type Status string

// Possible evaluation statuses.
const (
	StatusCorrect      Status = "correct"
	StatusWrong        Status = "wrong"
	StatusRuntimeError Status = "runtime error"
	StatusTimeLimit    Status = "time limit exceeded"
)

// MessageFormat values understood by result renderers.
const (
	FormatText = "text"
	FormatHTML = "html"
	FormatCode = "code"
)

// Message is a single piece of feedback attached to a result. Format defaults
// to "text"; Permission is optional and empty when absent.
type Message struct {
	Description string `json:"description"`
	Format      string `json:"format"`
	Permission  string `json:"permission,omitempty"`
}

// NewMessage builds a feedback message, defaulting the format to "text".
func NewMessage(description, format, permission string) Message {
	if format == "" {
		format = FormatText
	}
	return Message{
		Description: description,
		Format:      format,
		Permission:  permission,
	}
}

// Result is the outcome of judging one output channel. It is constructed fresh
// per evaluation, fully populated before being returned, and never mutated
// afterwards. ReadableActual is an owned copy of the submitted value.
type Result struct {
	Passed           bool      `json:"passed"`
	ReadableExpected string    `json:"readable_expected"`
	ReadableActual   string    `json:"readable_actual"`
	Messages         []Message `json:"messages"`
}

// Status maps the boolean verdict onto a judge status.
func (r Result) Status() Status {
	if r.Passed {
		return StatusCorrect
	}
	return StatusWrong
}

// WithMessage returns a copy of the result with an extra feedback message
// appended. The receiver is left untouched.
func (r Result) WithMessage(msg Message) Result {
	messages := make([]Message, 0, len(r.Messages)+1)
	messages = append(messages, r.Messages...)
	messages = append(messages, msg)
	r.Messages = messages
	return r
}
