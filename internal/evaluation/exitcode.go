package evaluation

import "strconv"

// ExitCodeChannel describes a channel judged on the process exit code.
type ExitCodeChannel struct {
	Expected int
	Note     string
}

// EvaluateExitCode compares the observed exit code against the expected one.
func EvaluateExitCode(ch ExitCodeChannel, actual int) Result {
	result := Result{
		Passed:           ch.Expected == actual,
		ReadableExpected: strconv.Itoa(ch.Expected),
		ReadableActual:   strconv.Itoa(actual),
		Messages:         []Message{},
	}
	if ch.Note != "" {
		result = result.WithMessage(NewMessage(ch.Note, "", ""))
	}
	return result
}
