package evaluation

import (
	"strings"
	"unicode"
)

// TextOptions tune the built-in text comparison.
type TextOptions struct {
	IgnoreCase       bool `json:"ignore_case"`
	IgnoreWhitespace bool `json:"ignore_whitespace"`
}

// TextChannel describes an output channel whose expected value is plain text.
// Note, when set, is attached as a feedback message to every result.
type TextChannel struct {
	Expected string
	Options  TextOptions
	Note     string
}

// EvaluateText compares the actual output against the channel's expected text.
// With zero options the comparison is exact, case-sensitive and
// byte-for-byte. Any input string, including the empty string, produces a
// fully populated result; there is no failure path. The function reads only
// its arguments and is safe for concurrent use.
func EvaluateText(ch TextChannel, actual string) Result {
	expected := ch.Expected
	compareExpected := expected
	compareActual := actual

	if ch.Options.IgnoreWhitespace {
		compareExpected = stripWhitespace(compareExpected)
		compareActual = stripWhitespace(compareActual)
	}
	if ch.Options.IgnoreCase {
		compareExpected = strings.ToLower(compareExpected)
		compareActual = strings.ToLower(compareActual)
	}

	result := Result{
		Passed:           compareExpected == compareActual,
		ReadableExpected: expected,
		ReadableActual:   actual,
		Messages:         []Message{},
	}

	if ch.Note != "" {
		result = result.WithMessage(NewMessage(ch.Note, "", ""))
	}

	return result
}

// EvaluateNothing judges a channel that expects no output at all. Anything on
// the channel is wrong; emptiness is correct.
func EvaluateNothing(actual string) Result {
	result := Result{
		ReadableExpected: "",
		ReadableActual:   actual,
		Messages:         []Message{},
	}
	if actual == "" {
		result.Passed = true
		return result
	}
	return result.WithMessage(NewMessage("Expected no output on this channel.", "", ""))
}

// EvaluateIgnored accepts whatever was produced; the channel is not judged.
func EvaluateIgnored(actual string) Result {
	return Result{
		Passed:           true,
		ReadableExpected: "",
		ReadableActual:   actual,
		Messages:         []Message{},
	}
}

func stripWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
