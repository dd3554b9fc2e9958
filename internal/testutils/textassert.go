package testutils

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/mcuadros/go-defaults"
)

// TestingT is the part of testing.T the asserters report through
type TestingT interface {
	Helper()
	Errorf(format string, args ...interface{})
}

// TextAssertOptions controls how CLI output is normalized before comparison.
type TextAssertOptions struct {
	TrimSpace                bool `default:"true"`
	IgnoreTrailingWhitespace bool `default:"true"`
	IgnoreEmptyLines         bool `default:"false"`
	EnableColors             bool `default:"false"`
}

// TextOption is a functional option for configuring TextAsserter
type TextOption func(*TextAssertOptions)

// TextAsserter compares command output with an expected text and reports a unified diff.
//
//	testutils.NewTextAsserter(t).Assert(out, `
//	    ID     BACKEND
//	*   fake0  bluez
//	`)
type TextAsserter struct {
	t       TestingT
	options TextAssertOptions
}

// NewTextAsserter creates a TextAsserter with default options
func NewTextAsserter(t TestingT, opts ...TextOption) *TextAsserter {
	ta := &TextAsserter{t: t}
	defaults.SetDefaults(&ta.options)
	for _, opt := range opts {
		opt(&ta.options)
	}
	return ta
}

// Assert reports a diff when actual differs from expected after normalization.
func (ta *TextAsserter) Assert(actual, expected string) bool {
	ta.t.Helper()

	if diff := ta.Diff(actual, expected); diff != "" {
		ta.t.Errorf("Text assertion failed - unified diff:\n%s", diff)
		return false
	}
	return true
}

// Diff returns the unified diff between expected and actual, or "" when they match.
func (ta *TextAsserter) Diff(actual, expected string) string {
	want := ta.normalize(expected)
	got := ta.normalize(actual)
	if want == got {
		return ""
	}

	edits := myers.ComputeEdits("", want, got)
	return ta.colorize(fmt.Sprint(gotextdiff.ToUnified("expected", "actual", want, edits)))
}

func (ta *TextAsserter) normalize(text string) string {
	if ta.options.TrimSpace {
		text = strings.TrimSpace(text)
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if ta.options.IgnoreTrailingWhitespace {
			line = strings.TrimRight(line, " \t")
		}
		if ta.options.IgnoreEmptyLines && strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n") + "\n"
}

func (ta *TextAsserter) colorize(diff string) string {
	if !ta.options.EnableColors {
		return diff
	}

	paint := func(attr color.Attribute, s string) string {
		c := color.New(attr)
		c.EnableColor()
		return c.Sprint(s)
	}

	lines := strings.Split(diff, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
			lines[i] = paint(color.FgYellow, line)
		case strings.HasPrefix(line, "@@"):
			lines[i] = paint(color.FgCyan, line)
		case strings.HasPrefix(line, "-"):
			lines[i] = paint(color.FgRed, visibleWhitespace(line))
		case strings.HasPrefix(line, "+"):
			lines[i] = paint(color.FgGreen, visibleWhitespace(line))
		}
	}
	return strings.Join(lines, "\n")
}

// visibleWhitespace renders spaces as · and tabs as →
func visibleWhitespace(line string) string {
	return strings.NewReplacer(" ", "·", "\t", "→").Replace(line)
}

// WithTrimSpace sets whether to trim the whole text before comparing
func WithTrimSpace(trim bool) TextOption {
	return func(o *TextAssertOptions) { o.TrimSpace = trim }
}

// WithIgnoreTrailingWhitespace sets whether trailing blanks of each line are ignored
func WithIgnoreTrailingWhitespace(ignore bool) TextOption {
	return func(o *TextAssertOptions) { o.IgnoreTrailingWhitespace = ignore }
}

// WithIgnoreEmptyLines sets whether blank lines are ignored
func WithIgnoreEmptyLines(ignore bool) TextOption {
	return func(o *TextAssertOptions) { o.IgnoreEmptyLines = ignore }
}

// WithEnableColors sets whether the diff is colored
func WithEnableColors(enable bool) TextOption {
	return func(o *TextAssertOptions) { o.EnableColors = enable }
}
