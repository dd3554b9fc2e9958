package testutils

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mcuadros/go-defaults"
	"github.com/yudai/gojsondiff"
	"github.com/yudai/gojsondiff/formatter"
)

// PresencePlaceholder in an expected document matches any actual value of that key.
const PresencePlaceholder = "<<PRESENCE>>"

// JSONAssertOptions controls how JSON documents are compared.
type JSONAssertOptions struct {
	IgnoreExtraKeys          bool     `default:"true"`
	AllowPresencePlaceholder bool     `default:"true"`
	IgnoredFields            []string `default:""`
}

// JSONOption is a functional option for configuring JSONAsserter
type JSONOption func(*JSONAssertOptions)

// JSONAsserter compares JSON documents structurally and reports a readable diff.
// It understands JSON-lines output, one document per line, as printed by --format json.
type JSONAsserter struct {
	t       TestingT
	options JSONAssertOptions
}

// NewJSONAsserter creates a JSONAsserter with default options
func NewJSONAsserter(t TestingT, opts ...JSONOption) *JSONAsserter {
	ja := &JSONAsserter{t: t}
	defaults.SetDefaults(&ja.options)
	for _, opt := range opts {
		opt(&ja.options)
	}
	return ja
}

// Assert compares one actual document with the expected one.
func (ja *JSONAsserter) Assert(actualJSON, expectedJSON string) bool {
	ja.t.Helper()

	if diff := ja.Diff(actualJSON, expectedJSON); diff != "" {
		ja.t.Errorf("JSON assertion failed:\n%s", diff)
		return false
	}
	return true
}

// AssertLines compares JSON-lines output with the expected documents, line by line.
func (ja *JSONAsserter) AssertLines(actual string, expected ...string) bool {
	ja.t.Helper()

	lines := strings.Split(strings.TrimSpace(actual), "\n")
	if len(lines) != len(expected) {
		ja.t.Errorf("JSON lines assertion failed: want %d lines, got %d:\n%s", len(expected), len(lines), actual)
		return false
	}

	ok := true
	for i := range lines {
		if diff := ja.Diff(lines[i], expected[i]); diff != "" {
			ja.t.Errorf("JSON lines assertion failed at line %d:\n%s", i+1, diff)
			ok = false
		}
	}
	return ok
}

// Diff returns a diff of expected against actual, or "" when they match.
func (ja *JSONAsserter) Diff(actualJSON, expectedJSON string) string {
	var expected, actual interface{}
	if err := json.Unmarshal([]byte(expectedJSON), &expected); err != nil {
		return fmt.Sprintf("invalid expected JSON: %v", err)
	}
	if err := json.Unmarshal([]byte(actualJSON), &actual); err != nil {
		return fmt.Sprintf("invalid actual JSON: %v", err)
	}

	// gojsondiff compares objects only
	expected = map[string]interface{}{"root": expected}
	actual = map[string]interface{}{"root": actual}

	walkPair(expected, actual, func(exp, act map[string]interface{}) {
		for _, field := range ja.options.IgnoredFields {
			delete(exp, field)
			delete(act, field)
		}
		if ja.options.AllowPresencePlaceholder {
			for k, v := range exp {
				if s, ok := v.(string); ok && s == PresencePlaceholder {
					if av, present := act[k]; present {
						exp[k] = av
					}
				}
			}
		}
		if ja.options.IgnoreExtraKeys {
			for k := range act {
				if _, ok := exp[k]; !ok {
					delete(act, k)
				}
			}
		}
	})

	expectedBytes, _ := json.Marshal(expected)
	actualBytes, _ := json.Marshal(actual)

	d, err := gojsondiff.New().Compare(expectedBytes, actualBytes)
	if err != nil {
		return fmt.Sprintf("JSON comparison failed: %v", err)
	}
	if !d.Modified() {
		return ""
	}

	f := formatter.NewAsciiFormatter(expected, formatter.AsciiFormatterConfig{ShowArrayIndex: true})
	out, _ := f.Format(d)
	return out
}

// walkPair calls fn for every pair of objects found at the same position in both trees
func walkPair(expected, actual interface{}, fn func(exp, act map[string]interface{})) {
	switch exp := expected.(type) {
	case map[string]interface{}:
		act, ok := actual.(map[string]interface{})
		if !ok {
			return
		}
		fn(exp, act)
		for k := range exp {
			walkPair(exp[k], act[k], fn)
		}
	case []interface{}:
		act, ok := actual.([]interface{})
		if !ok {
			return
		}
		for i := range exp {
			if i < len(act) {
				walkPair(exp[i], act[i], fn)
			}
		}
	}
}

// WithIgnoreExtraKeys sets whether keys missing from the expected document are ignored
func WithIgnoreExtraKeys(ignore bool) JSONOption {
	return func(o *JSONAssertOptions) { o.IgnoreExtraKeys = ignore }
}

// WithAllowPresencePlaceholder sets whether "<<PRESENCE>>" matches any value
func WithAllowPresencePlaceholder(allow bool) JSONOption {
	return func(o *JSONAssertOptions) { o.AllowPresencePlaceholder = allow }
}

// WithIgnoredFields sets field names removed from both sides at any depth
func WithIgnoredFields(fields ...string) JSONOption {
	return func(o *JSONAssertOptions) { o.IgnoredFields = fields }
}
