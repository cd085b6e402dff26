package apiclient

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jmespath-community/go-jmespath"
)

// DefaultErrorMessageExpr picks the message field used by common API frameworks.
const DefaultErrorMessageExpr = "detail || message || error"

const maxMessageLen = 512

type messageExtractor struct {
	query jmespath.JMESPath
}

func newMessageExtractor(expr string) (messageExtractor, error) {
	if strings.TrimSpace(expr) == "" {
		expr = DefaultErrorMessageExpr
	}
	query, err := jmespath.Compile(expr)
	if err != nil {
		return messageExtractor{}, fmt.Errorf("compile error message expression %q: %w", expr, err)
	}
	return messageExtractor{query: query}, nil
}

// extract returns a human-readable message for an error body.
// JSON bodies go through the expression; anything else is used as trimmed text.
func (m messageExtractor) extract(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return truncate(trimmed)
	}
	res, err := m.query.Search(doc)
	if err != nil || res == nil {
		return truncate(trimmed)
	}
	switch v := res.(type) {
	case string:
		return truncate(v)
	case []any:
		// Validation frameworks return a list of {msg, loc} objects.
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, stringify(item))
		}
		return truncate(strings.Join(parts, "; "))
	default:
		return truncate(stringify(v))
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		for _, key := range []string{"msg", "message", "detail"} {
			if s, ok := t[key].(string); ok {
				return s
			}
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// truncate caps s at maxMessageLen bytes without splitting a rune.
func truncate(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	cut := maxMessageLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
