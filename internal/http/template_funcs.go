package httpx

import (
	"html/template"
	"strings"
	"time"

	"github.com/target/ward-console/internal/domain/model"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"triageLabel":  func(t model.TriageLevel) string { return t.Label() },
		"triageLevels": func() []model.TriageLevel { return model.TriageLevels },
		"date":         formatTime(dateLayout),
		"datetime":     formatTime(dateTimeLayout),
		"join":         strings.Join,
		"add":          func(a, b int) int { return a + b },
		"sub":          func(a, b int) int { return a - b },
	}
}

// formatTime accepts time.Time or *time.Time and renders the zero value as an empty string.
func formatTime(layout string) func(any) string {
	return func(v any) string {
		var t time.Time
		switch tv := v.(type) {
		case time.Time:
			t = tv
		case *time.Time:
			if tv == nil {
				return ""
			}
			t = *tv
		default:
			return ""
		}
		if t.IsZero() {
			return ""
		}
		return t.Local().Format(layout)
	}
}
