//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const maxExamNameLen = 200

// ExamTemplate is a reusable exam definition managed by admin doctors.
type ExamTemplate struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Fields      []string  `json:"fields,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ExamTemplateRequest carries fields for creating or replacing a template.
type ExamTemplateRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Fields      []string `json:"fields,omitempty"`
	Active      *bool    `json:"active,omitempty"`
}

// Validate validates ExamTemplateRequest and drops blank fields.
func (r *ExamTemplateRequest) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	if r.Name == "" {
		return errors.New("name is required and cannot be empty")
	}
	if utf8.RuneCountInString(r.Name) > maxExamNameLen {
		return errors.New("name cannot exceed 200 characters")
	}
	fields := r.Fields[:0]
	seen := make(map[string]struct{}, len(r.Fields))
	for _, f := range r.Fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		key := strings.ToLower(f)
		if _, dup := seen[key]; dup {
			return errors.New("duplicate field: " + f)
		}
		seen[key] = struct{}{}
		fields = append(fields, f)
	}
	r.Fields = fields
	return nil
}
