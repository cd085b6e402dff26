package service

import (
	"context"
	"net/url"

	"github.com/target/ward-console/internal/domain/model"
)

const examsPath = "/exams"

// ExamServiceOptions groups dependencies for ExamService.
type ExamServiceOptions struct {
	API API
}

// ExamService manages exam templates.
type ExamService struct {
	api API
}

// NewExamService constructs an ExamService.
func NewExamService(opts ExamServiceOptions) *ExamService {
	if opts.API == nil {
		panic("API is required")
	}
	return &ExamService{api: opts.API}
}

// List returns all exam templates.
func (s *ExamService) List(ctx context.Context) ([]model.ExamTemplate, error) {
	var out []model.ExamTemplate
	if err := s.api.Get(ctx, examsPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one template.
func (s *ExamService) Get(ctx context.Context, id string) (*model.ExamTemplate, error) {
	if err := requireID("exam", id); err != nil {
		return nil, err
	}
	var e model.ExamTemplate
	if err := s.api.Get(ctx, examsPath+"/"+url.PathEscape(id), nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Create adds a template.
func (s *ExamService) Create(ctx context.Context, req model.ExamTemplateRequest) (*model.ExamTemplate, error) {
	if err := req.Validate(); err != nil {
		return nil, validation(err)
	}
	var e model.ExamTemplate
	if err := s.api.Post(ctx, examsPath, req, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Update replaces a template.
func (s *ExamService) Update(ctx context.Context, id string, req model.ExamTemplateRequest) (*model.ExamTemplate, error) {
	if err := requireID("exam", id); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, validation(err)
	}
	var e model.ExamTemplate
	if err := s.api.Put(ctx, examsPath+"/"+url.PathEscape(id), req, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Delete removes a template.
func (s *ExamService) Delete(ctx context.Context, id string) error {
	if err := requireID("exam", id); err != nil {
		return err
	}
	return s.api.Delete(ctx, examsPath+"/"+url.PathEscape(id))
}
