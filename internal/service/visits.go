package service

import (
	"context"
	"net/url"

	"github.com/target/ward-console/internal/domain/model"
)

const (
	visitsPath     = "/visits"
	admissionsPath = "/admissions"
)

// VisitServiceOptions groups dependencies for VisitService.
type VisitServiceOptions struct {
	API API
}

// VisitService drives admission, triage and discharge of visits.
type VisitService struct {
	api API
}

// NewVisitService constructs a VisitService.
func NewVisitService(opts VisitServiceOptions) *VisitService {
	if opts.API == nil {
		panic("API is required")
	}
	return &VisitService{api: opts.API}
}

// List returns visits matching opts.
func (s *VisitService) List(ctx context.Context, opts model.VisitsListOptions) ([]model.Visit, error) {
	q := url.Values{}
	if opts.PatientID != "" {
		q.Set("patient_id", opts.PatientID)
	}
	if opts.Status != "" {
		q.Set("status", string(opts.Status))
	}
	var out []model.Visit
	if err := s.api.Get(ctx, visitsPath, pageQuery(q, opts.Limit, opts.Offset), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one visit.
func (s *VisitService) Get(ctx context.Context, id string) (*model.Visit, error) {
	if err := requireID("visit", id); err != nil {
		return nil, err
	}
	var v model.Visit
	if err := s.api.Get(ctx, visitPath(id), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Admit opens a visit for a patient.
func (s *VisitService) Admit(ctx context.Context, req model.AdmitRequest) (*model.Visit, error) {
	if err := req.Validate(); err != nil {
		return nil, validation(err)
	}
	var v model.Visit
	if err := s.api.Post(ctx, visitsPath, req, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Classify sets the triage level of a visit.
func (s *VisitService) Classify(ctx context.Context, id string, req model.TriageRequest) (*model.Visit, error) {
	if err := requireID("visit", id); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, validation(err)
	}
	var v model.Visit
	if err := s.api.Patch(ctx, visitPath(id), req, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Discharge closes a visit.
func (s *VisitService) Discharge(ctx context.Context, id string, req model.DischargeRequest) (*model.Visit, error) {
	if err := requireID("visit", id); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, validation(err)
	}
	var v model.Visit
	if err := s.api.Post(ctx, visitPath(id)+"/discharge", req, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Admissions lists currently admitted patients.
func (s *VisitService) Admissions(ctx context.Context) ([]model.Admission, error) {
	var out []model.Admission
	if err := s.api.Get(ctx, admissionsPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func visitPath(id string) string { return visitsPath + "/" + url.PathEscape(id) }
