package service

import (
	"context"
	"net/url"
	"strings"

	"github.com/target/ward-console/internal/domain/model"
)

const patientsPath = "/patients"

// PatientServiceOptions groups dependencies for PatientService.
type PatientServiceOptions struct {
	API API
}

// PatientService drives the patient registration screens.
type PatientService struct {
	api API
}

// NewPatientService constructs a PatientService.
func NewPatientService(opts PatientServiceOptions) *PatientService {
	if opts.API == nil {
		panic("API is required")
	}
	return &PatientService{api: opts.API}
}

// List returns patients, optionally filtered by DNI or name.
func (s *PatientService) List(ctx context.Context, opts model.PatientsListOptions) ([]model.Patient, error) {
	q := url.Values{}
	if v := strings.TrimSpace(opts.Q); v != "" {
		q.Set("search", v)
	}
	var out []model.Patient
	if err := s.api.Get(ctx, patientsPath, pageQuery(q, opts.Limit, opts.Offset), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns one patient.
func (s *PatientService) Get(ctx context.Context, id string) (*model.Patient, error) {
	if err := requireID("patient", id); err != nil {
		return nil, err
	}
	var p model.Patient
	if err := s.api.Get(ctx, patientsPath+"/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Create registers a patient.
func (s *PatientService) Create(ctx context.Context, req model.PatientRequest) (*model.Patient, error) {
	if err := req.Validate(); err != nil {
		return nil, validation(err)
	}
	var p model.Patient
	if err := s.api.Post(ctx, patientsPath, req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Update replaces a patient's registration data.
func (s *PatientService) Update(ctx context.Context, id string, req model.PatientRequest) (*model.Patient, error) {
	if err := requireID("patient", id); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, validation(err)
	}
	var p model.Patient
	if err := s.api.Put(ctx, patientsPath+"/"+url.PathEscape(id), req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Delete removes a patient.
func (s *PatientService) Delete(ctx context.Context, id string) error {
	if err := requireID("patient", id); err != nil {
		return err
	}
	return s.api.Delete(ctx, patientsPath+"/"+url.PathEscape(id))
}
