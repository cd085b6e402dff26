package service

import (
	"context"
	"net/url"

	"github.com/target/ward-console/internal/domain/model"
)

const certificatesPath = "/certificates"

// CertificateServiceOptions groups dependencies for CertificateService.
type CertificateServiceOptions struct {
	API API
}

// CertificateService performs police certificate verification lookups.
type CertificateService struct {
	api API
}

// NewCertificateService constructs a CertificateService.
func NewCertificateService(opts CertificateServiceOptions) *CertificateService {
	if opts.API == nil {
		panic("API is required")
	}
	return &CertificateService{api: opts.API}
}

// Verify looks up the certificate for a DNI and exam id.
func (s *CertificateService) Verify(ctx context.Context, lookup model.CertificateLookup) (*model.Certificate, error) {
	if err := lookup.Validate(); err != nil {
		return nil, validation(err)
	}
	q := url.Values{}
	q.Set("dni", lookup.DNI)
	q.Set("exam_id", lookup.ExamID)
	var c model.Certificate
	if err := s.api.Get(ctx, certificatesPath, q, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
