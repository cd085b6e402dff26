//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"strings"
	"time"
)

// Certificate is the result of a police verification lookup.
type Certificate struct {
	ID          string    `json:"id"`
	DNI         string    `json:"dni"`
	ExamID      string    `json:"exam_id"`
	ExamName    string    `json:"exam_name,omitempty"`
	PatientName string    `json:"patient_name"`
	Result      string    `json:"result"`
	Valid       bool      `json:"valid"`
	IssuedAt    time.Time `json:"issued_at"`
	IssuedBy    string    `json:"issued_by,omitempty"`
}

// CertificateLookup identifies a certificate by patient DNI and exam id.
type CertificateLookup struct {
	DNI    string
	ExamID string
}

// Validate validates CertificateLookup.
func (l *CertificateLookup) Validate() error {
	l.DNI = strings.TrimSpace(l.DNI)
	l.ExamID = strings.TrimSpace(l.ExamID)
	if err := ValidateDNI(l.DNI); err != nil {
		return err
	}
	if l.ExamID == "" {
		return errors.New("exam_id is required")
	}
	return nil
}
