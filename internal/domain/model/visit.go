//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"strings"
	"time"
)

// TriageLevel is the emergency priority of a visit, 1 (most urgent) to 5.
type TriageLevel int

const (
	TriageResuscitation TriageLevel = 1
	TriageEmergency     TriageLevel = 2
	TriageUrgent        TriageLevel = 3
	TriageLessUrgent    TriageLevel = 4
	TriageNonUrgent     TriageLevel = 5
)

// TriageLevels lists every level in priority order.
var TriageLevels = []TriageLevel{
	TriageResuscitation, TriageEmergency, TriageUrgent, TriageLessUrgent, TriageNonUrgent,
}

// Valid reports whether the level is within 1..5.
func (t TriageLevel) Valid() bool {
	return t >= TriageResuscitation && t <= TriageNonUrgent
}

// Label returns the display name of the level.
func (t TriageLevel) Label() string {
	switch t {
	case TriageResuscitation:
		return "Resuscitation"
	case TriageEmergency:
		return "Emergency"
	case TriageUrgent:
		return "Urgent"
	case TriageLessUrgent:
		return "Less urgent"
	case TriageNonUrgent:
		return "Non-urgent"
	default:
		return "Unclassified"
	}
}

// VisitStatus is the lifecycle state of a visit.
type VisitStatus string

const (
	VisitStatusAdmitted   VisitStatus = "admitted"
	VisitStatusDischarged VisitStatus = "discharged"
)

// Visit is one hospital stay of a patient.
type Visit struct {
	ID           string      `json:"id"`
	PatientID    string      `json:"patient_id"`
	Patient      *Patient    `json:"patient,omitempty"`
	Reason       string      `json:"reason"`
	Triage       TriageLevel `json:"triage,omitempty"`
	Status       VisitStatus `json:"status"`
	AdmittedAt   time.Time   `json:"admitted_at"`
	DischargedAt *time.Time  `json:"discharged_at,omitempty"`
	Notes        string      `json:"notes,omitempty"`
}

// Open reports whether the patient is still admitted.
func (v Visit) Open() bool {
	return v.DischargedAt == nil && v.Status != VisitStatusDischarged
}

// VisitsListOptions filters the visit listing.
type VisitsListOptions struct {
	PatientID string
	Status    VisitStatus
	Limit     int
	Offset    int
}

// AdmitRequest opens a visit for a patient.
type AdmitRequest struct {
	PatientID string      `json:"patient_id"`
	Reason    string      `json:"reason"`
	Triage    TriageLevel `json:"triage,omitempty"`
}

// Validate validates AdmitRequest. Triage may be set later.
func (r *AdmitRequest) Validate() error {
	r.PatientID = strings.TrimSpace(r.PatientID)
	r.Reason = strings.TrimSpace(r.Reason)
	if r.PatientID == "" {
		return errors.New("patient_id is required")
	}
	if r.Reason == "" {
		return errors.New("reason is required")
	}
	if r.Triage != 0 && !r.Triage.Valid() {
		return errors.New("triage must be between 1 and 5")
	}
	return nil
}

// TriageRequest classifies an open visit.
type TriageRequest struct {
	Triage TriageLevel `json:"triage"`
	Notes  string      `json:"notes,omitempty"`
}

// Validate validates TriageRequest.
func (r *TriageRequest) Validate() error {
	if !r.Triage.Valid() {
		return errors.New("triage must be between 1 and 5")
	}
	r.Notes = strings.TrimSpace(r.Notes)
	return nil
}

// DischargeRequest closes a visit.
type DischargeRequest struct {
	Summary string `json:"summary"`
}

// Validate validates DischargeRequest.
func (r *DischargeRequest) Validate() error {
	r.Summary = strings.TrimSpace(r.Summary)
	if r.Summary == "" {
		return errors.New("summary is required")
	}
	return nil
}

// Admission is an admitted patient as listed by the API.
type Admission struct {
	VisitID    string      `json:"visit_id"`
	Patient    Patient     `json:"patient"`
	Reason     string      `json:"reason"`
	Triage     TriageLevel `json:"triage,omitempty"`
	AdmittedAt time.Time   `json:"admitted_at"`
}
