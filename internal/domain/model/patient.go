//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

const (
	maxPatientNameLen = 120
	minDNILen         = 7
	maxDNILen         = 10
	birthDateLayout   = "2006-01-02"
)

// Gender as recorded by the hospital API.
type Gender string

const (
	GenderFemale Gender = "F"
	GenderMale   Gender = "M"
	GenderOther  Gender = "X"
)

// Valid reports whether the gender is supported.
func (g Gender) Valid() bool {
	switch g {
	case GenderFemale, GenderMale, GenderOther:
		return true
	default:
		return false
	}
}

// Patient is a registered patient.
type Patient struct {
	ID        string    `json:"id"`
	DNI       string    `json:"dni"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	BirthDate string    `json:"birth_date"` // YYYY-MM-DD
	Gender    Gender    `json:"gender"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName returns "Last, First".
func (p Patient) FullName() string {
	switch {
	case p.LastName == "":
		return p.FirstName
	case p.FirstName == "":
		return p.LastName
	default:
		return p.LastName + ", " + p.FirstName
	}
}

// PatientsListOptions filters the patient listing.
// Q matches DNI or name on the server.
type PatientsListOptions struct {
	Q      string
	Limit  int
	Offset int
}

// PatientRequest carries the fields for creating or replacing a patient.
type PatientRequest struct {
	DNI       string `json:"dni"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	BirthDate string `json:"birth_date"`
	Gender    Gender `json:"gender"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
}

// Normalize trims whitespace and upper-cases the gender.
func (r *PatientRequest) Normalize() {
	r.DNI = strings.TrimSpace(r.DNI)
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.BirthDate = strings.TrimSpace(r.BirthDate)
	r.Gender = Gender(strings.ToUpper(strings.TrimSpace(string(r.Gender))))
	r.Phone = strings.TrimSpace(r.Phone)
	r.Address = strings.TrimSpace(r.Address)
}

// Validate checks the form-level constraints. The API remains the authority.
func (r *PatientRequest) Validate() error {
	r.Normalize()
	if err := ValidateDNI(r.DNI); err != nil {
		return err
	}
	if r.FirstName == "" {
		return errors.New("first_name is required")
	}
	if r.LastName == "" {
		return errors.New("last_name is required")
	}
	if utf8.RuneCountInString(r.FirstName) > maxPatientNameLen || utf8.RuneCountInString(r.LastName) > maxPatientNameLen {
		return errors.New("names cannot exceed 120 characters")
	}
	if r.BirthDate == "" {
		return errors.New("birth_date is required")
	}
	bd, err := time.Parse(birthDateLayout, r.BirthDate)
	if err != nil {
		return errors.New("birth_date must be YYYY-MM-DD")
	}
	if bd.After(time.Now()) {
		return errors.New("birth_date cannot be in the future")
	}
	if !r.Gender.Valid() {
		return errors.New("gender must be one of F, M, X")
	}
	return nil
}

// ValidateDNI checks that a national identity number is 7 to 10 digits.
func ValidateDNI(dni string) error {
	dni = strings.TrimSpace(dni)
	if dni == "" {
		return errors.New("dni is required")
	}
	if len(dni) < minDNILen || len(dni) > maxDNILen {
		return errors.New("dni must have between 7 and 10 digits")
	}
	for _, r := range dni {
		if !unicode.IsDigit(r) {
			return errors.New("dni must contain digits only")
		}
	}
	return nil
}
