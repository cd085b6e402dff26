package httpx

import (
	"net/http"
	"net/url"

	"github.com/target/ward-console/internal/domain/model"
)

type patientsPage struct {
	Patients []model.Patient
	Query    string
	Limit    int
	Offset   int
	HasMore  bool
}

type patientPage struct {
	Patient model.Patient
	Visits  []model.Visit
}

type patientFormPage struct {
	ID      string // empty when creating
	Request model.PatientRequest
	Genders []model.Gender
}

var patientGenders = []model.Gender{model.GenderFemale, model.GenderMale, model.GenderOther}

// Patients lists patients, filtered by the "q" search box.
// GET /patients.
func (h *UIHandlers) Patients(w http.ResponseWriter, r *http.Request) {
	vc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	limit, offset := ParseLimitOffset(r, defaultListLimit, maxListLimit)
	q := r.URL.Query().Get("q")
	// Ask for one extra row to know whether a next page exists.
	patients, err := vc.Patients.List(r.Context(), model.PatientsListOptions{Q: q, Limit: limit + 1, Offset: offset})
	if err != nil {
		h.fail(w, r, vc, err)
		return
	}
	page := patientsPage{Query: q, Limit: limit, Offset: offset}
	if len(patients) > limit {
		patients, page.HasMore = patients[:limit], true
	}
	page.Patients = patients
	h.Renderer.Render(w, r, View{Page: PagePatients, Data: page})
}

// Patient shows one patient with their visits.
// GET /patients/{id}.
func (h *UIHandlers) Patient(w http.ResponseWriter, r *http.Request) {
	vc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")
	p, err := vc.Patients.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, vc, err)
		return
	}
	visits, err := vc.Visits.List(r.Context(), model.VisitsListOptions{PatientID: id})
	if err != nil {
		h.fail(w, r, vc, err)
		return
	}
	h.Renderer.Render(w, r, View{Page: PagePatient, Title: p.FullName(), Data: patientPage{Patient: *p, Visits: visits}})
}

// NewPatientForm renders an empty registration form.
// GET /patients/new.
func (h *UIHandlers) NewPatientForm(w http.ResponseWriter, r *http.Request) {
	h.Renderer.Render(w, r, View{Page: PagePatientForm, Title: "Register patient", Data: patientFormPage{Genders: patientGenders}})
}

// EditPatientForm renders the form prefilled with the stored patient.
// GET /patients/{id}/edit.
func (h *UIHandlers) EditPatientForm(w http.ResponseWriter, r *http.Request) {
	vc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	p, err := vc.Patients.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, vc, err)
		return
	}
	h.Renderer.Render(w, r, View{Page: PagePatientForm, Title: "Edit patient", Data: patientFormPage{
		ID:      p.ID,
		Genders: patientGenders,
		Request: model.PatientRequest{
			DNI:       p.DNI,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			BirthDate: p.BirthDate,
			Gender:    p.Gender,
			Phone:     p.Phone,
			Address:   p.Address,
		},
	}})
}

// CreatePatient registers a patient.
// POST /patients.
func (h *UIHandlers) CreatePatient(w http.ResponseWriter, r *http.Request) {
	h.savePatient(w, r, "")
}

// UpdatePatient replaces a patient's data.
// POST /patients/{id}.
func (h *UIHandlers) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	h.savePatient(w, r, r.PathValue("id"))
}

func (h *UIHandlers) savePatient(w http.ResponseWriter, r *http.Request, id string) {
	vc, ok := h.visitor(w, r)
	if !ok || !h.parseForm(w, r) {
		return
	}
	req := patientRequestFromForm(r.PostForm)
	form := View{Page: PagePatientForm, Data: patientFormPage{ID: id, Request: req, Genders: patientGenders}}

	var (
		p   *model.Patient
		err error
	)
	if id == "" {
		p, err = vc.Patients.Create(r.Context(), req)
	} else {
		p, err = vc.Patients.Update(r.Context(), id, req)
	}
	if err != nil {
		h.formFail(w, r, vc, err, form)
		return
	}
	redirect(w, r, "/patients/"+url.PathEscape(p.ID))
}

// DeletePatient removes a patient.
// POST /patients/{id}/delete.
func (h *UIHandlers) DeletePatient(w http.ResponseWriter, r *http.Request) {
	vc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	if err := vc.Patients.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, vc, err)
		return
	}
	redirect(w, r, "/patients")
}

func patientRequestFromForm(f url.Values) model.PatientRequest {
	return model.PatientRequest{
		DNI:       f.Get("dni"),
		FirstName: f.Get("first_name"),
		LastName:  f.Get("last_name"),
		BirthDate: f.Get("birth_date"),
		Gender:    model.Gender(f.Get("gender")),
		Phone:     f.Get("phone"),
		Address:   f.Get("address"),
	}
}
