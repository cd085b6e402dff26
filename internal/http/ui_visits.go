package httpx

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/target/ward-console/internal/domain/model"
)

type visitsPage struct {
	Visits    []model.Visit
	Status    model.VisitStatus
	PatientID string
	Limit     int
	Offset    int
	HasMore   bool
}

type visitPage struct {
	Visit     model.Visit
	Triage    model.TriageRequest
	Discharge model.DischargeRequest
}

type visitFormPage struct {
	Request model.AdmitRequest
	Patient *model.Patient
}

// Visits lists visits, optionally filtered by status or patient.
// GET /visits.
func (h *UIHandlers) Visits(w http.ResponseWriter, r *http.Request) {
	vc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	limit, offset := ParseLimitOffset(r, defaultListLimit, maxListLimit)
	page := visitsPage{
		Status:    parseVisitStatus(r.URL.Query().Get("status")),
		PatientID: strings.TrimSpace(r.URL.Query().Get("patient_id")),
		Limit:     limit,
		Offset:    offset,
	}
	visits, err := vc.Visits.List(r.Context(), model.VisitsListOptions{
		PatientID: page.PatientID,
		Status:    page.Status,
		Limit:     limit + 1,
		Offset:    offset,
	})
	if err != nil {
		h.fail(w, r, vc, err)
		return
	}
	if len(visits) > limit {
		visits, page.HasMore = visits[:limit], true
	}
	page.Visits = visits
	h.Renderer.Render(w, r, View{Page: PageVisits, Data: page})
}

func parseVisitStatus(s string) model.VisitStatus {
	switch st := model.VisitStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case model.VisitStatusAdmitted, model.VisitStatusDischarged:
		return st
	default:
		return ""
	}
}

// Visit shows one visit with its triage and discharge forms.
// GET /visits/{id}.
func (h *UIHandlers) Visit(w http.ResponseWriter, r *http.Request) {
	vc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	v, err := vc.Visits.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, vc, err)
		return
	}
	h.Renderer.Render(w, r, View{Page: PageVisit, Data: visitPage{Visit: *v, Triage: model.TriageRequest{Triage: v.Triage}}})
}

// NewVisitForm renders the admission form, prefilled when a patient is given.
// GET /visits/new?patient_id=<id>.
func (h *UIHandlers) NewVisitForm(w http.ResponseWriter, r *http.Request) {
	vc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	page := visitFormPage{Request: model.AdmitRequest{PatientID: r.URL.Query().Get("patient_id")}}
	if page.Request.PatientID != "" {
		p, err := vc.Patients.Get(r.Context(), page.Request.PatientID)
		if err != nil {
			h.fail(w, r, vc, err)
			return
		}
		page.Patient = p
	}
	h.Renderer.Render(w, r, View{Page: PageVisitForm, Data: page})
}

// AdmitVisit opens a visit for a patient.
// POST /visits.
func (h *UIHandlers) AdmitVisit(w http.ResponseWriter, r *http.Request) {
	vc, ok := h.visitor(w, r)
	if !ok || !h.parseForm(w, r) {
		return
	}
	req := model.AdmitRequest{
		PatientID: r.PostFormValue("patient_id"),
		Reason:    r.PostFormValue("reason"),
		Triage:    parseTriage(r.PostFormValue("triage")),
	}
	v, err := vc.Visits.Admit(r.Context(), req)
	if err != nil {
		h.formFail(w, r, vc, err, View{Page: PageVisitForm, Data: visitFormPage{Request: req}})
		return
	}
	redirect(w, r, visitURL(v.ID))
}

// ClassifyVisit records the triage level.
// POST /visits/{id}/triage.
func (h *UIHandlers) ClassifyVisit(w http.ResponseWriter, r *http.Request) {
	vc, ok := h.visitor(w, r)
	if !ok || !h.parseForm(w, r) {
		return
	}
	id := r.PathValue("id")
	req := model.TriageRequest{Triage: parseTriage(r.PostFormValue("triage")), Notes: r.PostFormValue("notes")}
	if _, err := vc.Visits.Classify(r.Context(), id, req); err != nil {
		h.visitFormFail(w, r, id, visitPage{Triage: req}, err)
		return
	}
	redirect(w, r, visitURL(id))
}

// DischargeVisit closes a visit.
// POST /visits/{id}/discharge.
func (h *UIHandlers) DischargeVisit(w http.ResponseWriter, r *http.Request) {
	vc, ok := h.visitor(w, r)
	if !ok || !h.parseForm(w, r) {
		return
	}
	id := r.PathValue("id")
	req := model.DischargeRequest{Summary: r.PostFormValue("summary")}
	if _, err := vc.Visits.Discharge(r.Context(), id, req); err != nil {
		h.visitFormFail(w, r, id, visitPage{Discharge: req}, err)
		return
	}
	redirect(w, r, visitURL(id))
}

// visitFormFail re-renders the visit page around a failed triage or discharge submission.
func (h *UIHandlers) visitFormFail(w http.ResponseWriter, r *http.Request, id string, page visitPage, cause error) {
	vc, _ := VisitorFromContext(r.Context())
	f, ok := h.interpret(w, r, vc, cause)
	if !ok {
		return
	}
	v, err := vc.Visits.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, vc, err)
		return
	}
	page.Visit = *v
	if page.Triage.Triage == 0 {
		page.Triage.Triage = v.Triage
	}
	h.Renderer.Render(w, r, View{Page: PageVisit, Status: f.status, Error: f.message, Data: page})
}

// Admissions lists the patients currently admitted.
// GET /admissions.
func (h *UIHandlers) Admissions(w http.ResponseWriter, r *http.Request) {
	vc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	admissions, err := vc.Visits.Admissions(r.Context())
	if err != nil {
		h.fail(w, r, vc, err)
		return
	}
	h.Renderer.Render(w, r, View{Page: PageAdmissions, Data: admissions})
}

func parseTriage(s string) model.TriageLevel {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return model.TriageLevel(n)
}

func visitURL(id string) string { return "/visits/" + url.PathEscape(id) }
