package httpx

import (
	"net/http"
	"strings"

	"github.com/target/ward-console/internal/domain/model"
)

type examFormPage struct {
	ID      string
	Request model.ExamTemplateRequest
	Fields  string // one field per line, as typed in the textarea
	Active  bool
}

// Exams lists exam templates.
// GET /exams.
func (h *UIHandlers) Exams(w http.ResponseWriter, r *http.Request) {
	vc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	exams, err := vc.Exams.List(r.Context())
	if err != nil {
		h.fail(w, r, vc, err)
		return
	}
	h.Renderer.Render(w, r, View{Page: PageExams, Data: exams})
}

// NewExamForm renders an empty exam template form.
// GET /exams/new.
func (h *UIHandlers) NewExamForm(w http.ResponseWriter, r *http.Request) {
	h.Renderer.Render(w, r, View{Page: PageExamForm, Title: "New exam template", Data: examFormPage{Active: true}})
}

// EditExamForm renders the form prefilled with a stored template.
// GET /exams/{id}/edit.
func (h *UIHandlers) EditExamForm(w http.ResponseWriter, r *http.Request) {
	vc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	e, err := vc.Exams.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, vc, err)
		return
	}
	h.Renderer.Render(w, r, View{Page: PageExamForm, Title: "Edit " + e.Name, Data: examFormPage{
		ID:      e.ID,
		Request: model.ExamTemplateRequest{Name: e.Name, Description: e.Description, Fields: e.Fields},
		Fields:  strings.Join(e.Fields, "\n"),
		Active:  e.Active,
	}})
}

// CreateExam stores a new exam template.
// POST /exams.
func (h *UIHandlers) CreateExam(w http.ResponseWriter, r *http.Request) {
	h.saveExam(w, r, "")
}

// UpdateExam replaces an exam template.
// POST /exams/{id}.
func (h *UIHandlers) UpdateExam(w http.ResponseWriter, r *http.Request) {
	h.saveExam(w, r, r.PathValue("id"))
}

func (h *UIHandlers) saveExam(w http.ResponseWriter, r *http.Request, id string) {
	vc, ok := h.visitor(w, r)
	if !ok || !h.parseForm(w, r) {
		return
	}
	fields := r.PostFormValue("fields")
	active := r.PostFormValue("active") != ""
	req := model.ExamTemplateRequest{
		Name:        r.PostFormValue("name"),
		Description: r.PostFormValue("description"),
		Fields:      strings.Split(strings.ReplaceAll(fields, "\r\n", "\n"), "\n"),
		Active:      &active,
	}
	form := View{Page: PageExamForm, Data: examFormPage{ID: id, Request: req, Fields: fields, Active: active}}

	var err error
	if id == "" {
		_, err = vc.Exams.Create(r.Context(), req)
	} else {
		_, err = vc.Exams.Update(r.Context(), id, req)
	}
	if err != nil {
		h.formFail(w, r, vc, err, form)
		return
	}
	redirect(w, r, "/exams")
}

// DeleteExam removes an exam template.
// POST /exams/{id}/delete.
func (h *UIHandlers) DeleteExam(w http.ResponseWriter, r *http.Request) {
	vc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	if err := vc.Exams.Delete(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, vc, err)
		return
	}
	redirect(w, r, "/exams")
}
