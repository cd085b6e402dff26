package httpx

import (
	"net/http"

	"github.com/target/ward-console/internal/domain/model"
)

type verifyPage struct {
	DNI         string
	ExamID      string
	Certificate *model.Certificate
	Searched    bool
}

// Verify looks up an exam certificate for police officers. An empty query
// renders only the search form.
// GET /verify?dni=<dni>&exam_id=<id>.
func (h *UIHandlers) Verify(w http.ResponseWriter, r *http.Request) {
	vc, ok := h.visitor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	page := verifyPage{DNI: q.Get("dni"), ExamID: q.Get("exam_id")}
	if page.DNI == "" && page.ExamID == "" {
		h.Renderer.Render(w, r, View{Page: PageVerify, Data: page})
		return
	}

	page.Searched = true
	cert, err := vc.Certificates.Verify(r.Context(), model.CertificateLookup{DNI: page.DNI, ExamID: page.ExamID})
	if err != nil {
		f, ok := h.interpret(w, r, vc, err)
		if !ok {
			return
		}
		if f.status == http.StatusNotFound {
			// No certificate is an answer, not a failure.
			h.Renderer.Render(w, r, View{Page: PageVerify, Data: page})
			return
		}
		h.Renderer.Render(w, r, View{Page: PageVerify, Status: f.status, Error: f.message, Data: page})
		return
	}
	page.Certificate = cert
	h.Renderer.Render(w, r, View{Page: PageVerify, Data: page})
}

// Home renders the landing page with the links the visitor's role allows.
// GET /.
func (h *UIHandlers) Home(w http.ResponseWriter, r *http.Request) {
	h.Renderer.Render(w, r, View{Page: PageHome})
}

// NotFound renders the 404 page.
func (h *UIHandlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.Renderer.RenderError(w, r, http.StatusNotFound, "The page you requested does not exist.")
}
