package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/target/ward-console/internal/apiclient"
	apperrors "github.com/target/ward-console/internal/errors"
	"github.com/target/ward-console/internal/visitor"
)

const errMsgUnexpected = "Unexpected error. Try again."

// UIHandlers serves the server-rendered screens.
type UIHandlers struct {
	Renderer *TemplateRenderer
	Logger   *slog.Logger
}

func (h *UIHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// visitor returns the request's visitor context, answering 500 when the
// Visitor middleware did not run.
func (h *UIHandlers) visitor(w http.ResponseWriter, r *http.Request) (*visitor.Context, bool) {
	vc, ok := VisitorFromContext(r.Context())
	if !ok {
		h.logger().ErrorContext(r.Context(), "ui handler without visitor context", "path", r.URL.Path)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
	return vc, ok
}

// failure describes how a screen reacts to a service error.
type failure struct {
	status  int
	message string
}

// interpret classifies a service error. It returns false after answering the
// request itself: when the error forced a logout the visitor is navigated away.
func (h *UIHandlers) interpret(w http.ResponseWriter, r *http.Request, vc *visitor.Context, err error) (failure, bool) {
	if deliverNavigation(w, r, vc) {
		return failure{}, false
	}
	err = apiclient.Classify(err)
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger().WarnContext(r.Context(), "hospital API request failed",
			"path", r.URL.Path,
			"visitor_id", vc.ID(),
			"error", err,
		)
	}
	return failure{status: status, message: userMessage(err)}, true
}

// fail renders the error page for list and detail screens.
func (h *UIHandlers) fail(w http.ResponseWriter, r *http.Request, vc *visitor.Context, err error) {
	f, ok := h.interpret(w, r, vc, err)
	if !ok {
		return
	}
	if f.status == http.StatusForbidden {
		h.Renderer.Render(w, r, View{Page: PageAccessDenied, Status: http.StatusForbidden, Error: f.message})
		return
	}
	h.Renderer.RenderError(w, r, f.status, f.message)
}

// formFail re-renders a form with the error inline.
func (h *UIHandlers) formFail(w http.ResponseWriter, r *http.Request, vc *visitor.Context, err error, v View) {
	f, ok := h.interpret(w, r, vc, err)
	if !ok {
		return
	}
	v.Status = f.status
	v.Error = f.message
	h.Renderer.Render(w, r, v)
}

func userMessage(err error) string {
	var ae *apperrors.AppError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return errMsgUnexpected
}

// parseForm parses a submitted form, answering 400 on malformed bodies.
func (h *UIHandlers) parseForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		h.Renderer.RenderError(w, r, http.StatusBadRequest, "The submitted form could not be read.")
		return false
	}
	return true
}
