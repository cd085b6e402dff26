package httpx

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"

	domainauth "github.com/target/ward-console/internal/domain/auth"
)

// TemplateRenderer renders HTML templates for UI responses.
// Every page is parsed against its own clone of the shared layout so that
// pages may each define "content" without clashing.
type TemplateRenderer struct {
	pages    map[string]*template.Template
	basePath string
	logger   *slog.Logger
}

// TemplateRendererConfig holds configuration for creating a TemplateRenderer.
type TemplateRendererConfig struct {
	TemplateFS fs.FS  // Filesystem containing layout.tmpl, partials/ and pages/ (required)
	BasePath   string // Prefix for links to static assets (optional)
	Logger     *slog.Logger
}

// NewTemplateRenderer parses the layout, partials and every page template.
func NewTemplateRenderer(cfg TemplateRendererConfig) (*TemplateRenderer, error) {
	if cfg.TemplateFS == nil {
		return nil, errors.New("TemplateFS is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base, err := template.New("").Funcs(templateFuncs()).ParseFS(cfg.TemplateFS, "*.tmpl", "partials/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse layout templates: %w", err)
	}
	files, err := fs.Glob(cfg.TemplateFS, "pages/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("list page templates: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no page templates found")
	}

	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		t, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layout for %s: %w", file, err)
		}
		if _, err := t.ParseFS(cfg.TemplateFS, file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		pages[strings.TrimSuffix(path.Base(file), ".tmpl")] = t
	}

	return &TemplateRenderer{
		pages:    pages,
		basePath: strings.TrimRight(cfg.BasePath, "/"),
		logger:   logger,
	}, nil
}

// View describes one page render.
type View struct {
	Page   string
	Title  string
	Status int // defaults to 200
	Error  string
	Data   any
}

// PageData is the value every template executes against.
type PageData struct {
	Title     string
	Page      string
	Session   domainauth.Session
	Notice    string
	CSRFToken string
	Error     string
	BasePath  string
	Data      any
}

// Render writes the full page, or only its "content" block for htmx requests.
func (tr *TemplateRenderer) Render(w http.ResponseWriter, r *http.Request, v View) {
	t, ok := tr.pages[v.Page]
	if !ok {
		tr.logger.ErrorContext(r.Context(), "unknown page template", "page", v.Page)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	status := v.Status
	if status == 0 {
		status = http.StatusOK
	}

	data := tr.pageData(r, v)
	name := "layout"
	if IsHTMX(r) {
		name = "content"
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, data); err != nil {
		tr.logger.ErrorContext(r.Context(), "template render failed", "page", v.Page, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (tr *TemplateRenderer) pageData(r *http.Request, v View) PageData {
	title := v.Title
	if title == "" {
		title = pageTitles[v.Page]
	}
	data := PageData{
		Title:     title,
		Page:      v.Page,
		CSRFToken: CSRFToken(r),
		Error:     v.Error,
		BasePath:  tr.basePath,
		Data:      v.Data,
	}
	if s, ok := SessionFromContext(r.Context()); ok {
		data.Session = s
	} else if vc, ok := VisitorFromContext(r.Context()); ok {
		data.Session = vc.Snapshot()
	}
	if vc, ok := VisitorFromContext(r.Context()); ok {
		data.Notice, _ = vc.Outbox.Notice()
	}
	return data
}

// AccessDenied renders the fixed access denied view with a 403.
func (tr *TemplateRenderer) AccessDenied(w http.ResponseWriter, r *http.Request, s domainauth.Session, c domainauth.Capability) {
	r = r.WithContext(SetSessionInContext(r.Context(), s))
	tr.Render(w, r, View{Page: PageAccessDenied, Status: http.StatusForbidden, Data: c})
}

// RenderError renders the generic error page.
func (tr *TemplateRenderer) RenderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	tr.Render(w, r, View{Page: PageError, Status: status, Error: message})
}
