package httpx

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/target/ward-console/internal/domain/auth"
)

// RouterServices groups dependencies for constructing the HTTP router.
type RouterServices struct {
	Visitors VisitorResolver   // Required
	Renderer *TemplateRenderer // Required
	Static   fs.FS             // Optional; served under /static/
	Metrics  http.Handler      // Optional; served at /metrics

	CookieDomain string
	GuardWait    time.Duration
	LoginPath    string
	Compression  *CompressionConfig // nil disables gzip
	Logger       *slog.Logger
}

// NewRouter wires every route and the middleware chain
// Recover → Logging → Compression → CSRF → Visitor → routes.
func NewRouter(s RouterServices) (http.Handler, error) {
	if s.Visitors == nil {
		return nil, errors.New("visitor resolver is required")
	}
	if s.Renderer == nil {
		return nil, errors.New("template renderer is required")
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loginPath := s.LoginPath
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}

	visitors := VisitorConfig{Resolver: s.Visitors, CookieDomain: s.CookieDomain, Logger: logger}
	ui := &UIHandlers{Renderer: s.Renderer, Logger: logger}
	auth := &AuthHandlers{UI: ui, Visitors: visitors, LoginPath: loginPath, Wait: s.GuardWait, Logger: logger}
	gc := GuardConfig{Wait: s.GuardWait, LoginPath: loginPath, Renderer: s.Renderer, Logger: logger}

	visitorRoutes := http.NewServeMux()
	registerAuthRoutes(visitorRoutes, auth, loginPath)
	registerUIRoutes(visitorRoutes, ui, gc)

	withVisitor := Chain(visitorRoutes,
		CSRFProtection(CSRFConfig{CookieDomain: s.CookieDomain}),
		Visitor(visitors),
	)

	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", healthHandler(s.Visitors))
	if s.Metrics != nil {
		root.Handle("GET /metrics", s.Metrics)
	}
	if s.Static != nil {
		root.Handle("GET /static/", staticWithCacheHeaders(http.StripPrefix("/static/", http.FileServerFS(s.Static))))
	}
	root.Handle("/", withVisitor)

	mws := []func(http.Handler) http.Handler{Recover(logger), Logging(logger)}
	if s.Compression != nil {
		cfg := *s.Compression
		if cfg.Logger == nil {
			cfg.Logger = logger
		}
		mws = append(mws, Compression(cfg))
	}
	return Chain(root, mws...), nil
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers, loginPath string) {
	mux.HandleFunc("GET "+loginPath, h.LoginPage)
	mux.HandleFunc("POST "+loginPath, h.Login)
	mux.HandleFunc("GET /signup", h.SignupPage)
	mux.HandleFunc("POST /signup", h.Signup)
	mux.HandleFunc("POST /logout", h.Logout)
	mux.HandleFunc("GET /auth/status", h.Status)
}

type uiRouteConfig struct {
	mux      *http.ServeMux
	signedIn func(http.Handler) http.Handler
	require  func(domainauth.Capability) func(http.Handler) http.Handler
}

func (c uiRouteConfig) handle(pattern string, h http.HandlerFunc, capability domainauth.Capability) {
	if capability == "" {
		c.mux.Handle(pattern, c.signedIn(h))
		return
	}
	c.mux.Handle(pattern, c.require(capability)(h))
}

func registerUIRoutes(mux *http.ServeMux, h *UIHandlers, gc GuardConfig) {
	c := uiRouteConfig{
		mux:      mux,
		signedIn: RequireVisitor(gc),
		require: func(capability domainauth.Capability) func(http.Handler) http.Handler {
			return RequireCapability(gc, capability)
		},
	}

	c.handle("GET /{$}", h.Home, "")

	// Patients, visits and admissions: doctors.
	c.handle("GET /patients", h.Patients, domainauth.CapDoctor)
	c.handle("GET /patients/new", h.NewPatientForm, domainauth.CapDoctor)
	c.handle("POST /patients", h.CreatePatient, domainauth.CapDoctor)
	c.handle("GET /patients/{id}", h.Patient, domainauth.CapDoctor)
	c.handle("GET /patients/{id}/edit", h.EditPatientForm, domainauth.CapDoctor)
	c.handle("POST /patients/{id}", h.UpdatePatient, domainauth.CapDoctor)
	c.handle("POST /patients/{id}/delete", h.DeletePatient, domainauth.CapDoctor)

	c.handle("GET /visits", h.Visits, domainauth.CapDoctor)
	c.handle("GET /visits/new", h.NewVisitForm, domainauth.CapDoctor)
	c.handle("POST /visits", h.AdmitVisit, domainauth.CapDoctor)
	c.handle("GET /visits/{id}", h.Visit, domainauth.CapDoctor)
	c.handle("POST /visits/{id}/triage", h.ClassifyVisit, domainauth.CapDoctor)
	c.handle("POST /visits/{id}/discharge", h.DischargeVisit, domainauth.CapDoctor)
	c.handle("GET /admissions", h.Admissions, domainauth.CapDoctor)

	// Exam templates: admin doctors.
	c.handle("GET /exams", h.Exams, domainauth.CapAdminDoctor)
	c.handle("GET /exams/new", h.NewExamForm, domainauth.CapAdminDoctor)
	c.handle("POST /exams", h.CreateExam, domainauth.CapAdminDoctor)
	c.handle("GET /exams/{id}/edit", h.EditExamForm, domainauth.CapAdminDoctor)
	c.handle("POST /exams/{id}", h.UpdateExam, domainauth.CapAdminDoctor)
	c.handle("POST /exams/{id}/delete", h.DeleteExam, domainauth.CapAdminDoctor)

	// Certificate verification: police.
	c.handle("GET /verify", h.Verify, domainauth.CapPolice)

	mux.HandleFunc("/", h.NotFound)
}

// staticWithCacheHeaders adds long-lived caching to static assets.
func staticWithCacheHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
