package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	domainauth "github.com/target/ward-console/internal/domain/auth"
	apperrors "github.com/target/ward-console/internal/errors"
	"github.com/target/ward-console/internal/visitor"
)

const minPasswordLen = 6

// AuthHandlers serves sign-in, sign-up, sign-out and the session status endpoint.
type AuthHandlers struct {
	UI        *UIHandlers
	Visitors  VisitorConfig // rotates the visitor id on sign-in
	LoginPath string
	// Wait bounds how long a successful sign-in waits for the profile before redirecting.
	Wait   time.Duration
	Logger *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *AuthHandlers) loginPath() string {
	if h.LoginPath == "" {
		return DefaultLoginPath
	}
	return h.LoginPath
}

type loginForm struct {
	Email       string
	RedirectURI string
	SignUpPath  string
}

// LoginPage renders the sign-in form. Visitors already signed in go straight on.
// GET /login?redirect_uri=<optional_redirect>.
func (h *AuthHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	vc, ok := h.UI.visitor(w, r)
	if !ok {
		return
	}
	back := safeRedirectPath(r.URL.Query().Get(loginRedirectParam))
	if snap := vc.Snapshot(); snap.HasIdentity() && !snap.Resolving {
		redirect(w, r, back)
		return
	}
	h.UI.Renderer.Render(w, r, View{Page: PageLogin, Data: loginForm{RedirectURI: back, SignUpPath: "/signup"}})
}

// Login signs the visitor in and redirects once the session has resolved.
// POST /login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	vc, ok := h.UI.visitor(w, r)
	if !ok || !h.UI.parseForm(w, r) {
		return
	}
	form := loginForm{
		Email:       strings.TrimSpace(r.PostFormValue(formFieldEmail)),
		RedirectURI: safeRedirectPath(r.PostFormValue(loginRedirectParam)),
		SignUpPath:  "/signup",
	}
	view := View{Page: PageLogin, Data: form}
	password := r.PostFormValue(formFieldPassword)
	if form.Email == "" || password == "" {
		view.Status, view.Error = http.StatusBadRequest, "Email and password are required."
		h.UI.Renderer.Render(w, r, view)
		return
	}

	if err := vc.Provider.SignIn(r.Context(), form.Email, password); err != nil {
		view.Status = apperrors.HTTPStatus(err)
		view.Error = errMsgProviderDown
		if apperrors.IsInvalidCredentials(err) {
			view.Error = errMsgInvalidLogin
		} else {
			h.logger().WarnContext(r.Context(), "sign-in failed", "visitor_id", vc.ID(), "error", err)
		}
		h.UI.Renderer.Render(w, r, view)
		return
	}

	vc, ok = h.rotate(w, r, vc)
	if !ok {
		view.Status, view.Error = http.StatusServiceUnavailable, errMsgProviderDown
		h.UI.Renderer.Render(w, r, view)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.wait())
	defer cancel()
	if _, err := vc.Session.WaitResolved(ctx); err != nil {
		h.logger().DebugContext(r.Context(), "redirecting before session resolved", "visitor_id", vc.ID())
	}
	redirect(w, r, form.RedirectURI)
}

// rotate moves a freshly signed-in visitor to a new id and re-issues the cookie,
// so an id planted before sign-in never names the authenticated session.
// On failure the visitor is signed out again.
func (h *AuthHandlers) rotate(w http.ResponseWriter, r *http.Request, vc *visitor.Context) (*visitor.Context, bool) {
	cfg := h.Visitors.normalized()
	if cfg.Resolver == nil {
		return vc, true
	}
	oldID := vc.ID()
	rotated, err := cfg.Resolver.Rotate(r.Context(), oldID)
	if err != nil {
		h.logger().WarnContext(r.Context(), "rotate visitor id failed", "visitor_id", oldID, "error", err)
		if err := vc.Provider.SignOut(context.WithoutCancel(r.Context())); err != nil {
			h.logger().WarnContext(r.Context(), "sign-out after failed rotation", "visitor_id", oldID, "error", err)
		}
		return nil, false
	}
	cfg.setCookie(w, r, rotated.ID())
	return rotated, true
}

func (h *AuthHandlers) wait() time.Duration {
	if h.Wait <= 0 {
		return DefaultGuardWait
	}
	return h.Wait
}

type signupForm struct {
	Email string
}

// SignupPage renders the account creation form.
// GET /signup.
func (h *AuthHandlers) SignupPage(w http.ResponseWriter, r *http.Request) {
	h.UI.Renderer.Render(w, r, View{Page: PageSignup, Data: signupForm{}})
}

// Signup creates an identity without signing in, then sends the visitor to sign in.
// POST /signup.
func (h *AuthHandlers) Signup(w http.ResponseWriter, r *http.Request) {
	vc, ok := h.UI.visitor(w, r)
	if !ok || !h.UI.parseForm(w, r) {
		return
	}
	form := signupForm{Email: strings.TrimSpace(r.PostFormValue(formFieldEmail))}
	password := r.PostFormValue(formFieldPassword)
	view := View{Page: PageSignup, Data: form, Status: http.StatusBadRequest}

	if msg := validateSignup(form.Email, password, r.PostFormValue(formFieldConfirmation)); msg != "" {
		view.Error = msg
		h.UI.Renderer.Render(w, r, view)
		return
	}
	if err := vc.Provider.SignUp(r.Context(), form.Email, password); err != nil {
		view.Status = apperrors.HTTPStatus(err)
		view.Error = userMessage(err)
		if view.Status >= http.StatusInternalServerError {
			h.logger().WarnContext(r.Context(), "sign-up failed", "visitor_id", vc.ID(), "error", err)
			view.Error = errMsgProviderDown
		}
		h.UI.Renderer.Render(w, r, view)
		return
	}
	vc.Outbox.Notify(noticeAccountCreated)
	redirect(w, r, h.loginPath())
}

func validateSignup(email, password, confirmation string) string {
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return "Enter a valid email address."
	}
	if utf8.RuneCountInString(password) < minPasswordLen {
		return "Password must have at least 6 characters."
	}
	if password != confirmation {
		return "Passwords do not match."
	}
	return ""
}

// Logout signs the visitor out. Sign-out never fails from the visitor's point of view.
// POST /logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	vc, ok := h.UI.visitor(w, r)
	if !ok {
		return
	}
	if err := vc.Provider.SignOut(r.Context()); err != nil {
		h.logger().WarnContext(r.Context(), "sign-out failed", "visitor_id", vc.ID(), "error", err)
	}
	vc.Outbox.Notify(noticeSignedOut)
	redirect(w, r, h.loginPath())
}

type statusIdentity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type statusResponse struct {
	VisitorID     string                  `json:"visitor_id"`
	Authenticated bool                    `json:"authenticated"`
	Resolving     bool                    `json:"resolving"`
	Role          domainauth.Role         `json:"role"`
	Identity      *statusIdentity         `json:"identity,omitempty"`
	Profile       *domainauth.RoleProfile `json:"profile,omitempty"`
	Capabilities  map[string]bool         `json:"capabilities"`
}

// Status reports the visitor's current session snapshot without waiting for resolution.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	vc, ok := h.UI.visitor(w, r)
	if !ok {
		return
	}
	snap := vc.Snapshot()
	resp := statusResponse{
		VisitorID:     vc.ID(),
		Authenticated: snap.HasIdentity(),
		Resolving:     snap.Resolving,
		Role:          snap.Role(),
		Profile:       snap.Profile,
		Capabilities: map[string]bool{
			"doctor": snap.IsDoctor(),
			"police": snap.IsPolice(),
			"admin":  snap.IsAdmin(),
		},
	}
	if snap.Identity != nil {
		resp.Identity = &statusIdentity{UID: snap.Identity.UID, Email: snap.Identity.Email, Name: snap.Identity.Name}
	}
	WriteJSON(w, http.StatusOK, resp)
}
