package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domainauth "github.com/target/ward-console/internal/domain/auth"
	mockauth "github.com/target/ward-console/internal/mocks/auth"
	"github.com/target/ward-console/internal/ports"
	"github.com/target/ward-console/internal/visitor"
)

// TemplatePathFromTest is the template directory relative to this package.
const TemplatePathFromTest = "../../web/templates"

const testCSRF = "test-csrf-token"

// RequireTemplateRenderer creates a TemplateRenderer from the on-disk templates.
func RequireTemplateRenderer(t *testing.T) *TemplateRenderer {
	t.Helper()
	tr, err := NewTemplateRenderer(TemplateRendererConfig{TemplateFS: os.DirFS(TemplatePathFromTest)})
	require.NoError(t, err)
	return tr
}

// hospitalAPI fakes the hospital REST API. Profiles are keyed by the bearer
// token the fake identity provider issues ("token-<uid>").
type hospitalAPI struct {
	*httptest.Server

	patientsStatus atomic.Int32 // non-zero overrides GET /patients
	slowRelease    chan struct{}
	releaseOnce    sync.Once
	lastPatient    atomic.Value // map[string]any of the last POST /patients body
}

var testProfiles = map[string]domainauth.RoleProfile{
	"doc":    {UserID: "1", Email: "doc@ward.test", FullName: "Greg House", RoleTag: "doctor"},
	"chief":  {UserID: "2", Email: "chief@ward.test", FullName: "Lisa Cuddy", RoleTag: "doctor", IsAdmin: true},
	"cop":    {UserID: "3", Email: "cop@ward.test", FullName: "Michael Tritter", RoleTag: "police"},
	"slow":   {UserID: "4", Email: "slow@ward.test", RoleTag: "doctor"},
	"nobody": {UserID: "5", Email: "nobody@ward.test", RoleTag: "janitor"},
}

func newHospitalAPI(t *testing.T) *hospitalAPI {
	t.Helper()
	api := &hospitalAPI{slowRelease: make(chan struct{})}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /users/me", func(w http.ResponseWriter, r *http.Request) {
		uid, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer token-")
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if uid == "slow" {
			select {
			case <-api.slowRelease:
			case <-r.Context().Done():
				return
			}
		}
		p, ok := testProfiles[uid]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeTestJSON(w, http.StatusOK, p)
	})
	mux.HandleFunc("GET /patients", func(w http.ResponseWriter, r *http.Request) {
		if code := int(api.patientsStatus.Load()); code != 0 {
			writeTestJSON(w, code, map[string]string{"detail": http.StatusText(code)})
			return
		}
		writeTestJSON(w, http.StatusOK, []map[string]any{
			{"id": "p1", "dni": "30111222", "first_name": "Ana", "last_name": "Diaz", "birth_date": "1980-02-03", "gender": "F"},
		})
	})
	mux.HandleFunc("POST /patients", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		api.lastPatient.Store(body)
		body["id"] = "p2"
		writeTestJSON(w, http.StatusCreated, body)
	})
	mux.HandleFunc("GET /certificates", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("dni") != "30111222" {
			writeTestJSON(w, http.StatusNotFound, map[string]string{"detail": "certificate not found"})
			return
		}
		writeTestJSON(w, http.StatusOK, map[string]any{
			"id": "c1", "dni": "30111222", "exam_id": r.URL.Query().Get("exam_id"),
			"patient_name": "Ana Diaz", "result": "fit", "valid": true,
		})
	})
	api.Server = httptest.NewServer(mux)
	t.Cleanup(api.Close)
	return api
}

func (a *hospitalAPI) release() { a.releaseOnce.Do(func() { close(a.slowRelease) }) }

func writeTestJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type routerFixture struct {
	api      *hospitalAPI
	registry *visitor.Registry
	handler  http.Handler
}

func newRouterFixture(t *testing.T, guardWait time.Duration) *routerFixture {
	t.Helper()
	api := newHospitalAPI(t)
	connector := &mockauth.FakeConnector{
		SignInFunc: func(_ context.Context, email, secret string) (domainauth.Identity, error) {
			if secret != "secret" {
				return domainauth.Identity{}, ports.ErrInvalidCredentials
			}
			uid, _, _ := strings.Cut(email, "@")
			return domainauth.Identity{UID: uid, Email: email}, nil
		},
	}
	reg, err := visitor.NewRegistry(visitor.RegistryOptions{
		Connector: connector,
		Config:    visitor.Config{APIBaseURL: api.URL, SettleDelay: -1},
	})
	require.NoError(t, err)
	t.Cleanup(reg.Close)
	// Runs before reg.Close so blocked profile fetches can finish.
	t.Cleanup(api.release)

	h, err := NewRouter(RouterServices{
		Visitors:  reg,
		Renderer:  RequireTemplateRenderer(t),
		GuardWait: guardWait,
	})
	require.NoError(t, err)
	return &routerFixture{api: api, registry: reg, handler: h}
}

// signIn creates a visitor signed in as uid and, unless wait is false, waits for its profile.
func (f *routerFixture) signIn(t *testing.T, uid string, wait bool) *visitor.Context {
	t.Helper()
	ctx := context.Background()
	vc, err := f.registry.Resolve(ctx, "")
	require.NoError(t, err)
	require.NoError(t, vc.Provider.SignIn(ctx, uid+"@ward.test", "secret"))
	if wait {
		wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		_, err := vc.Session.WaitResolved(wctx)
		require.NoError(t, err)
	}
	return vc
}

// do serves one request as the given visitor (nil for a new one).
func (f *routerFixture) do(vc *visitor.Context, method, target string, form url.Values) *httptest.ResponseRecorder {
	return f.doWith(f.handler, vc, method, target, form)
}

func (f *routerFixture) doWith(h http.Handler, vc *visitor.Context, method, target string, form url.Values) *httptest.ResponseRecorder {
	id := ""
	if vc != nil {
		id = vc.ID()
	}
	return requestWithCookie(h, id, method, target, form)
}

// requestAs serves one request presenting a raw visitor_id cookie value.
func (f *routerFixture) requestAs(visitorID, method, target string, form url.Values) *httptest.ResponseRecorder {
	return requestWithCookie(f.handler, visitorID, method, target, form)
}

func requestWithCookie(h http.Handler, visitorID, method, target string, form url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if form != nil {
		form.Set(DefaultCSRFCookieName, testCSRF)
		req = newFormRequest(target, form)
		req.Method = method
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: testCSRF})
	if visitorID != "" {
		req.AddCookie(&http.Cookie{Name: DefaultVisitorCookieName, Value: visitorID})
	}
	return serve(h, req)
}

func newFormRequest(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) statusResponse {
	t.Helper()
	var st statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	return st
}
