package httpx

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/ward-console/internal/service"
)

func TestNewRouter_RequiresDependencies(t *testing.T) {
	_, err := NewRouter(RouterServices{})
	require.Error(t, err)

	f := newRouterFixture(t, time.Second)
	_, err = NewRouter(RouterServices{Visitors: f.registry})
	require.Error(t, err)
}

func TestRouter_Healthz(t *testing.T) {
	f := newRouterFixture(t, time.Second)
	rec := f.do(nil, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","visitors":0}`, rec.Body.String())
	assert.Empty(t, rec.Result().Cookies(), "health checks do not create visitors")
}

func TestRouter_IssuesVisitorCookie(t *testing.T) {
	f := newRouterFixture(t, time.Second)
	rec := f.do(nil, http.MethodGet, "/auth/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == DefaultVisitorCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	st := decodeStatus(t, rec)
	assert.Equal(t, cookie.Value, st.VisitorID)
	assert.False(t, st.Authenticated)
	assert.Equal(t, 1, f.registry.Len())
}

// Guard scenarios: redirect exactly once, deny without redirect, admit.
func TestGuard_Scenarios(t *testing.T) {
	f := newRouterFixture(t, time.Second)

	t.Run("signed out visitor is redirected once to login", func(t *testing.T) {
		rec := f.do(nil, http.MethodGet, "/patients?q=ana", nil)
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, []string{"/login?redirect_uri=%2Fpatients%3Fq%3Dana"}, rec.Result().Header.Values("Location"))
		assert.Empty(t, rec.Body.String())
	})

	t.Run("police visitor is denied doctor screens", func(t *testing.T) {
		vc := f.signIn(t, "cop", true)
		rec := f.do(vc, http.MethodGet, "/patients", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Empty(t, rec.Header().Get("Location"))
		assert.Contains(t, rec.Body.String(), "Access denied")
	})

	t.Run("doctor is admitted", func(t *testing.T) {
		vc := f.signIn(t, "doc", true)
		rec := f.do(vc, http.MethodGet, "/patients", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Diaz, Ana")
	})

	t.Run("plain doctor is denied admin screens", func(t *testing.T) {
		vc := f.signIn(t, "doc", true)
		rec := f.do(vc, http.MethodGet, "/exams", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("unknown role reaches only role-free pages", func(t *testing.T) {
		vc := f.signIn(t, "nobody", true)
		assert.Equal(t, http.StatusOK, f.do(vc, http.MethodGet, "/", nil).Code)
		assert.Equal(t, http.StatusForbidden, f.do(vc, http.MethodGet, "/verify", nil).Code)
	})

	t.Run("police verifies certificates", func(t *testing.T) {
		vc := f.signIn(t, "cop", true)
		rec := f.do(vc, http.MethodGet, "/verify?dni=30111222&exam_id=e1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Valid certificate")

		rec = f.do(vc, http.MethodGet, "/verify?dni=40111222&exam_id=e1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "No certificate found")
	})
}

func TestGuard_WaitsWhileResolving(t *testing.T) {
	f := newRouterFixture(t, 50*time.Millisecond)
	vc := f.signIn(t, "slow", false)
	require.True(t, vc.Snapshot().Resolving)

	rec := f.do(vc, http.MethodGet, "/patients", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"), "no premature redirect")
	assert.Empty(t, rec.Body.String())

	slow := mustRouter(t, f, 2*time.Second)
	done := make(chan int, 1)
	go func() {
		done <- f.doWith(slow, vc, http.MethodGet, "/patients", nil).Code
	}()
	time.Sleep(20 * time.Millisecond)
	f.api.release()

	select {
	case code := <-done:
		assert.Equal(t, http.StatusOK, code)
	case <-time.After(3 * time.Second):
		t.Fatal("guarded request never completed")
	}
}

func mustRouter(t *testing.T, f *routerFixture, wait time.Duration) http.Handler {
	t.Helper()
	h, err := NewRouter(RouterServices{Visitors: f.registry, Renderer: RequireTemplateRenderer(t), GuardWait: wait})
	require.NoError(t, err)
	return h
}

func TestRouter_UnauthorizedForcesLogout(t *testing.T) {
	f := newRouterFixture(t, time.Second)
	vc := f.signIn(t, "doc", true)
	f.api.patientsStatus.Store(http.StatusUnauthorized)

	rec := f.do(vc, http.MethodGet, "/patients", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.False(t, vc.Snapshot().HasIdentity())

	// The navigation was delivered; the login page shows the notice once signed out.
	rec = f.do(vc, http.MethodGet, "/login", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), service.DefaultLogoutNotice)

	_, pending := vc.Outbox.PendingNavigation()
	assert.False(t, pending)
}

func TestRouter_ForbiddenLeavesSession(t *testing.T) {
	f := newRouterFixture(t, time.Second)
	vc := f.signIn(t, "doc", true)
	before := vc.Snapshot()
	f.api.patientsStatus.Store(http.StatusForbidden)

	rec := f.do(vc, http.MethodGet, "/patients", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))

	after := vc.Snapshot()
	require.True(t, after.HasIdentity())
	assert.Equal(t, before.Identity.UID, after.Identity.UID)
	assert.Equal(t, before.Profile, after.Profile)
	_, pending := vc.Outbox.PendingNavigation()
	assert.False(t, pending)
}

func TestRouter_ServerErrorRendersMessage(t *testing.T) {
	f := newRouterFixture(t, time.Second)
	vc := f.signIn(t, "doc", true)
	f.api.patientsStatus.Store(http.StatusInternalServerError)

	rec := f.do(vc, http.MethodGet, "/patients", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.True(t, vc.Snapshot().HasIdentity())
}

func TestAuth_LoginFlow(t *testing.T) {
	f := newRouterFixture(t, time.Second)
	vc, err := f.registry.Resolve(t.Context(), "")
	require.NoError(t, err)

	rec := f.do(vc, http.MethodGet, "/login?redirect_uri=/visits", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="redirect_uri" value="/visits"`)

	rec = f.do(vc, http.MethodPost, "/login", url.Values{"email": {"doc@ward.test"}, "password": {"wrong"}, "redirect_uri": {"/visits"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), errMsgInvalidLogin)

	rec = f.do(vc, http.MethodPost, "/login", url.Values{"email": {"doc@ward.test"}, "password": {"secret"}, "redirect_uri": {"https://evil.test/"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"), "off-site redirects are dropped")

	st := decodeStatus(t, f.do(vc, http.MethodGet, "/auth/status", nil))
	assert.True(t, st.Authenticated)
	assert.False(t, st.Resolving)
	assert.Equal(t, "doctor", string(st.Role))
	assert.True(t, st.Capabilities["doctor"])

	rec = f.do(vc, http.MethodGet, "/login?redirect_uri=/visits", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/visits", rec.Header().Get("Location"))

	rec = f.do(vc, http.MethodPost, "/logout", url.Values{})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.False(t, vc.Snapshot().HasIdentity())
}

func visitorCookie(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == DefaultVisitorCookieName {
			return c.Value
		}
	}
	t.Fatalf("response did not set %s", DefaultVisitorCookieName)
	return ""
}

func TestVisitor_UnknownCookieIsNotAdopted(t *testing.T) {
	f := newRouterFixture(t, time.Second)
	planted := uuid.NewString()

	rec := f.requestAs(planted, http.MethodGet, "/auth/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	issued := visitorCookie(t, rec)
	assert.NotEqual(t, planted, issued)
	assert.Equal(t, issued, decodeStatus(t, rec).VisitorID)

	_, ok := f.registry.Lookup(planted)
	assert.False(t, ok)
}

func TestAuth_LoginRotatesVisitorID(t *testing.T) {
	f := newRouterFixture(t, time.Second)

	// An id handed out before sign-in, e.g. one an attacker obtained and planted.
	rec := f.do(nil, http.MethodGet, "/login", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	before := visitorCookie(t, rec)

	rec = f.requestAs(before, http.MethodPost, "/login", url.Values{"email": {"doc@ward.test"}, "password": {"secret"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	after := visitorCookie(t, rec)
	assert.NotEqual(t, before, after)

	victim := decodeStatus(t, f.requestAs(after, http.MethodGet, "/auth/status", nil))
	assert.True(t, victim.Authenticated)
	assert.Equal(t, after, victim.VisitorID)

	rec = f.requestAs(before, http.MethodGet, "/auth/status", nil)
	attacker := decodeStatus(t, rec)
	assert.False(t, attacker.Authenticated)
	assert.Equal(t, "unauthenticated", string(attacker.Role))
	assert.NotEqual(t, after, attacker.VisitorID)
}

func TestAuth_LoginRequiresFields(t *testing.T) {
	f := newRouterFixture(t, time.Second)
	rec := f.do(nil, http.MethodPost, "/login", url.Values{"email": {"doc@ward.test"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuth_SignupValidation(t *testing.T) {
	f := newRouterFixture(t, time.Second)
	cases := []struct {
		name string
		form url.Values
		msg  string
	}{
		{"bad email", url.Values{"email": {"nope"}, "password": {"secret1"}, "password_confirmation": {"secret1"}}, "valid email"},
		{"short password", url.Values{"email": {"a@ward.test"}, "password": {"123"}, "password_confirmation": {"123"}}, "at least 6"},
		{"mismatch", url.Values{"email": {"a@ward.test"}, "password": {"secret1"}, "password_confirmation": {"secret2"}}, "do not match"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(nil, http.MethodPost, "/signup", tc.form)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.msg)
		})
	}
}

func TestRouter_CreatePatient(t *testing.T) {
	f := newRouterFixture(t, time.Second)
	vc := f.signIn(t, "doc", true)

	rec := f.do(vc, http.MethodPost, "/patients", url.Values{"dni": {"12"}, "first_name": {"Ana"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "dni must have between 7 and 10 digits")
	assert.Nil(t, f.api.lastPatient.Load(), "invalid forms never reach the API")

	rec = f.do(vc, http.MethodPost, "/patients", url.Values{
		"dni": {"30111222"}, "first_name": {"Ana"}, "last_name": {"Diaz"},
		"birth_date": {"1980-02-03"}, "gender": {"f"},
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/patients/p2", rec.Header().Get("Location"))
	body, ok := f.api.lastPatient.Load().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "F", body["gender"])
}

func TestRouter_RejectsMissingCSRFToken(t *testing.T) {
	f := newRouterFixture(t, time.Second)
	vc := f.signIn(t, "doc", true)

	req := newFormRequest("/logout", url.Values{})
	req.AddCookie(&http.Cookie{Name: DefaultVisitorCookieName, Value: vc.ID()})
	req.AddCookie(&http.Cookie{Name: DefaultCSRFCookieName, Value: testCSRF})
	rec := serve(f.handler, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.True(t, vc.Snapshot().HasIdentity())
}

func TestRouter_NotFound(t *testing.T) {
	f := newRouterFixture(t, time.Second)
	rec := f.do(nil, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
