package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	apperrors "github.com/target/ward-console/internal/errors"
	"github.com/target/ward-console/internal/mocks"
	"github.com/target/ward-console/internal/ports"
)

// tokenStub answers CurrentToken from a scripted sequence; the last entry repeats.
type tokenStub struct {
	mu     sync.Mutex
	tokens []string
	calls  int
}

func (s *tokenStub) CurrentToken(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if len(s.tokens) == 0 {
		return "", ports.ErrNoIdentity
	}
	if i >= len(s.tokens) {
		i = len(s.tokens) - 1
	}
	if s.tokens[i] == "" {
		return "", ports.ErrNoIdentity
	}
	return s.tokens[i], nil
}

func (s *tokenStub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type failureLog struct {
	mu   sync.Mutex
	errs []error
}

func (f *failureLog) HandleFailure(_ context.Context, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs = append(f.errs, err)
}

func newTestClient(t *testing.T, srv *httptest.Server, tokens ports.TokenSource, onFailure FailureHandler) *Client {
	t.Helper()
	c, err := New(Options{
		BaseURL:   srv.URL + "/api",
		Tokens:    tokens,
		OnFailure: onFailure,
		TokenPoll: TokenPoll{Attempts: 10, Interval: 5 * time.Millisecond},
	})
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)

	_, err = New(Options{BaseURL: "/relative"})
	require.Error(t, err)

	_, err = New(Options{BaseURL: "http://api.test", ErrorMessageExpr: "detail ||"})
	require.Error(t, err)
}

func TestClient_AttachesBearerToken(t *testing.T) {
	var gotAuth, gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "p1"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, &tokenStub{tokens: []string{"tok-1"}}, nil)
	var out struct{ ID string }
	require.NoError(t, c.Get(context.Background(), "/patients/p1", url.Values{"expand": {"visits"}}, &out))

	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, "/api/patients/p1", gotPath)
	assert.Equal(t, "expand=visits", gotQuery)
	assert.Equal(t, "p1", out.ID)
}

func TestClient_TokenPollIsBoundedAndRequestStillSent(t *testing.T) {
	var requests atomic.Int32
	var sawAuth atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("Authorization") != "" {
			sawAuth.Store(true)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tokens := &tokenStub{}
	c := newTestClient(t, srv, tokens, nil)

	start := time.Now()
	require.NoError(t, c.Get(context.Background(), "/visits", nil, nil))

	assert.Equal(t, 10, tokens.Calls())
	assert.Equal(t, int32(1), requests.Load())
	assert.False(t, sawAuth.Load())
	assert.GreaterOrEqual(t, time.Since(start), 9*5*time.Millisecond)
}

func TestClient_TokenArrivesDuringPoll(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	tokens := &tokenStub{tokens: []string{"", "", "late"}}
	c := newTestClient(t, srv, tokens, nil)
	require.NoError(t, c.Get(context.Background(), "/visits", nil, nil))

	assert.Equal(t, 3, tokens.Calls())
	assert.Equal(t, "Bearer late", gotAuth)
}

func TestClient_UnauthorizedInvokesFailureHandlerAndReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Token expired"}`))
	}))
	defer srv.Close()

	failures := &failureLog{}
	c := newTestClient(t, srv, &tokenStub{tokens: []string{"tok"}}, failures)

	err := c.Get(context.Background(), "/patients", nil, nil)
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Unauthorized", apiErr.Status)
	assert.Equal(t, "Token expired", apiErr.Message)

	require.Len(t, failures.errs, 1)
	assert.Same(t, apiErr, failures.errs[0])
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestClient_UnauthorizedAfterCallerCancelsStillReported(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		// The browser goes away right after the API answered.
		defer cancel()
		return &http.Response{
			StatusCode: http.StatusUnauthorized,
			Status:     "401 Unauthorized",
			Header:     http.Header{"Content-Type": {"application/json"}},
			Body:       io.NopCloser(strings.NewReader(`{"detail":"Token expired"}`)),
			Request:    r,
		}, nil
	})
	failures := &failureLog{}
	c, err := New(Options{
		BaseURL:    "http://api.ward.test",
		Tokens:     &tokenStub{tokens: []string{"tok"}},
		OnFailure:  failures,
		HTTPClient: &http.Client{Transport: transport},
	})
	require.NoError(t, err)

	err = c.Get(ctx, "/patients", nil, nil)
	require.True(t, IsUnauthorized(err))
	require.Error(t, ctx.Err())
	require.Len(t, failures.errs, 1)
	assert.True(t, IsUnauthorized(failures.errs[0]))
}

func TestClient_DefaultTimeout(t *testing.T) {
	c, err := New(Options{BaseURL: "http://api.ward.test"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, c.http.Timeout)
	assert.Equal(t, 15*time.Second, DefaultTimeout)
}

func TestMessageExtractor(t *testing.T) {
	m, err := newMessageExtractor("error.reason")
	require.NoError(t, err)
	require.NotNil(t, m.query)
	assert.Equal(t, "expired", m.extract([]byte(`{"error":{"reason":"expired"}}`)))
	assert.Equal(t, `{"detail":"x"}`, m.extract([]byte(`{"detail":"x"}`)))

	_, err = newMessageExtractor("detail ||")
	require.Error(t, err)
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	// "é" is two bytes; an odd prefix length puts the cap inside a rune.
	long := "x" + strings.Repeat("é", maxMessageLen)
	got := truncate(long)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.LessOrEqual(t, len(strings.TrimSuffix(got, "…")), maxMessageLen)
	assert.Equal(t, maxMessageLen-1, len(strings.TrimSuffix(got, "…")))

	short := "Paciente no encontrado"
	assert.Equal(t, short, truncate(short))
}

func TestClient_ErrorMessages(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "detail field", status: 400, body: `{"detail":"dni already registered"}`, want: "dni already registered"},
		{name: "message field", status: 409, body: `{"message":"conflict"}`, want: "conflict"},
		{name: "validation list", status: 422, body: `{"detail":[{"msg":"field required"},{"msg":"too short"}]}`, want: "field required; too short"},
		{name: "plain text", status: 500, body: "upstream exploded", want: "upstream exploded"},
		{name: "json without known fields", status: 403, body: `{"code":7}`, want: `{"code":7}`},
		{name: "empty", status: 503, body: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := newTestClient(t, srv, &tokenStub{tokens: []string{"tok"}}, nil)
			err := c.Post(context.Background(), "/patients", map[string]string{"dni": "1"}, nil)

			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.want, apiErr.Message)
			assert.Equal(t, http.StatusText(tt.status), apiErr.Status)
		})
	}
}

func TestClient_SendsJSONBody(t *testing.T) {
	var got map[string]any
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, &tokenStub{tokens: []string{"tok"}}, nil)
	var out map[string]any
	require.NoError(t, c.Put(context.Background(), "/visits/3", map[string]int{"triage_level": 2}, &out))
	assert.Equal(t, "application/json", contentType)
	assert.InDelta(t, 2, got["triage_level"], 0)
	assert.Nil(t, out, "empty 2xx body leaves out untouched")
}

func TestClient_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	failures := &failureLog{}
	c := newTestClient(t, srv, &tokenStub{tokens: []string{"tok"}}, failures)
	srv.Close()

	err := c.Delete(context.Background(), "/exams/1")
	require.Error(t, err)
	assert.Zero(t, StatusCode(err))
	assert.Len(t, failures.errs, 1)
	assert.True(t, apperrors.GetCode(Classify(err)) == apperrors.ErrCodeUnavailable)
}

func TestClient_RejectsAbsolutePath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("request should not be sent")
	}))
	defer srv.Close()

	c := newTestClient(t, srv, &tokenStub{tokens: []string{"tok"}}, nil)
	err := c.Get(context.Background(), "http://evil.test/steal", nil, nil)
	require.Error(t, err)
}

func TestAwaitToken_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := AwaitToken(ctx, &tokenStub{}, TokenPoll{Attempts: 10, Interval: time.Second})
	require.ErrorIs(t, err, context.Canceled)
}

func TestAwaitToken_StopsAtFirstToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockTokenSource(ctrl)
	gomock.InOrder(
		src.EXPECT().CurrentToken(gomock.Any()).Return("", ports.ErrNoIdentity).Times(2),
		src.EXPECT().CurrentToken(gomock.Any()).Return("", nil),
		src.EXPECT().CurrentToken(gomock.Any()).Return("tok-late", nil),
	)

	tok, err := AwaitToken(context.Background(), src, TokenPoll{Attempts: 10, Interval: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, "tok-late", tok)
}

func TestAwaitToken_Exhausted(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockTokenSource(ctrl)
	src.EXPECT().CurrentToken(gomock.Any()).Return("", ports.ErrNoIdentity).Times(3)

	_, err := AwaitToken(context.Background(), src, TokenPoll{Attempts: 3, Interval: time.Millisecond})
	require.ErrorIs(t, err, ErrAuthTokenUnavailable)
}

func TestAwaitToken_NilSource(t *testing.T) {
	_, err := AwaitToken(context.Background(), nil, TokenPoll{})
	require.ErrorIs(t, err, ErrAuthTokenUnavailable)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		code   apperrors.ErrorCode
	}{
		{http.StatusUnauthorized, apperrors.ErrCodeUnauthorized},
		{http.StatusForbidden, apperrors.ErrCodeForbidden},
		{http.StatusNotFound, apperrors.ErrCodeNotFound},
		{http.StatusConflict, apperrors.ErrCodeConflict},
		{http.StatusUnprocessableEntity, apperrors.ErrCodeValidation},
		{http.StatusGatewayTimeout, apperrors.ErrCodeTimeout},
		{http.StatusBadGateway, apperrors.ErrCodeUpstream},
		{http.StatusTeapot, apperrors.ErrCodeInternal},
	}
	for _, tt := range tests {
		err := Classify(&Error{StatusCode: tt.status, Status: http.StatusText(tt.status)})
		assert.Equal(t, tt.code, apperrors.GetCode(err), "status %d", tt.status)
		assert.Equal(t, tt.status, StatusCode(err))
	}
	assert.NoError(t, Classify(nil))

	already := apperrors.Validation("bad")
	assert.Same(t, already, Classify(already))
	assert.False(t, errors.Is(Classify(errors.New("x")), ErrAuthTokenUnavailable))
}
