package visitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/target/ward-console/internal/apiclient"
	apperrors "github.com/target/ward-console/internal/errors"
	"github.com/target/ward-console/internal/observability/metrics"
	"github.com/target/ward-console/internal/ports"
	"github.com/target/ward-console/internal/service"
	"github.com/target/ward-console/internal/session"
)

// ErrUnknownVisitor is returned when an operation names a visitor that is not in memory.
var ErrUnknownVisitor = errors.New("unknown visitor")

// Config carries the per-visitor settings applied to every new Context.
type Config struct {
	APIBaseURL       string
	ProfilePath      string
	ErrorMessageExpr string
	TokenPoll        apiclient.TokenPoll
	SettleDelay      time.Duration
	FetchTimeout     time.Duration
	NoticeDuration   time.Duration
	LogoutNotice     string
	LoginPath        string
}

// RegistryOptions groups dependencies for Registry.
type RegistryOptions struct {
	Connector   ports.IdentityConnector // Required
	Credentials ports.CredentialStore   // Optional: visitors live only in memory without it
	Config      Config
	HTTPClient  *http.Client
	Metrics     metrics.Recorder
	Logger      *slog.Logger
}

// Registry maps visitor ids to their Context.
type Registry struct {
	connector ports.IdentityConnector
	creds     ports.CredentialStore
	cfg       Config
	http      *http.Client
	metrics   metrics.Recorder
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.RWMutex
	visitors map[string]*Context
	closed   bool

	group singleflight.Group
}

// NewRegistry constructs a Registry.
func NewRegistry(opts RegistryOptions) (*Registry, error) {
	if opts.Connector == nil {
		return nil, errors.New("IdentityConnector is required")
	}
	// Fail fast on a bad base URL or message expression instead of on first visit.
	if _, err := apiclient.New(apiclient.Options{
		BaseURL:          opts.Config.APIBaseURL,
		ErrorMessageExpr: opts.Config.ErrorMessageExpr,
	}); err != nil {
		return nil, fmt.Errorf("api client: %w", err)
	}
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		connector: opts.Connector,
		creds:     opts.Credentials,
		cfg:       opts.Config,
		http:      opts.HTTPClient,
		metrics:   rec,
		logger:    logger.With("component", "visitor_registry"),
		now:       time.Now,
		visitors:  make(map[string]*Context),
	}, nil
}

// Resolve returns the Context for id. An id that is neither in memory nor backed
// by a stored credential is never adopted: the caller gets a brand-new visitor
// under a freshly minted id, and so does an empty or malformed id.
func (r *Registry) Resolve(ctx context.Context, id string) (*Context, error) {
	if _, err := uuid.Parse(id); err != nil {
		id = ""
	}
	if vc, ok := r.lookup(id); ok {
		vc.Touch(r.now())
		return vc, nil
	}

	var (
		v   any
		err error
	)
	if id == "" {
		v, err = r.open(ctx, "")
	} else {
		v, err, _ = r.group.Do(id, func() (any, error) {
			if vc, ok := r.lookup(id); ok {
				return vc, nil
			}
			return r.open(ctx, id)
		})
	}
	if err != nil {
		return nil, err
	}
	vc, _ := v.(*Context)
	vc.Touch(r.now())
	return vc, nil
}

// Rotate moves the Context registered under id to a freshly minted id and
// re-files its stored credential. Callers rotate after a successful sign-in so
// an id known before authentication never names an authenticated visitor.
func (r *Registry) Rotate(ctx context.Context, id string) (*Context, error) {
	newID := uuid.NewString()

	r.mu.Lock()
	vc, ok := r.visitors[id]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("rotate visitor %s: %w", id, ErrUnknownVisitor)
	}
	delete(r.visitors, id)
	r.visitors[newID] = vc
	vc.setID(newID)
	r.mu.Unlock()

	vc.moveCredential(id)
	vc.Touch(r.now())
	r.logger.DebugContext(ctx, "visitor id rotated", "visitor_id", newID)
	return vc, nil
}

// Lookup returns an in-memory Context without restoring.
func (r *Registry) Lookup(id string) (*Context, bool) { return r.lookup(id) }

func (r *Registry) lookup(id string) (*Context, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	vc, ok := r.visitors[id]
	return vc, ok
}

// open restores the visitor behind id from the credential store, or builds a
// new visitor under a minted id when there is nothing to restore.
func (r *Registry) open(ctx context.Context, id string) (*Context, error) {
	var restore *ports.StoredCredential
	if id != "" {
		restore = r.storedCredential(ctx, id)
	}
	if restore == nil {
		id = uuid.NewString()
	}

	vc, err := r.build(id, restore)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		vc.Close()
		return nil, errors.New("visitor registry closed")
	}
	r.visitors[id] = vc
	n := len(r.visitors)
	r.mu.Unlock()

	r.metrics.VisitorsActive(n)
	r.logger.DebugContext(ctx, "visitor context opened", "visitor_id", id, "restored", restore != nil)
	return vc, nil
}

// storedCredential loads a credential for id. Lookup failures degrade to a fresh visitor.
func (r *Registry) storedCredential(ctx context.Context, id string) *ports.StoredCredential {
	if r.creds == nil {
		return nil
	}
	cred, err := r.creds.Get(ctx, id)
	if err != nil {
		if !apperrors.IsNotFound(err) {
			r.logger.WarnContext(ctx, "load visitor credential failed", "visitor_id", id, "error", err)
		}
		return nil
	}
	return &cred
}

// build wires one visitor's collaborators in dependency order.
func (r *Registry) build(id string, restore *ports.StoredCredential) (*Context, error) {
	logger := r.logger.With("visitor_id", id)
	outbox := NewOutbox(r.cfg.NoticeDuration)
	conn := r.connector.Connect(restore)

	logout := service.NewForcedLogout(service.ForcedLogoutOptions{
		Provider: conn,
		Outbox:   outbox,
		Config: service.ForcedLogoutConfig{
			Notice:    r.cfg.LogoutNotice,
			LoginPath: r.cfg.LoginPath,
			Metrics:   r.metrics,
			Logger:    logger,
		},
	})
	client, err := apiclient.New(apiclient.Options{
		BaseURL:          r.cfg.APIBaseURL,
		Tokens:           conn,
		OnFailure:        logout,
		HTTPClient:       r.http,
		Metrics:          r.metrics,
		Logger:           logger,
		TokenPoll:        r.cfg.TokenPoll,
		ErrorMessageExpr: r.cfg.ErrorMessageExpr,
	})
	if err != nil {
		return nil, fmt.Errorf("api client: %w", err)
	}

	store := session.NewStore(session.Options{
		Profiles:     service.NewProfileService(service.ProfileServiceOptions{API: client, Path: r.cfg.ProfilePath}),
		SettleDelay:  r.cfg.SettleDelay,
		FetchTimeout: r.cfg.FetchTimeout,
		Metrics:      r.metrics,
		Logger:       logger,
	})

	vc := &Context{
		id:           id,
		Provider:     conn,
		Session:      store,
		Client:       client,
		Logout:       logout,
		Outbox:       outbox,
		Patients:     service.NewPatientService(service.PatientServiceOptions{API: client}),
		Visits:       service.NewVisitService(service.VisitServiceOptions{API: client}),
		Exams:        service.NewExamService(service.ExamServiceOptions{API: client}),
		Certificates: service.NewCertificateService(service.CertificateServiceOptions{API: client}),
		creds:        r.creds,
		logger:       logger,
		persisted:    restore != nil,
	}
	vc.Touch(r.now())
	vc.unsub = conn.Subscribe(vc.persist)
	store.Bind(conn)
	return vc, nil
}

// Remove closes and forgets the Context for id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	vc, ok := r.visitors[id]
	delete(r.visitors, id)
	n := len(r.visitors)
	r.mu.Unlock()
	if !ok {
		return
	}
	vc.Close()
	r.metrics.VisitorsActive(n)
}

// Sweep closes every Context idle for longer than ttl and returns how many it closed.
func (r *Registry) Sweep(ttl time.Duration) int {
	cutoff := r.now().Add(-ttl)

	r.mu.Lock()
	var idle []*Context
	for id, vc := range r.visitors {
		if vc.LastSeen().Before(cutoff) {
			idle = append(idle, vc)
			delete(r.visitors, id)
		}
	}
	n := len(r.visitors)
	r.mu.Unlock()

	for _, vc := range idle {
		vc.Close()
	}
	r.metrics.VisitorsActive(n)
	return len(idle)
}

// Len reports the number of in-memory visitors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.visitors)
}

// Close closes every Context. Resolve fails afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	all := make([]*Context, 0, len(r.visitors))
	for _, vc := range r.visitors {
		all = append(all, vc)
	}
	r.visitors = make(map[string]*Context)
	r.mu.Unlock()

	for _, vc := range all {
		vc.Close()
	}
	r.metrics.VisitorsActive(0)
}
