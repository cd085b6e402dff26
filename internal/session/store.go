// Package session holds one visitor's reactive Session state.
//
// The Store is fed by identity-change notifications. Each present identity
// triggers a role-profile fetch tagged with the notification's generation;
// only the fetch for the most recent notification may change the state, so
// the result always reflects the last identity reported regardless of the
// order in which fetches complete.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	domainauth "github.com/target/ward-console/internal/domain/auth"
	"github.com/target/ward-console/internal/observability/metrics"
	"github.com/target/ward-console/internal/ports"
)

// Default timings.
const (
	DefaultSettleDelay  = 500 * time.Millisecond
	DefaultFetchTimeout = 10 * time.Second
)

// Options configures a Store.
type Options struct {
	Profiles ports.ProfileFetcher
	// SettleDelay is waited after a profile fetch completes and before Resolving
	// turns false. Negative disables it; zero selects DefaultSettleDelay.
	SettleDelay  time.Duration
	FetchTimeout time.Duration
	Metrics      metrics.Recorder
	Logger       *slog.Logger
}

// Store is the single mutable holder of a visitor's Session.
// Mutation happens only through HandleIdentityChange and Reset.
type Store struct {
	profiles     ports.ProfileFetcher
	settle       time.Duration
	fetchTimeout time.Duration
	metrics      metrics.Recorder
	logger       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	emitMu sync.Mutex // orders mutations with their notifications

	mu      sync.Mutex
	state   domainauth.Session
	changed chan struct{} // closed and replaced on every mutation
	subs    map[uint64]func(domainauth.Session)
	order   []uint64
	nextSub uint64
	unbind  func()
	closed  bool
}

// NewStore creates a Store in its initial state: no identity, Resolving.
func NewStore(opts Options) *Store {
	settle := opts.SettleDelay
	switch {
	case settle == 0:
		settle = DefaultSettleDelay
	case settle < 0:
		settle = 0
	}
	fetchTimeout := opts.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.Nop{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		profiles:     opts.Profiles,
		settle:       settle,
		fetchTimeout: fetchTimeout,
		metrics:      rec,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		state:        domainauth.Session{Resolving: true},
		changed:      make(chan struct{}),
		subs:         make(map[uint64]func(domainauth.Session)),
	}
}

// Bind subscribes the store to an identity feed. A store binds to at most one feed.
func (s *Store) Bind(feed ports.IdentityFeed) {
	s.mu.Lock()
	if s.closed || s.unbind != nil {
		s.mu.Unlock()
		return
	}
	// Reserve the slot before subscribing: the feed replays its last event synchronously.
	s.unbind = func() {}
	s.mu.Unlock()

	unsub := feed.Subscribe(s.HandleIdentityChange)

	s.mu.Lock()
	s.unbind = unsub
	s.mu.Unlock()
}

// HandleIdentityChange applies one identity-change notification.
func (s *Store) HandleIdentityChange(ev domainauth.IdentityEvent) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	gen := s.state.Generation + 1

	if !ev.Present() {
		s.state = domainauth.Session{Generation: gen}
		snap := s.commitLocked()
		s.mu.Unlock()
		s.notify(snap)
		return
	}

	id := *ev.Identity
	next := domainauth.Session{Identity: &id, Resolving: true, Generation: gen}
	// A repeated notification for the same principal keeps the profile it already has.
	if s.state.Identity != nil && s.state.Identity.Same(id) {
		next.Profile = s.state.Profile
	}
	s.state = next
	snap := s.commitLocked()
	s.wg.Add(1)
	s.mu.Unlock()

	go s.resolve(gen, id)
	s.notify(snap)
}

// Reset clears identity and profile and invalidates in-flight fetches.
// The resulting state is resolved: guards see an absent identity.
func (s *Store) Reset() {
	s.HandleIdentityChange(domainauth.IdentityEvent{})
}

// resolve fetches the profile for generation gen and applies it if gen is still current.
func (s *Store) resolve(gen uint64, id domainauth.Identity) {
	defer s.wg.Done()

	profile, took, err := s.fetch(id)

	if !s.apply(gen, func(st *domainauth.Session) {
		if err != nil {
			st.Profile = nil
			return
		}
		st.Profile = profile
	}) {
		s.metrics.ProfileFetch(metrics.ResultStale, took)
		s.logger.Debug("stale profile discarded", "uid", id.UID, "generation", gen)
		return
	}

	if err != nil {
		s.metrics.ProfileFetch(metrics.ResultError, took)
		s.logger.Warn("profile fetch failed", "uid", id.UID, "error", err)
	} else {
		s.metrics.ProfileFetch(metrics.ResultSuccess, took)
	}

	if s.settle > 0 {
		timer := time.NewTimer(s.settle)
		select {
		case <-timer.C:
		case <-s.ctx.Done():
			timer.Stop()
			return
		}
	}

	s.apply(gen, func(st *domainauth.Session) { st.Resolving = false })
}

func (s *Store) fetch(id domainauth.Identity) (*domainauth.RoleProfile, time.Duration, error) {
	if s.profiles == nil {
		return nil, 0, nil
	}
	ctx, cancel := context.WithTimeout(s.ctx, s.fetchTimeout)
	defer cancel()
	start := time.Now()
	profile, err := s.profiles.FetchProfile(ctx, id)
	return profile, time.Since(start), err
}

// apply mutates the state if gen is still the current generation. It reports whether it did.
func (s *Store) apply(gen uint64, mutate func(*domainauth.Session)) bool {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.closed || s.state.Generation != gen {
		s.mu.Unlock()
		return false
	}
	mutate(&s.state)
	snap := s.commitLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// commitLocked wakes waiters and returns a snapshot. Caller holds s.mu.
func (s *Store) commitLocked() domainauth.Session {
	close(s.changed)
	s.changed = make(chan struct{})
	return cloneSession(s.state)
}

// Snapshot returns a copy of the current Session.
func (s *Store) Snapshot() domainauth.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSession(s.state)
}

// WaitResolved blocks until the Session is not resolving or ctx ends.
// On ctx expiry it returns the latest snapshot with ctx's error.
func (s *Store) WaitResolved(ctx context.Context) (domainauth.Session, error) {
	for {
		s.mu.Lock()
		snap := cloneSession(s.state)
		changed := s.changed
		closed := s.closed
		s.mu.Unlock()

		if !snap.Resolving || closed {
			return snap, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// Subscribe registers fn to receive a snapshot after every change, in order.
// fn runs synchronously and must not mutate the store. The handle is idempotent.
func (s *Store) Subscribe(fn func(domainauth.Session)) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.order = append(s.order, id)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (s *Store) notify(snap domainauth.Session) {
	s.mu.Lock()
	targets := make([]func(domainauth.Session), 0, len(s.order))
	for _, id := range s.order {
		targets = append(targets, s.subs[id])
	}
	s.mu.Unlock()

	for _, fn := range targets {
		fn(cloneSession(snap))
	}
}

// Close detaches from the feed, stops pending settle timers and waits for
// in-flight fetches to return. Later notifications are ignored.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unbind := s.unbind
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()

	if unbind != nil {
		unbind()
	}
	s.cancel()
	s.wg.Wait()
}

func cloneSession(in domainauth.Session) domainauth.Session {
	out := in
	if in.Identity != nil {
		id := *in.Identity
		out.Identity = &id
	}
	if in.Profile != nil {
		p := *in.Profile
		out.Profile = &p
	}
	return out
}
