package visitor

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"
)

// Sweeper defaults.
const (
	DefaultSweepInterval = time.Minute
	DefaultIdleTTL       = 30 * time.Minute
)

// SweeperOptions groups dependencies for Sweeper.
type SweeperOptions struct {
	Registry *Registry // Required
	Interval time.Duration
	IdleTTL  time.Duration
	Logger   *slog.Logger // Optional
}

// Sweeper periodically closes idle visitor contexts.
type Sweeper struct {
	registry *Registry
	interval time.Duration
	idleTTL  time.Duration
	logger   *slog.Logger
}

// NewSweeper constructs a Sweeper.
func NewSweeper(opts SweeperOptions) (*Sweeper, error) {
	if opts.Registry == nil {
		return nil, errors.New("visitor Registry is required")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ttl := opts.IdleTTL
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		registry: opts.Registry,
		interval: interval,
		idleTTL:  ttl,
		logger:   logger.With("component", "visitor_sweeper"),
	}, nil
}

// Run sweeps at the configured interval until ctx is cancelled.
// Returns nil on graceful shutdown.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "starting visitor sweeper", "interval", s.interval, "idle_ttl", s.idleTTL)

	// Spread sweeps of instances started together.
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "visitor sweeper stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			if n := s.registry.Sweep(s.idleTTL); n > 0 {
				s.logger.InfoContext(ctx, "closed idle visitors", "count", n, "active", s.registry.Len())
			}
		}
	}
}

// waitWithJitter waits a random delay up to 10% of the interval.
func (s *Sweeper) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.interval / 10)
	if maxJitter <= 0 {
		return
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 - bounded by maxJitter

	timer := time.NewTimer(jitter)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
