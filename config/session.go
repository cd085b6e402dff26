package config

import "time"

// SessionConfig controls the per-visitor session lifecycle.
type SessionConfig struct {
	// SettleDelay holds Resolving after a profile fetch completes.
	SettleDelay time.Duration `env:"SESSION_SETTLE_DELAY" envDefault:"500ms"`

	// GuardWait is the longest a guarded request blocks on resolution.
	GuardWait time.Duration `env:"SESSION_GUARD_WAIT" envDefault:"5s"`

	// IdleTTL closes visitors that have not made a request for this long.
	IdleTTL time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`

	// NoticeDuration is how long a transient notice stays visible.
	NoticeDuration time.Duration `env:"SESSION_NOTICE_DURATION" envDefault:"3s"`

	// SweepInterval is how often idle visitors are swept.
	SweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1m"`

	// FetchTimeout bounds a single profile fetch.
	FetchTimeout time.Duration `env:"SESSION_FETCH_TIMEOUT" envDefault:"10s"`
}

// Sanitize applies guardrails to session timings.
func (c *SessionConfig) Sanitize() {
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	if c.GuardWait <= 0 {
		c.GuardWait = 5 * time.Second
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 30 * time.Minute
	}
	if c.NoticeDuration <= 0 {
		c.NoticeDuration = 3 * time.Second
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
}
