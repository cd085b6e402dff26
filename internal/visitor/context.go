// Package visitor owns the per-browser application context.
//
// Each visitor gets its own identity provider connection, session store,
// request client and forced-logout procedure. Nothing is shared between
// visitors except the process-wide collaborators handed to the Registry.
package visitor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/target/ward-console/internal/apiclient"
	domainauth "github.com/target/ward-console/internal/domain/auth"
	"github.com/target/ward-console/internal/ports"
	"github.com/target/ward-console/internal/service"
	"github.com/target/ward-console/internal/session"
)

const persistTimeout = 3 * time.Second

// Context is one visitor's explicit application context.
type Context struct {
	Provider ports.IdentityProvider
	Session  *session.Store
	Client   *apiclient.Client
	Logout   *service.ForcedLogout
	Outbox   *Outbox

	Patients     *service.PatientService
	Visits       *service.VisitService
	Exams        *service.ExamService
	Certificates *service.CertificateService

	creds  ports.CredentialStore
	logger *slog.Logger

	idMu sync.RWMutex
	id   string

	lastSeen  atomic.Int64
	persistMu sync.Mutex
	persisted bool
	unsub     func()
	closeOnce sync.Once
}

// ID returns the visitor id the browser presents in its cookie.
// It changes when the Registry rotates the context after a sign-in.
func (c *Context) ID() string {
	c.idMu.RLock()
	defer c.idMu.RUnlock()
	return c.id
}

func (c *Context) setID(id string) {
	c.idMu.Lock()
	c.id = id
	c.idMu.Unlock()
}

// Touch records activity at now.
func (c *Context) Touch(now time.Time) { c.lastSeen.Store(now.UnixNano()) }

// LastSeen returns the last recorded activity.
func (c *Context) LastSeen() time.Time { return time.Unix(0, c.lastSeen.Load()) }

// Snapshot is shorthand for the current Session.
func (c *Context) Snapshot() domainauth.Session { return c.Session.Snapshot() }

// Close stops the session store and detaches the credential persister.
// The stored credential is kept so a returning visitor is restored.
func (c *Context) Close() {
	c.closeOnce.Do(func() {
		if c.unsub != nil {
			c.unsub()
		}
		c.Session.Close()
	})
}

// persist mirrors identity changes into the credential store.
func (c *Context) persist(ev domainauth.IdentityEvent) {
	if c.creds == nil {
		return
	}
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if !ev.Present() {
		if !c.persisted {
			return
		}
		id := c.ID()
		if err := c.creds.Delete(ctx, id); err != nil {
			c.logger.WarnContext(ctx, "delete visitor credential failed", "visitor_id", id, "error", err)
			return
		}
		c.persisted = false
		return
	}

	cred, ok := c.Provider.Credential()
	if !ok {
		return
	}
	cred.VisitorID = c.ID()
	if err := c.creds.Save(ctx, cred); err != nil {
		c.logger.WarnContext(ctx, "save visitor credential failed", "visitor_id", cred.VisitorID, "error", err)
		return
	}
	c.persisted = true
}

// moveCredential re-files a persisted credential from oldID under the current id.
func (c *Context) moveCredential(oldID string) {
	if c.creds == nil {
		return
	}
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if !c.persisted {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if cred, ok := c.Provider.Credential(); ok {
		cred.VisitorID = c.ID()
		if err := c.creds.Save(ctx, cred); err != nil {
			c.logger.WarnContext(ctx, "save rotated visitor credential failed", "visitor_id", cred.VisitorID, "error", err)
			return
		}
	}
	if err := c.creds.Delete(ctx, oldID); err != nil {
		c.logger.WarnContext(ctx, "delete pre-rotation visitor credential failed", "visitor_id", oldID, "error", err)
	}
}
