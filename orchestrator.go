package sessionkit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kadvik/sessionkit/identity"
	"github.com/kadvik/sessionkit/internal/guard"
	"github.com/kadvik/sessionkit/monitor"
	"github.com/kadvik/sessionkit/securestore"
)

// Persistent store keys. Stable contract: renaming any of these requires an
// envelope format version bump, because existing installs would otherwise
// silently lose their sessions.
const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
)

// opFamilyAuth is the guard family shared by Login, CheckSession, and
// ExtendSession: the three operations that must never interleave.
const opFamilyAuth = "auth"

// IdentityClient is the orchestrator's view of the identity service.
// *identity.Client satisfies it; tests substitute stubs.
type IdentityClient interface {
	Login(ctx context.Context, req identity.LoginRequest) (*identity.LoginResponse, error)
	Me(ctx context.Context, accessToken string) (*identity.User, error)
	Refresh(ctx context.Context, refreshToken string) (*identity.TokenPair, error)
	Logout(ctx context.Context, accessToken string) error
}

// Orchestrator is the top-level session state machine. It owns the
// authenticated-user snapshot, drives login/logout/check-session flows, and
// composes the secure store for persistence with the monitor for expiry
// tracking. Methods are safe for concurrent use after Build.
type Orchestrator struct {
	config   Config
	store    *securestore.Store
	monitor  *monitor.Monitor
	identity IdentityClient
	guard    *guard.Guard
	audit    *auditDispatcher
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
	clientID string
	ready    atomic.Bool

	mu    sync.Mutex
	phase Phase
	user  *User
}

// State returns a detached snapshot of the current session state.
func (o *Orchestrator) State() SessionState {
	o.mu.Lock()
	phase := o.phase
	var user *User
	if o.user != nil {
		copied := *o.user
		user = &copied
	}
	o.mu.Unlock()

	return SessionState{
		Phase:            phase,
		User:             user,
		SecondsRemaining: o.monitor.SecondsRemaining(),
		WarningActive:    o.monitor.WarningActive(),
	}
}

// Binding returns the presentation boundary consumed by the UI layer.
func (o *Orchestrator) Binding() Binding {
	return Binding{
		SecondsRemaining: o.monitor.SecondsRemaining,
		WarningActive:    o.monitor.WarningActive,
		Extend:           o.ExtendSession,
		SignOut:          o.Logout,
	}
}

// Close stops expiry polling and flushes the audit pipeline. The
// orchestrator is unusable afterwards. Close does not purge persisted
// credentials; an app shutdown is not a sign-out.
func (o *Orchestrator) Close() {
	if o == nil {
		return
	}
	o.ready.Store(false)
	if o.monitor != nil {
		o.monitor.Stop()
	}
	if o.audit != nil {
		o.audit.Close()
	}
}

// MetricsSnapshot copies the lifecycle counters.
func (o *Orchestrator) MetricsSnapshot() MetricsSnapshot {
	if o == nil || o.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return o.metrics.Snapshot()
}

// AuditDropped reports how many audit events were shed by a full buffer.
func (o *Orchestrator) AuditDropped() uint64 {
	if o == nil || o.audit == nil {
		return 0
	}
	return o.audit.Dropped()
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
}

func (o *Orchestrator) emit(ctx context.Context, event AuditEvent) {
	if o.audit == nil {
		return
	}
	event.Timestamp = o.now()
	event.ClientID = o.clientID
	o.audit.Emit(ctx, event)
}

// handleWarning is the monitor's OnWarning callback. The phase does not
// change; the warning is a purely observable flag surfaced through Binding.
func (o *Orchestrator) handleWarning() {
	o.metrics.Inc(MetricWarningFired)
	o.emit(context.Background(), AuditEvent{
		EventType: AuditSessionWarning,
		Success:   true,
	})
}

// handleExpired is the monitor's OnExpired callback. Expiry is deterministic
// and immediate — no grace period — and routes through the same logout path
// as a manual sign-out so persisted credentials are purged either way.
func (o *Orchestrator) handleExpired() {
	o.metrics.Inc(MetricSessionExpired)
	o.emit(context.Background(), AuditEvent{
		EventType: AuditSessionExpired,
		Success:   true,
	})
	o.logout(context.Background(), "expired")
}

// credSource adapts the secure store to the monitor's credential view. The
// monitor re-reads through it every tick, so a renewal persisted moments ago
// is always observed.
type credSource struct {
	o *Orchestrator
}

func (c credSource) AccessToken(ctx context.Context) (string, bool) {
	var raw string
	found, err := c.o.store.Get(ctx, KeyAccessToken, &raw)
	if err != nil || !found {
		return "", false
	}
	return raw, true
}

func (c credSource) RefreshToken(ctx context.Context) (string, bool) {
	var raw string
	found, err := c.o.store.Get(ctx, KeyRefreshToken, &raw)
	if err != nil || !found {
		return "", false
	}
	return raw, true
}

func (c credSource) StoreTokens(ctx context.Context, accessToken, refreshToken string) error {
	errAccess := c.o.store.Put(ctx, KeyAccessToken, accessToken)
	errRefresh := c.o.store.Put(ctx, KeyRefreshToken, refreshToken)
	if errAccess != nil || errRefresh != nil {
		c.o.metrics.Inc(MetricStoragePutFailure)
	}
	return errors.Join(errAccess, errRefresh)
}

// tokenExchanger adapts the identity client to the monitor's renewal hook.
type tokenExchanger struct {
	client IdentityClient
}

func (e tokenExchanger) Exchange(ctx context.Context, refreshToken string) (string, string, error) {
	pair, err := e.client.Refresh(ctx, refreshToken)
	if err != nil {
		return "", "", err
	}
	return pair.AccessToken, pair.RefreshToken, nil
}
