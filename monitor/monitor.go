// Package monitor tracks the remaining validity window of the active access
// token and raises warning and expiry callbacks at the right moments.
//
// Expiry is derived purely from the token's embedded exp claim, so the
// countdown works offline and costs the identity service nothing while the
// session is healthy. Renew is the only operation that touches the network.
//
// The monitor has no upward dependency on its owner: warning and expiry are
// injected callbacks, and credentials come from a [CredentialSource] that is
// re-read on every poll tick so a renewal landing mid-tick is always
// observed against the freshest claim.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kadvik/sessionkit/token"
)

// DefaultPollInterval is the tick cadence when Config.PollInterval is zero.
const DefaultPollInterval = 10 * time.Second

// DefaultWarningLeadTime is the pre-expiry warning window when
// Config.WarningLeadTime is zero.
const DefaultWarningLeadTime = 5 * time.Minute

// ErrNoRefreshCredential is returned by Renew when no refresh token is
// available to exchange.
var ErrNoRefreshCredential = errors.New("no refresh credential available")

// CredentialSource supplies the freshest persisted token pair and accepts
// the replacement pair after a renewal.
type CredentialSource interface {
	AccessToken(ctx context.Context) (string, bool)
	RefreshToken(ctx context.Context) (string, bool)
	StoreTokens(ctx context.Context, accessToken, refreshToken string) error
}

// Exchanger trades a refresh credential for a fresh access/refresh pair.
type Exchanger interface {
	Exchange(ctx context.Context, refreshToken string) (access, refresh string, err error)
}

// Config tunes one Monitor instance.
type Config struct {
	PollInterval    time.Duration
	WarningLeadTime time.Duration

	// OnWarning fires exactly once per token instance when the remaining
	// window drops to WarningLeadTime or below. May be nil.
	OnWarning func()

	// OnExpired fires exactly once when the window reaches zero, after
	// which polling stops. A token whose expiry claim cannot be parsed is
	// treated as already expired. May be nil.
	OnExpired func()

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time

	Logger *slog.Logger
}

// Monitor polls the stored access token's expiry claim. The fire-once state
// lives on the monitor itself (warningTriggered, tokenID) rather than in
// timer closures, so reset semantics across renewals are auditable.
type Monitor struct {
	cfg      Config
	creds    CredentialSource
	exchange Exchanger
	now      func() time.Time
	logger   *slog.Logger

	secondsRemaining atomic.Int64
	warningActive    atomic.Bool

	mu               sync.Mutex
	running          bool
	stopCh           chan struct{}
	tokenID          string
	warningTriggered bool
	expiredFired     bool
}

// New builds a stopped Monitor; call Start to begin polling.
func New(creds CredentialSource, exchange Exchanger, cfg Config) (*Monitor, error) {
	if creds == nil {
		return nil, errors.New("monitor: nil credential source")
	}
	if exchange == nil {
		return nil, errors.New("monitor: nil exchanger")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.WarningLeadTime <= 0 {
		cfg.WarningLeadTime = DefaultWarningLeadTime
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		cfg:      cfg,
		creds:    creds,
		exchange: exchange,
		now:      now,
		logger:   logger,
	}, nil
}

// Start begins polling. Calling Start on a running monitor is a no-op. The
// first tick runs immediately, so an already-expired token fires OnExpired
// without waiting a full interval.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	stop := make(chan struct{})
	m.stopCh = stop
	m.mu.Unlock()

	go m.loop(stop)
}

// Stop cancels polling and clears the observable countdown. Idempotent. No
// new tick starts after Stop returns, but a tick already past its state
// check may still deliver its callback; Stop does not wait for it, because
// OnExpired itself is allowed to call Stop.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.running {
		m.running = false
		if m.stopCh != nil {
			close(m.stopCh)
			m.stopCh = nil
		}
	}
	m.mu.Unlock()

	m.secondsRemaining.Store(0)
	m.warningActive.Store(false)
}

// SecondsRemaining reports the last observed whole seconds until expiry,
// clamped to >= 0.
func (m *Monitor) SecondsRemaining() int64 {
	return m.secondsRemaining.Load()
}

// WarningActive reports whether the current token instance has crossed the
// warning threshold. It resets only when a new token is installed.
func (m *Monitor) WarningActive() bool {
	return m.warningActive.Load()
}

// Renew exchanges the stored refresh credential for a fresh pair, persists
// it, and resets the per-token warning state so the countdown resumes
// against the new expiry. Failures propagate to the caller untouched; the
// decision to log the user out belongs one level up.
func (m *Monitor) Renew(ctx context.Context) error {
	refresh, ok := m.creds.RefreshToken(ctx)
	if !ok {
		return ErrNoRefreshCredential
	}

	access, newRefresh, err := m.exchange.Exchange(ctx, refresh)
	if err != nil {
		return err
	}

	if err := m.creds.StoreTokens(ctx, access, newRefresh); err != nil {
		// The exchange itself succeeded and ticks re-read the store, so a
		// failed persist just leaves the countdown on the previous pair.
		m.logger.Warn("renewed credential pair not persisted", "error", err)
	}

	m.mu.Lock()
	m.tokenID = token.Identity(access)
	m.warningTriggered = false
	m.expiredFired = false
	m.mu.Unlock()
	m.warningActive.Store(false)

	// Resume polling if a prior expiry tick had stopped the loop.
	m.Start()

	return nil
}

func (m *Monitor) loop(stop chan struct{}) {
	ctx := context.Background()

	if !m.tick(ctx) {
		return
	}

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !m.tick(ctx) {
				return
			}
		}
	}
}

// tick evaluates the freshest token once. It returns false when polling
// should stop. Callbacks are invoked outside the state lock so they may
// call Stop or Renew without deadlocking.
func (m *Monitor) tick(ctx context.Context) bool {
	raw, ok := m.creds.AccessToken(ctx)

	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return false
	}

	if !ok {
		m.running = false
		m.mu.Unlock()
		m.secondsRemaining.Store(0)
		m.warningActive.Store(false)
		return false
	}

	if id := token.Identity(raw); id != m.tokenID {
		m.tokenID = id
		m.warningTriggered = false
		m.expiredFired = false
		m.warningActive.Store(false)
	}

	// Unparsable expiry stays at zero remaining: fail closed.
	var remaining time.Duration
	if exp, err := token.Expiry(raw); err == nil {
		remaining = exp.Sub(m.now())
	} else {
		m.logger.Warn("access token expiry claim unreadable", "error", err)
	}

	secs := int64(remaining / time.Second)
	if secs < 0 {
		secs = 0
	}
	m.secondsRemaining.Store(secs)

	var fire func()
	keepGoing := true

	switch {
	case remaining <= 0:
		if !m.expiredFired {
			m.expiredFired = true
			fire = m.cfg.OnExpired
		}
		m.running = false
		keepGoing = false
	case remaining <= m.cfg.WarningLeadTime && !m.warningTriggered:
		m.warningTriggered = true
		m.warningActive.Store(true)
		fire = m.cfg.OnWarning
	}
	m.mu.Unlock()

	if fire != nil {
		fire()
	}
	return keepGoing
}
