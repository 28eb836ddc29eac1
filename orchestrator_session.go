package sessionkit

import (
	"context"
	"errors"
	"fmt"

	"github.com/kadvik/sessionkit/identity"
	"github.com/kadvik/sessionkit/monitor"
)

// CheckSession restores a session from persisted credentials at startup.
// It never fails the caller: a missing pair, a corrupt envelope, or a
// rejected validation all degrade silently to the unauthenticated phase.
// The one non-nil return is lifecycle-level (not ready, guard rejection).
func (o *Orchestrator) CheckSession(ctx context.Context) error {
	if o == nil || !o.ready.Load() {
		return ErrNotReady
	}
	if !o.guard.Acquire(opFamilyAuth) {
		o.metrics.Inc(MetricOperationRejected)
		return ErrOperationInFlight
	}
	defer o.guard.Release(opFamilyAuth)

	o.setPhase(PhaseAuthenticating)

	var access string
	found, err := o.store.Get(ctx, KeyAccessToken, &access)
	if err != nil || !found {
		o.setPhase(PhaseUnauthenticated)
		o.metrics.Inc(MetricCheckSessionMiss)
		return nil
	}

	user, err := o.identity.Me(ctx, access)
	if err != nil {
		var apiErr *identity.APIError
		if errors.As(err, &apiErr) {
			// The service rejected the stored token; keeping it would just
			// replay the same failure on every start.
			o.purge(ctx)
		}
		// A transport failure keeps the pair for the next attempt.
		o.logger.Warn("stored session validation failed", "error", err)
		o.setPhase(PhaseUnauthenticated)
		o.metrics.Inc(MetricCheckSessionMiss)
		return nil
	}

	if err := o.store.Put(ctx, KeyUser, user); err != nil {
		o.metrics.Inc(MetricStoragePutFailure)
	}

	o.mu.Lock()
	o.user = user
	o.phase = PhaseAuthenticated
	o.mu.Unlock()

	o.monitor.Start()

	o.metrics.Inc(MetricCheckSessionHit)
	o.emit(ctx, AuditEvent{
		EventType: AuditSessionRestore,
		UserID:    user.ID,
		TenantID:  user.TenantID,
		Success:   true,
	})

	return nil
}

// ExtendSession exchanges the refresh credential for a fresh pair, clearing
// the expiry warning. A rejected exchange (consumed, expired, or revoked
// refresh token) escalates to a full sign-out and returns ErrRefreshRejected;
// a transient failure (transport error or a 5xx from the service) leaves the
// session untouched and returns ErrNetworkFailure so the caller can retry.
func (o *Orchestrator) ExtendSession(ctx context.Context) error {
	if o == nil || !o.ready.Load() {
		return ErrNotReady
	}
	if !o.guard.Acquire(opFamilyAuth) {
		o.metrics.Inc(MetricOperationRejected)
		return ErrOperationInFlight
	}
	defer o.guard.Release(opFamilyAuth)

	o.mu.Lock()
	if o.phase != PhaseAuthenticated {
		o.mu.Unlock()
		return ErrNoSession
	}
	o.phase = PhaseRenewing
	o.mu.Unlock()

	err := o.monitor.Renew(ctx)
	if err == nil {
		o.setPhase(PhaseAuthenticated)
		o.metrics.Inc(MetricRenewSuccess)
		o.emit(ctx, AuditEvent{EventType: AuditSessionRenewed, Success: true})
		return nil
	}

	o.metrics.Inc(MetricRenewFailure)
	o.emit(ctx, AuditEvent{
		EventType: AuditSessionRenewed,
		Success:   false,
		Error:     err.Error(),
	})

	// Only a definitive service-side rejection (4xx, or no refresh credential
	// to exchange) kills the session. A 5xx is the service having a bad
	// moment, same as a transport failure: keep the pair and let the caller
	// retry.
	var apiErr *identity.APIError
	rejected := (errors.As(err, &apiErr) && apiErr.Status < 500) ||
		errors.Is(err, monitor.ErrNoRefreshCredential)
	if !rejected {
		o.setPhase(PhaseAuthenticated)
		return fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}

	o.logout(ctx, "renewal rejected")
	return fmt.Errorf("%w: %v", ErrRefreshRejected, err)
}

// Logout signs out from any state: best-effort server notification,
// unconditional purge of all persisted credential keys, monitor shutdown,
// and reset to the unauthenticated phase, ready to restart.
func (o *Orchestrator) Logout(ctx context.Context) error {
	if o == nil || !o.ready.Load() {
		return ErrNotReady
	}
	o.logout(ctx, "manual")
	return nil
}

// RefreshUserProfile re-fetches the profile and replaces the snapshot
// wholesale. Used after any server-side mutation of the user's own record.
func (o *Orchestrator) RefreshUserProfile(ctx context.Context) (*User, error) {
	if o == nil || !o.ready.Load() {
		return nil, ErrNotReady
	}

	o.mu.Lock()
	authenticated := o.phase == PhaseAuthenticated
	o.mu.Unlock()
	if !authenticated {
		return nil, ErrNoSession
	}

	var access string
	found, err := o.store.Get(ctx, KeyAccessToken, &access)
	if err != nil || !found {
		return nil, ErrNoSession
	}

	user, err := o.identity.Me(ctx, access)
	if err != nil {
		var apiErr *identity.APIError
		if errors.As(err, &apiErr) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}

	if err := o.store.Put(ctx, KeyUser, user); err != nil {
		o.metrics.Inc(MetricStoragePutFailure)
	}

	o.mu.Lock()
	o.user = user
	o.mu.Unlock()

	return user, nil
}

// logout is the shared teardown used by manual sign-out, forced expiry, and
// rejected renewals. It is deliberately unguarded: the renewal path calls it
// while still holding the auth family.
func (o *Orchestrator) logout(ctx context.Context, cause string) {
	var access string
	if found, _ := o.store.Get(ctx, KeyAccessToken, &access); found {
		if err := o.identity.Logout(ctx, access); err != nil {
			o.logger.Debug("identity logout notification failed", "error", err)
		}
	}

	o.purge(ctx)
	o.monitor.Stop()

	o.mu.Lock()
	var userID, tenantID string
	if o.user != nil {
		userID, tenantID = o.user.ID, o.user.TenantID
	}
	o.user = nil
	o.phase = PhaseUnauthenticated
	o.mu.Unlock()

	o.metrics.Inc(MetricLogout)
	o.emit(ctx, AuditEvent{
		EventType: AuditLogout,
		UserID:    userID,
		TenantID:  tenantID,
		Success:   true,
		Metadata:  map[string]string{"cause": cause},
	})
}

func (o *Orchestrator) purge(ctx context.Context) {
	if err := o.store.RemoveMany(ctx, KeyAccessToken, KeyRefreshToken, KeyUser); err != nil {
		o.logger.Warn("credential purge failed", "error", err)
	}
}
