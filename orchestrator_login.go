package sessionkit

import (
	"context"
	"errors"

	"github.com/kadvik/sessionkit/identity"
)

// Login authenticates against the identity service and, on success,
// persists the credential pair, fetches the full user profile, and starts
// expiry tracking. Identity-service rejections come back inside the
// LoginResult with a structured reason; the error return is reserved for
// lifecycle problems (guard rejection, orchestrator not ready).
//
// The profile is a second round-trip on purpose: the login response's
// embedded user may be partial and is not trusted for authorization
// decisions. If that fetch fails the freshly persisted pair is rolled back
// and the login reports failure.
func (o *Orchestrator) Login(ctx context.Context, email, password, tenant string) (*LoginResult, error) {
	if o == nil || !o.ready.Load() {
		return nil, ErrNotReady
	}
	if !o.guard.Acquire(opFamilyAuth) {
		o.metrics.Inc(MetricOperationRejected)
		return nil, ErrOperationInFlight
	}
	defer o.guard.Release(opFamilyAuth)

	o.setPhase(PhaseAuthenticating)

	resp, err := o.identity.Login(ctx, identity.LoginRequest{
		Email:    email,
		Password: password,
		Tenant:   tenant,
	})
	if err != nil {
		return o.loginFailed(ctx, mapLoginFailure(err)), nil
	}

	if resp.RequiresOnboarding {
		return o.loginFailed(ctx, &LoginFailure{
			Reason:     FailureRequiresOnboarding,
			Message:    "account setup incomplete",
			RedirectTo: "/onboarding",
		}), nil
	}

	// Persist before the profile round-trip so the monitor and a reload
	// both see the pair the moment the session is declared live.
	if err := o.store.Put(ctx, KeyAccessToken, resp.AccessToken); err != nil {
		o.metrics.Inc(MetricStoragePutFailure)
	}
	if err := o.store.Put(ctx, KeyRefreshToken, resp.RefreshToken); err != nil {
		o.metrics.Inc(MetricStoragePutFailure)
	}

	user, err := o.identity.Me(ctx, resp.AccessToken)
	if err != nil {
		o.purge(ctx)
		return o.loginFailed(ctx, mapLoginFailure(err)), nil
	}

	if err := o.store.Put(ctx, KeyUser, user); err != nil {
		o.metrics.Inc(MetricStoragePutFailure)
	}

	o.mu.Lock()
	o.user = user
	o.phase = PhaseAuthenticated
	o.mu.Unlock()

	o.monitor.Start()

	o.metrics.Inc(MetricLoginSuccess)
	o.emit(ctx, AuditEvent{
		EventType: AuditLoginSuccess,
		UserID:    user.ID,
		TenantID:  user.TenantID,
		Success:   true,
	})

	return &LoginResult{OK: true, User: user}, nil
}

func (o *Orchestrator) loginFailed(ctx context.Context, failure *LoginFailure) *LoginResult {
	o.setPhase(PhaseUnauthenticated)
	o.metrics.Inc(MetricLoginFailure)
	o.emit(ctx, AuditEvent{
		EventType: AuditLoginFailure,
		Success:   false,
		Error:     failure.Message,
		Metadata:  map[string]string{"reason": string(failure.Reason)},
	})
	return &LoginResult{Failure: failure}
}

// mapLoginFailure translates an identity-service error into the login
// failure taxonomy. Transport-level failures and 5xx responses are
// retryable network failures; everything else defaults to invalid
// credentials so an unknown rejection never over-promises.
func mapLoginFailure(err error) *LoginFailure {
	var apiErr *identity.APIError
	if !errors.As(err, &apiErr) {
		return &LoginFailure{
			Reason:  FailureNetwork,
			Message: "identity service unreachable",
		}
	}

	failure := &LoginFailure{
		Message:    apiErr.Message,
		RedirectTo: apiErr.RedirectTo,
	}

	switch apiErr.Code {
	case "pending_approval":
		failure.Reason = FailurePendingApproval
	case "wrong_tenant":
		failure.Reason = FailureWrongTenant
	case "requires_onboarding":
		failure.Reason = FailureRequiresOnboarding
	default:
		if apiErr.Status >= 500 {
			failure.Reason = FailureNetwork
		} else {
			failure.Reason = FailureInvalidCredentials
		}
	}

	return failure
}
