package sessionkit

import "errors"

var (
	// ErrNotReady is returned when an Orchestrator method is called before
	// Build completed or after Close.
	ErrNotReady = errors.New("orchestrator not ready")
	// ErrOperationInFlight is returned when a login, session check, or
	// renewal is attempted while another one is still pending.
	ErrOperationInFlight = errors.New("session operation already in flight")
	// ErrNoSession is returned by operations that require an authenticated
	// session when none is active.
	ErrNoSession = errors.New("no active session")
	// ErrInvalidCredentials is the login rejection for a bad email/password
	// pair. Recoverable; the user retries.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrPendingApproval means the account is valid but not yet activated.
	ErrPendingApproval = errors.New("account pending approval")
	// ErrWrongTenant means the credentials are valid on a different tenant
	// scope. The login failure carries the redirect target.
	ErrWrongTenant = errors.New("credentials belong to a different tenant")
	// ErrRequiresOnboarding means the credentials are valid but account
	// setup is incomplete. A redirect, not an error toast.
	ErrRequiresOnboarding = errors.New("account requires onboarding")
	// ErrRefreshRejected means the refresh token was consumed, expired, or
	// revoked. Always escalates to a full logout, never retried silently.
	ErrRefreshRejected = errors.New("refresh token rejected")
	// ErrNetworkFailure is a transient transport failure. Retryable; it
	// does not change session state.
	ErrNetworkFailure = errors.New("identity service unreachable")
)
