package sessionkit

import (
	"context"

	"github.com/kadvik/sessionkit/identity"
)

// Phase is the orchestrator's position in the session state machine.
type Phase uint8

const (
	// PhaseUnauthenticated is the initial and terminal-free resting state.
	PhaseUnauthenticated Phase = iota
	// PhaseAuthenticating covers an in-flight login or session check.
	PhaseAuthenticating
	// PhaseAuthenticated means a validated session is active.
	PhaseAuthenticated
	// PhaseRenewing covers an in-flight refresh-token exchange.
	PhaseRenewing
)

func (p Phase) String() string {
	switch p {
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseRenewing:
		return "renewing"
	default:
		return "unknown"
	}
}

// User is the identity service's profile record, held as an opaque snapshot
// and replaced wholesale on every fetch.
type User = identity.User

// Credential is the opaque signed token pair owned by the orchestrator. The
// store never inspects either token; only the monitor reads the access
// token's embedded expiry claim.
type Credential struct {
	AccessToken  string
	RefreshToken string
}

// SessionState is a point-in-time snapshot of the orchestrator. Exactly one
// live state exists per Orchestrator; snapshots are copies and safe to keep.
type SessionState struct {
	Phase            Phase
	User             *User
	SecondsRemaining int64
	WarningActive    bool
}

// FailureReason classifies a rejected login.
type FailureReason string

const (
	// FailureInvalidCredentials is a bad email/password pair.
	FailureInvalidCredentials FailureReason = "invalid_credentials"
	// FailurePendingApproval is a valid account awaiting activation.
	FailurePendingApproval FailureReason = "pending_approval"
	// FailureWrongTenant is a valid account on another tenant scope.
	FailureWrongTenant FailureReason = "wrong_tenant"
	// FailureRequiresOnboarding is a valid account with incomplete setup.
	FailureRequiresOnboarding FailureReason = "requires_onboarding"
	// FailureNetwork is a transient transport failure; retryable.
	FailureNetwork FailureReason = "network"
)

// LoginFailure is the structured rejection attached to a LoginResult.
type LoginFailure struct {
	Reason  FailureReason
	Message string
	// RedirectTo carries the target for wrong-tenant and onboarding
	// rejections; empty otherwise.
	RedirectTo string
}

// Err maps the failure onto the package sentinel taxonomy.
func (f *LoginFailure) Err() error {
	switch f.Reason {
	case FailurePendingApproval:
		return ErrPendingApproval
	case FailureWrongTenant:
		return ErrWrongTenant
	case FailureRequiresOnboarding:
		return ErrRequiresOnboarding
	case FailureNetwork:
		return ErrNetworkFailure
	default:
		return ErrInvalidCredentials
	}
}

// LoginResult is the typed outcome of [Orchestrator.Login]. Identity-service
// rejections land in Failure; they are never returned as bare errors.
type LoginResult struct {
	OK      bool
	User    *User
	Failure *LoginFailure
}

// Binding is the presentation boundary: the minimal reactive surface a UI
// layer needs to render the expiry warning and wire its two buttons.
type Binding struct {
	SecondsRemaining func() int64
	WarningActive    func() bool
	Extend           func(ctx context.Context) error
	SignOut          func(ctx context.Context) error
}
