// Package sessionkit implements the client-side session and credential
// lifecycle: tamper-evident credential persistence, continuous tracking of
// the active token's validity window with pre-expiry warnings, and the state
// machine that drives login, session restore, renewal, and sign-out.
//
// The package is the public surface. It exposes [Orchestrator], [Builder],
// [Config], the error taxonomy, and value types (SessionState, LoginResult,
// AuditEvent, MetricsSnapshot). Supporting pieces live in focused
// subpackages — [github.com/kadvik/sessionkit/securestore] for the
// integrity-checked envelope store, [github.com/kadvik/sessionkit/monitor]
// for expiry tracking, [github.com/kadvik/sessionkit/identity] for the
// identity-service client — and coordination helpers stay under internal/.
//
// # Architecture boundaries
//
//   - The orchestrator owns the authenticated-user snapshot and every phase
//     transition. Nothing else mutates session state.
//   - The monitor has zero upward dependency: it reports warnings and expiry
//     through injected callbacks and learns about new tokens by re-reading
//     the store.
//   - The store never inspects credential contents; it wraps and unwraps
//     opaque bytes.
//
// # What this package must NOT do
//
//   - Render anything. The presentation boundary is [Orchestrator.Binding]
//     and ends there.
//   - Treat the storage envelope as confidentiality. The integrity tag
//     detects tampering; the payload is readable by anyone with device
//     access, and that is an accepted limitation.
//   - Leak transport errors to the presentation layer for login: failures
//     surface as a typed [LoginResult], never a bare error.
package sessionkit
