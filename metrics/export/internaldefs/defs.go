package internaldefs

import (
	sessionkit "github.com/kadvik/sessionkit"
)

// CounterDef binds one lifecycle counter to its exported name and help text.
// The exporters iterate this slice so both backends expose the same series.
type CounterDef struct {
	ID   sessionkit.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: sessionkit.MetricLoginSuccess, Name: "sessionkit_login_success_total", Help: "Logins that reached the authenticated phase."},
	{ID: sessionkit.MetricLoginFailure, Name: "sessionkit_login_failure_total", Help: "Logins rejected by the identity service."},
	{ID: sessionkit.MetricCheckSessionHit, Name: "sessionkit_check_session_hit_total", Help: "Startup checks that restored a session."},
	{ID: sessionkit.MetricCheckSessionMiss, Name: "sessionkit_check_session_miss_total", Help: "Startup checks that found nothing usable."},
	{ID: sessionkit.MetricRenewSuccess, Name: "sessionkit_renew_success_total", Help: "Successful refresh-token exchanges."},
	{ID: sessionkit.MetricRenewFailure, Name: "sessionkit_renew_failure_total", Help: "Rejected or failed refresh-token exchanges."},
	{ID: sessionkit.MetricWarningFired, Name: "sessionkit_warning_fired_total", Help: "Pre-expiry warnings raised."},
	{ID: sessionkit.MetricSessionExpired, Name: "sessionkit_session_expired_total", Help: "Sessions terminated by token expiry."},
	{ID: sessionkit.MetricLogout, Name: "sessionkit_logout_total", Help: "Sign-outs, manual and forced."},
	{ID: sessionkit.MetricStorageCorrupt, Name: "sessionkit_storage_corrupt_total", Help: "Envelopes discarded by integrity checks."},
	{ID: sessionkit.MetricStoragePutFailure, Name: "sessionkit_storage_put_failure_total", Help: "Best-effort persists that failed."},
	{ID: sessionkit.MetricOperationRejected, Name: "sessionkit_operation_rejected_total", Help: "Calls refused by the in-flight guard."},
}
