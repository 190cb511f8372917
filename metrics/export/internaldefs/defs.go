package internaldefs

import (
	"github.com/oroscan/oroauth"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   oroauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for export.
type HistogramDef struct {
	ID   oroauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: oroauth.MetricLoginSuccess, Name: "oroauth_login_success_total", Help: "Successful authentications."},
	{ID: oroauth.MetricLoginFailure, Name: "oroauth_login_failure_total", Help: "Failed authentications of any kind."},
	{ID: oroauth.MetricLoginMissingCredentials, Name: "oroauth_login_missing_credentials_total", Help: "Authentications rejected for a blank identifier or password."},
	{ID: oroauth.MetricLoginUnknownIdentifier, Name: "oroauth_login_unknown_identifier_total", Help: "Authentications whose identifier matched no account."},
	{ID: oroauth.MetricLoginInvalidPassword, Name: "oroauth_login_invalid_password_total", Help: "Authentications with a wrong password."},
	{ID: oroauth.MetricLoginStoreUnavailable, Name: "oroauth_login_store_unavailable_total", Help: "Authentications aborted because the identity store failed."},
	{ID: oroauth.MetricLoginThrottled, Name: "oroauth_login_throttled_total", Help: "Authentications refused by the failed-login throttle."},
	{ID: oroauth.MetricPasswordUpgraded, Name: "oroauth_password_upgraded_total", Help: "Password hashes rewritten with current parameters on login."},
	{ID: oroauth.MetricSessionValidated, Name: "oroauth_session_validated_total", Help: "Session tokens accepted by validate."},
	{ID: oroauth.MetricSessionInvalid, Name: "oroauth_session_invalid_total", Help: "Session tokens rejected by validate."},
	{ID: oroauth.MetricSessionRevoked, Name: "oroauth_session_revoked_total", Help: "Session tokens rejected because they were revoked."},
	{ID: oroauth.MetricGuardRedirect, Name: "oroauth_guard_redirect_total", Help: "Guarded requests redirected to the login path."},
	{ID: oroauth.MetricLogout, Name: "oroauth_logout_total", Help: "Single-session logouts."},
	{ID: oroauth.MetricLogoutAll, Name: "oroauth_logout_all_total", Help: "Logout-all operations."},
	{ID: oroauth.MetricRevocationUnavailable, Name: "oroauth_revocation_unavailable_total", Help: "Revocation list lookups that failed."},
}

// LabeledDef maps one engine counter to a label value of a shared metric.
type LabeledDef struct {
	ID    oroauth.MetricID
	Value string
}

// LoginOutcomeDefs partitions authentication attempts by result. Each attempt
// increments exactly one of these counters, so they sum to the attempt total.
var LoginOutcomeDefs = []LabeledDef{
	{ID: oroauth.MetricLoginSuccess, Value: "success"},
	{ID: oroauth.MetricLoginMissingCredentials, Value: "missing_credentials"},
	{ID: oroauth.MetricLoginUnknownIdentifier, Value: "unknown_identifier"},
	{ID: oroauth.MetricLoginInvalidPassword, Value: "invalid_password"},
	{ID: oroauth.MetricLoginStoreUnavailable, Value: "store_unavailable"},
	{ID: oroauth.MetricLoginThrottled, Value: "throttled"},
}

// SessionResultDefs partitions validate calls. Revoked tokens are also
// counted as invalid and are exported separately.
var SessionResultDefs = []LabeledDef{
	{ID: oroauth.MetricSessionValidated, Value: "valid"},
	{ID: oroauth.MetricSessionInvalid, Value: "invalid"},
}

// LogoutScopeDefs partitions logouts by how much they revoke.
var LogoutScopeDefs = []LabeledDef{
	{ID: oroauth.MetricLogout, Value: "session"},
	{ID: oroauth.MetricLogoutAll, Value: "all"},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: oroauth.MetricValidateLatency, Name: "oroauth_validate_latency_seconds", Help: "Validate latency."},
	{ID: oroauth.MetricAuthenticateLatency, Name: "oroauth_authenticate_latency_seconds", Help: "Authenticate latency."},
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const (
	AuditDroppedName = "oroauth_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth
// engine bucket is the +Inf overflow.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters that
// attach the bound as an attribute.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, zero-filling
// or truncating as needed.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
