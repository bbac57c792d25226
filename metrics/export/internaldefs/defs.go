package internaldefs

import (
	"github.com/MrEthical07/gatekeeper"
)

// CounterDef maps an engine metric slot onto an exported counter.
type CounterDef struct {
	ID   gatekeeper.MetricID
	Name string
	Help string
}

// HistogramDef maps an engine histogram slot onto an exported histogram.
type HistogramDef struct {
	ID   gatekeeper.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter exported for dispatcher drops.
const AuditDroppedName = "gatekeeper_audit_dropped_total"

const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

var CounterDefs = []CounterDef{
	{ID: gatekeeper.MetricLoginSuccess, Name: "gatekeeper_login_success_total", Help: "Successful user logins."},
	{ID: gatekeeper.MetricLoginFailure, Name: "gatekeeper_login_failure_total", Help: "Failed user logins."},
	{ID: gatekeeper.MetricLoginRateLimited, Name: "gatekeeper_login_rate_limited_total", Help: "Logins refused by the throttle."},
	{ID: gatekeeper.MetricAdminLoginSuccess, Name: "gatekeeper_admin_login_success_total", Help: "Successful admin logins."},
	{ID: gatekeeper.MetricAdminLoginFailure, Name: "gatekeeper_admin_login_failure_total", Help: "Failed admin logins."},
	{ID: gatekeeper.MetricValidateSuccess, Name: "gatekeeper_validate_success_total", Help: "Tokens accepted by Validate."},
	{ID: gatekeeper.MetricValidateMissingToken, Name: "gatekeeper_validate_missing_token_total", Help: "Requests without a token."},
	{ID: gatekeeper.MetricValidateInvalidToken, Name: "gatekeeper_validate_invalid_token_total", Help: "Tokens rejected as invalid."},
	{ID: gatekeeper.MetricValidateExpiredToken, Name: "gatekeeper_validate_expired_token_total", Help: "Tokens rejected as expired."},
	{ID: gatekeeper.MetricValidateWrongTokenType, Name: "gatekeeper_validate_wrong_token_type_total", Help: "Tokens presented for the wrong role."},
	{ID: gatekeeper.MetricValidateSessionExpired, Name: "gatekeeper_validate_session_expired_total", Help: "Tokens whose session was revoked or replaced."},
	{ID: gatekeeper.MetricSessionCreated, Name: "gatekeeper_session_created_total", Help: "Sessions registered."},
	{ID: gatekeeper.MetricSessionSuperseded, Name: "gatekeeper_session_superseded_total", Help: "Sessions replaced by a newer login."},
	{ID: gatekeeper.MetricLogout, Name: "gatekeeper_logout_total", Help: "Logout operations."},
	{ID: gatekeeper.MetricCollaboratorFailure, Name: "gatekeeper_collaborator_failure_total", Help: "Credential store, session store or throttle failures."},
}

var HistogramDefs = []HistogramDef{
	{ID: gatekeeper.MetricValidateLatency, Name: "gatekeeper_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets copies raw into a fixed eight-bucket array.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
