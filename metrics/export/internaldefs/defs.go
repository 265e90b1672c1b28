package internaldefs

import (
	farmgate "github.com/farmsight/farmgate"
)

// CounterDef binds one engine counter to its exported metric name.
type CounterDef struct {
	ID   farmgate.MetricID
	Name string
	Help string
}

// HistogramDef binds one engine histogram to its exported metric name.
type HistogramDef struct {
	ID   farmgate.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter. Both exporters iterate this
// slice so the names never drift apart.
var CounterDefs = []CounterDef{
	{ID: farmgate.MetricLoginSuccess, Name: "farmgate_login_success_total", Help: "Accepted logins."},
	{ID: farmgate.MetricLoginFailure, Name: "farmgate_login_failure_total", Help: "Logins rejected by the identity service."},
	{ID: farmgate.MetricLoginUnavailable, Name: "farmgate_login_unavailable_total", Help: "Logins lost to identity service outages."},
	{ID: farmgate.MetricLogout, Name: "farmgate_logout_total", Help: "Logout operations."},
	{ID: farmgate.MetricBootstrapCacheHit, Name: "farmgate_bootstrap_cache_hit_total", Help: "Bootstraps restored from the durable store."},
	{ID: farmgate.MetricBootstrapCacheMiss, Name: "farmgate_bootstrap_cache_miss_total", Help: "Bootstraps without a usable cached session."},
	{ID: farmgate.MetricRevalidateSuccess, Name: "farmgate_revalidate_success_total", Help: "Background revalidations confirming the cached profile."},
	{ID: farmgate.MetricRevalidateFailure, Name: "farmgate_revalidate_failure_total", Help: "Background revalidations that failed without ending the session."},
	{ID: farmgate.MetricRevalidateStaleDrop, Name: "farmgate_revalidate_stale_drop_total", Help: "Revalidation results dropped as superseded."},
	{ID: farmgate.MetricProfileRefreshed, Name: "farmgate_profile_refreshed_total", Help: "Cached profiles replaced by fresher identity data."},
	{ID: farmgate.MetricStoreRepaired, Name: "farmgate_store_repaired_total", Help: "Durable entries repaired from the cookie medium."},
	{ID: farmgate.MetricStoreReset, Name: "farmgate_store_reset_total", Help: "Corrupt durable entries cleared on read."},
	{ID: farmgate.MetricEdgePublic, Name: "farmgate_edge_public_pass_total", Help: "Edge passes on public and realtime paths."},
	{ID: farmgate.MetricEdgeAllowed, Name: "farmgate_edge_allowed_total", Help: "Protected-path passes with a credential."},
	{ID: farmgate.MetricEdgeDenied, Name: "farmgate_edge_denied_total", Help: "Protected-path redirects to the login page."},
	{ID: farmgate.MetricEdgeRedirectIfAuth, Name: "farmgate_edge_redirect_if_auth_pass_total", Help: "Login-page passes."},
	{ID: farmgate.MetricEdgeDefault, Name: "farmgate_edge_default_pass_total", Help: "Edge passes matching no route table."},
	{ID: farmgate.MetricRelayCookieSet, Name: "farmgate_relay_cookie_set_total", Help: "Token-to-cookie mirror requests served."},
	{ID: farmgate.MetricRelayCookieRejected, Name: "farmgate_relay_cookie_rejected_total", Help: "Mirror requests rejected for a missing token."},
	{ID: farmgate.MetricRelayTokenServed, Name: "farmgate_relay_token_served_total", Help: "Cookie-to-token reads served."},
	{ID: farmgate.MetricRelayTokenMissing, Name: "farmgate_relay_token_missing_total", Help: "Cookie-to-token reads without a cookie."},
	{ID: farmgate.MetricRelayValidateSuccess, Name: "farmgate_relay_validate_success_total", Help: "Validation forwards accepted upstream."},
	{ID: farmgate.MetricRelayValidateFailure, Name: "farmgate_relay_validate_failure_total", Help: "Validation forwards rejected or lost upstream."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: farmgate.MetricRevalidateLatency, Name: "farmgate_revalidate_latency_seconds", Help: "Background revalidation latency histogram."},
}

// HistogramBounds are the upper bucket bounds in seconds, matching the
// engine's fixed millisecond buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix are attribute-safe spellings of HistogramBounds.
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

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// Prometheus histograms expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
