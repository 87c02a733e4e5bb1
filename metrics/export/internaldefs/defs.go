package internaldefs

import (
	sprada "github.com/Khatrip009/adminsprada-sub000"
)

// CounterDef names one client counter for every exporter.
type CounterDef struct {
	ID   sprada.MetricID
	Name string
	Help string
}

// HistogramDef names one latency histogram for every exporter.
type HistogramDef struct {
	ID   sprada.MetricID
	Name string
	Help string
}

// BucketCount is the number of histogram buckets, +Inf included.
const BucketCount = 8

var CounterDefs = []CounterDef{
	{ID: sprada.MetricRequestTotal, Name: "sprada_request_total", Help: "Authenticated requests started."},
	{ID: sprada.MetricRequestSuccess, Name: "sprada_request_success_total", Help: "Requests that ended with a 2xx response."},
	{ID: sprada.MetricRequestRetried, Name: "sprada_request_retried_total", Help: "Requests replayed after a token refresh."},
	{ID: sprada.MetricErrorUnauthorized, Name: "sprada_error_unauthorized_total", Help: "Requests that failed with an unauthorized error."},
	{ID: sprada.MetricErrorNotFound, Name: "sprada_error_not_found_total", Help: "Requests that failed with a not found error."},
	{ID: sprada.MetricErrorConflict, Name: "sprada_error_conflict_total", Help: "Requests that failed with a conflict error."},
	{ID: sprada.MetricErrorValidation, Name: "sprada_error_validation_total", Help: "Requests rejected as invalid."},
	{ID: sprada.MetricErrorServer, Name: "sprada_error_server_total", Help: "Requests that failed with a server error."},
	{ID: sprada.MetricErrorNetwork, Name: "sprada_error_network_total", Help: "Requests that never received a response."},
	{ID: sprada.MetricErrorTimeout, Name: "sprada_error_timeout_total", Help: "Requests that ran out of time."},
	{ID: sprada.MetricRefreshRequested, Name: "sprada_refresh_requested_total", Help: "Callers that asked for a token refresh."},
	{ID: sprada.MetricRefreshStarted, Name: "sprada_refresh_started_total", Help: "Refresh calls actually sent to the backend."},
	{ID: sprada.MetricRefreshSuccess, Name: "sprada_refresh_success_total", Help: "Successful token refreshes."},
	{ID: sprada.MetricRefreshFailure, Name: "sprada_refresh_failure_total", Help: "Failed token refreshes."},
	{ID: sprada.MetricProactiveRefresh, Name: "sprada_proactive_refresh_total", Help: "Refreshes started before the access token expired."},
	{ID: sprada.MetricLoginSuccess, Name: "sprada_login_success_total", Help: "Successful logins."},
	{ID: sprada.MetricLoginFailure, Name: "sprada_login_failure_total", Help: "Failed logins."},
	{ID: sprada.MetricLogout, Name: "sprada_logout_total", Help: "Sessions cleared by logout."},
	{ID: sprada.MetricSessionExpired, Name: "sprada_session_expired_total", Help: "Sessions cleared because renewal was refused."},
	{ID: sprada.MetricStorageFailure, Name: "sprada_storage_failure_total", Help: "Session storage reads and writes that failed."},
}

var HistogramDefs = []HistogramDef{
	{ID: sprada.MetricRequestLatency, Name: "sprada_request_latency_seconds", Help: "Request latency including any refresh and retry."},
	{ID: sprada.MetricRefreshLatency, Name: "sprada_refresh_latency_seconds", Help: "Token refresh latency."},
}

// HistogramBounds are the upper bounds in seconds, as rendered in the le label.
var HistogramBounds = []string{"0.025", "0.05", "0.1", "0.25", "0.5", "1", "2.5", "+Inf"}

// HistogramBoundValues mirrors HistogramBounds without the +Inf bucket.
var HistogramBoundValues = []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// HistogramBoundSuffix is HistogramBounds in a form usable inside instrument names.
var HistogramBoundSuffix = []string{"0_025", "0_05", "0_1", "0_25", "0_5", "1", "2_5", "inf"}

// NormalizeBuckets pads or truncates raw to BucketCount entries.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}

// ApproximateSum estimates the sum of observations from bucket counts, taking
// each finite bucket at its upper bound and the +Inf bucket at the last finite one.
func ApproximateSum(raw [BucketCount]uint64) float64 {
	var sum float64
	for i, v := range raw {
		bound := HistogramBoundValues[len(HistogramBoundValues)-1]
		if i < len(HistogramBoundValues) {
			bound = HistogramBoundValues[i]
		}
		sum += float64(v) * bound
	}
	return sum
}
