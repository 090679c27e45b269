package internaldefs

import (
	goAuthClient "github.com/MrEthical07/goAuthClient"
)

// CounterDef defines a public type used by goAuthClient APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   goAuthClient.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by goAuthClient APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   goAuthClient.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter of audit events dropped under backpressure.
const AuditDroppedName = "goauthclient_audit_dropped_total"

// AuditDroppedHelp describes AuditDroppedName.
const AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

// CounterDefs lists every exported counter.
var CounterDefs = []CounterDef{
	{ID: goAuthClient.MetricRefreshSuccess, Name: "goauthclient_refresh_success_total", Help: "Successful token refreshes."},
	{ID: goAuthClient.MetricRefreshDenied, Name: "goauthclient_refresh_denied_total", Help: "Refreshes rejected by the server."},
	{ID: goAuthClient.MetricRefreshMalformed, Name: "goauthclient_refresh_malformed_total", Help: "Refresh answers that were not a credential payload."},
	{ID: goAuthClient.MetricRefreshTransportError, Name: "goauthclient_refresh_transport_error_total", Help: "Refreshes that failed on the network."},
	{ID: goAuthClient.MetricRefreshNoToken, Name: "goauthclient_refresh_no_token_total", Help: "Refresh calls made without a refresh token."},
	{ID: goAuthClient.MetricRefreshExchange, Name: "goauthclient_refresh_exchange_total", Help: "Refresh exchanges sent to the server."},
	{ID: goAuthClient.MetricRefreshSessionChanged, Name: "goauthclient_refresh_session_changed_total", Help: "Refresh results discarded because the session changed."},
	{ID: goAuthClient.MetricGatewayRequest, Name: "goauthclient_gateway_request_total", Help: "Requests dispatched by the gateway, replays included."},
	{ID: goAuthClient.MetricGatewayUnauthorized, Name: "goauthclient_gateway_unauthorized_total", Help: "First attempts answered with 401."},
	{ID: goAuthClient.MetricGatewayReplay, Name: "goauthclient_gateway_replay_total", Help: "Requests replayed after a renewal."},
	{ID: goAuthClient.MetricGatewayReplayUnauthorized, Name: "goauthclient_gateway_replay_unauthorized_total", Help: "Replays answered with 401."},
	{ID: goAuthClient.MetricGatewayTransportError, Name: "goauthclient_gateway_transport_error_total", Help: "Gateway requests that failed on the network."},
	{ID: goAuthClient.MetricSchedulerCheck, Name: "goauthclient_scheduler_check_total", Help: "Background renewal checks."},
	{ID: goAuthClient.MetricSchedulerRenewal, Name: "goauthclient_scheduler_renewal_total", Help: "Background checks that requested a renewal."},
	{ID: goAuthClient.MetricSchedulerSelfStop, Name: "goauthclient_scheduler_self_stop_total", Help: "Background renewal stops caused by a missing refresh token."},
	{ID: goAuthClient.MetricStoreCleared, Name: "goauthclient_store_cleared_total", Help: "Token pair clears."},
	{ID: goAuthClient.MetricStorePersistFailure, Name: "goauthclient_store_persist_failure_total", Help: "Failed durable storage writes."},
	{ID: goAuthClient.MetricLoginSuccess, Name: "goauthclient_login_success_total", Help: "Successful logins and registrations."},
	{ID: goAuthClient.MetricLoginFailure, Name: "goauthclient_login_failure_total", Help: "Failed logins and registrations."},
	{ID: goAuthClient.MetricLogout, Name: "goauthclient_logout_total", Help: "Logouts."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goAuthClient.MetricRefreshLatency, Name: "goauthclient_refresh_latency_seconds", Help: "Refresh exchange latency histogram."},
}

// HistogramUpperBounds are the bucket upper bounds in seconds, +Inf excluded.
var HistogramUpperBounds = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters without native
// histograms.
var HistogramBoundSuffix = []string{
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size bucket array.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets turns per-bucket counts into running totals; the last element is
// the sample count.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
