package goAuthClient

import "github.com/MrEthical07/goAuthClient/internal/metrics"

// MetricID defines a public type used by goAuthClient APIs.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID = metrics.ID

const (
	MetricRefreshSuccess            = metrics.RefreshSuccess
	MetricRefreshDenied             = metrics.RefreshDenied
	MetricRefreshMalformed          = metrics.RefreshMalformed
	MetricRefreshTransportError     = metrics.RefreshTransportError
	MetricRefreshNoToken            = metrics.RefreshNoToken
	MetricRefreshExchange           = metrics.RefreshExchange
	MetricRefreshSessionChanged     = metrics.RefreshSessionChanged
	MetricGatewayRequest            = metrics.GatewayRequest
	MetricGatewayUnauthorized       = metrics.GatewayUnauthorized
	MetricGatewayReplay             = metrics.GatewayReplay
	MetricGatewayReplayUnauthorized = metrics.GatewayReplayUnauthorized
	MetricGatewayTransportError     = metrics.GatewayTransportError
	MetricSchedulerCheck            = metrics.SchedulerCheck
	MetricSchedulerRenewal          = metrics.SchedulerRenewal
	MetricSchedulerSelfStop         = metrics.SchedulerSelfStop
	MetricStoreCleared              = metrics.StoreCleared
	MetricStorePersistFailure       = metrics.StorePersistFailure
	MetricLoginSuccess              = metrics.LoginSuccess
	MetricLoginFailure              = metrics.LoginFailure
	MetricLogout                    = metrics.Logout
	MetricRefreshLatency            = metrics.RefreshLatency
)

// MetricsSnapshot is a point-in-time copy of every counter and the refresh latency
// histogram. Bucket upper bounds are 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 5s, +Inf.
type MetricsSnapshot = metrics.Snapshot
