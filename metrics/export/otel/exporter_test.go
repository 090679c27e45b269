package otel

import (
	"context"
	"sync"
	"testing"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/metrics/export/internaldefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goAuthClient.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goAuthClient.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goAuthClient.MetricsSnapshot{
		Counters:   make(map[goAuthClient.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[goAuthClient.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func collectInt64(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] = dp.Value
				}
			}
		}
	}
	return out
}

func TestExporterPublishesCountersAndBuckets(t *testing.T) {
	reader, provider := newReader(t)

	src := &fakeSource{
		snapshot: goAuthClient.MetricsSnapshot{
			Counters: map[goAuthClient.MetricID]uint64{
				goAuthClient.MetricRefreshSuccess:      3,
				goAuthClient.MetricGatewayUnauthorized: 5,
			},
			Histograms: map[goAuthClient.MetricID][]uint64{
				goAuthClient.MetricRefreshLatency: {1, 0, 2, 0, 0, 0, 0, 1},
			},
		},
		dropped: 2,
	}

	exp, err := NewOTelExporterFromSource(provider.Meter("goauthclient-test"), src)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, exp.Close()) })

	got := collectInt64(t, reader)
	assert.Equal(t, int64(3), got["goauthclient_refresh_success_total"])
	assert.Equal(t, int64(5), got["goauthclient_gateway_unauthorized_total"])
	assert.Equal(t, int64(0), got["goauthclient_logout_total"])
	assert.Equal(t, int64(2), got[internaldefs.AuditDroppedName])
	assert.Equal(t, int64(1), got["goauthclient_refresh_latency_seconds_bucket_le_0_05"])
	assert.Equal(t, int64(3), got["goauthclient_refresh_latency_seconds_bucket_le_0_25"])
	assert.Equal(t, int64(4), got["goauthclient_refresh_latency_seconds_bucket_le_inf"])
	assert.Equal(t, int64(4), got["goauthclient_refresh_latency_seconds_count"])
}

func TestExporterSkipsDisabledHistogram(t *testing.T) {
	reader, provider := newReader(t)

	src := &fakeSource{snapshot: goAuthClient.MetricsSnapshot{
		Counters: map[goAuthClient.MetricID]uint64{goAuthClient.MetricLogout: 1},
	}}
	exp, err := NewOTelExporterFromSource(provider.Meter("goauthclient-test"), src)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, exp.Close()) })

	got := collectInt64(t, reader)
	assert.Equal(t, int64(1), got["goauthclient_logout_total"])
	_, ok := got["goauthclient_refresh_latency_seconds_count"]
	assert.False(t, ok)
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReader(t)

	_, err := NewOTelExporterFromSource(provider.Meter("goauthclient-test"), nil)
	assert.ErrorIs(t, err, ErrNilSource)

	_, err = NewOTelExporterFromSource(nil, &fakeSource{})
	assert.ErrorIs(t, err, ErrNilMeter)

	_, err = NewOTelExporter(provider.Meter("goauthclient-test"), nil)
	assert.ErrorIs(t, err, ErrNilSource)
}

func TestExporterCloseStopsObservation(t *testing.T) {
	reader, provider := newReader(t)

	src := &fakeSource{snapshot: goAuthClient.MetricsSnapshot{
		Counters: map[goAuthClient.MetricID]uint64{goAuthClient.MetricLoginSuccess: 7},
	}}
	exp, err := NewOTelExporterFromSource(provider.Meter("goauthclient-test"), src)
	require.NoError(t, err)
	require.Equal(t, int64(7), collectInt64(t, reader)["goauthclient_login_success_total"])

	require.NoError(t, exp.Close())
	_, ok := collectInt64(t, reader)["goauthclient_login_success_total"]
	assert.False(t, ok)

	var nilExp *OTelExporter
	assert.NoError(t, nilExp.Close())
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader(t)

	src := &fakeSource{snapshot: goAuthClient.MetricsSnapshot{
		Counters: map[goAuthClient.MetricID]uint64{goAuthClient.MetricRefreshSuccess: 1},
		Histograms: map[goAuthClient.MetricID][]uint64{
			goAuthClient.MetricRefreshLatency: {1, 0, 0, 0, 0, 0, 0, 0},
		},
	}}
	exp, err := NewOTelExporterFromSource(provider.Meter("goauthclient-test"), src)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, exp.Close()) })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goAuthClient.MetricRefreshSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
