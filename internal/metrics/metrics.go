package metrics

import (
	"sync/atomic"
	"time"
)

// ID identifies a counter or histogram slot.
type ID uint16

const (
	RefreshSuccess ID = iota
	RefreshDenied
	RefreshMalformed
	RefreshTransportError
	RefreshNoToken
	RefreshExchange
	RefreshSessionChanged
	GatewayRequest
	GatewayUnauthorized
	GatewayReplay
	GatewayReplayUnauthorized
	GatewayTransportError
	SchedulerCheck
	SchedulerRenewal
	SchedulerSelfStop
	StoreCleared
	StorePersistFailure
	LoginSuccess
	LoginFailure
	Logout
	RefreshLatency
	idCount
)

// Count is the number of defined metric IDs.
const Count = int(idCount)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type histogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Config toggles collection.
type Config struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// Metrics holds every counter and histogram of one client. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [idCount]paddedCounter
	histograms    [idCount]histogram
}

// Snapshot is a point-in-time copy of all values.
type Snapshot struct {
	Counters   map[ID]uint64
	Histograms map[ID][]uint64
}

func New(cfg Config) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id ID) {
	if m == nil || !m.enabled || id >= idCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d into the histogram of id. Only RefreshLatency carries a histogram.
func (m *Metrics) Observe(id ID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= idCount {
		return
	}
	if id != RefreshLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

func (m *Metrics) Value(id ID) uint64 {
	if m == nil || id >= idCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() Snapshot {
	if m == nil || !m.enabled {
		return Snapshot{
			Counters:   map[ID]uint64{},
			Histograms: map[ID][]uint64{},
		}
	}

	s := Snapshot{
		Counters:   make(map[ID]uint64, int(idCount)),
		Histograms: make(map[ID][]uint64, 1),
	}

	for id := ID(0); id < idCount; id++ {
		if id == RefreshLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[RefreshLatency].buckets[i])
		}
		s.Histograms[RefreshLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	switch {
	case d <= 50*time.Millisecond:
		return 0
	case d <= 100*time.Millisecond:
		return 1
	case d <= 250*time.Millisecond:
		return 2
	case d <= 500*time.Millisecond:
		return 3
	case d <= time.Second:
		return 4
	case d <= 2500*time.Millisecond:
		return 5
	case d <= 5*time.Second:
		return 6
	default:
		return 7
	}
}
