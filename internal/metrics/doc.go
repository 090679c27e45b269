// Package metrics counts refresh, gateway, scheduler and session events for one
// client.
//
// Counters are padded atomic uint64 slots. The refresh latency histogram has eight
// fixed buckets from 50ms to +Inf. A nil or disabled *Metrics ignores every write, so
// components call Inc and Observe unconditionally.
//
// Exporters in metrics/export read [Snapshot] values; this package performs no I/O.
package metrics
