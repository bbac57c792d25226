// Package metrics provides lock-free counters and the validate latency
// histogram.
//
// Counters are stored in cache-line-padded uint64 slots and incremented
// atomically. The histogram uses 8 fixed buckets (≤5ms … +Inf). Both are
// allocation-free on the write path.
//
// Metric export (Prometheus, OTel) lives in metrics/export/ and reads
// Snapshot values.
package metrics
