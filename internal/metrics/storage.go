package metrics

import "time"

// StorageHook adapts Metrics to the pebble store's MetricsHook.
type StorageHook struct {
	M *Metrics
}

// ObserveWrite implements pebblestore.MetricsHook.
func (h StorageHook) ObserveWrite(elapsed time.Duration, bytes int) {
	h.observe("write", elapsed, bytes)
}

// ObserveRead implements pebblestore.MetricsHook.
func (h StorageHook) ObserveRead(elapsed time.Duration, bytes int) {
	h.observe("read", elapsed, bytes)
}

// ObserveBatchCommit implements pebblestore.MetricsHook.
func (h StorageHook) ObserveBatchCommit(elapsed time.Duration, _ int, bytes int) {
	h.observe("commit", elapsed, bytes)
}

func (h StorageHook) observe(op string, elapsed time.Duration, bytes int) {
	if h.M == nil {
		return
	}
	h.M.StorageOps.WithLabelValues(op).Observe(elapsed.Seconds())
	h.M.StorageBytes.WithLabelValues(op).Add(float64(bytes))
}
