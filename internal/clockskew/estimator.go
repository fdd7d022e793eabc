package clockskew

import (
	"sync/atomic"
	"time"
)

// pollInterval is fixed by spec §4.8/§6 at 500ms.
const pollInterval = 500 * time.Millisecond

// Estimator polls an external time-sync scalar every 500ms and exposes the
// scaled offset in microseconds to the UDP engine. When the probe is
// unavailable the offset stays 0 and the engine is unaffected (spec §4.8).
type Estimator struct {
	probe         ProbeFunc
	offsetFixRate float64
	offsetMicros  int64 // atomic, fixed-point: stored value * 1000 for sub-µs precision
}

// NewEstimator constructs an Estimator using probe and the given scale
// factor (see LoadOffsetFixRate).
func NewEstimator(probe ProbeFunc, offsetFixRate float64) *Estimator {
	return &Estimator{probe: probe, offsetFixRate: offsetFixRate}
}

// Run polls until stopCh is closed. Intended to run in its own goroutine.
func (e *Estimator) Run(stopCh <-chan struct{}) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if raw, ok := e.probe(); ok {
				scaled := raw * e.offsetFixRate
				atomic.StoreInt64(&e.offsetMicros, int64(scaled*1000))
			}
		}
	}
}

// OffsetMicros returns the current best estimate of the clock offset in
// microseconds, 0 if no probe has succeeded yet.
func (e *Estimator) OffsetMicros() float64 {
	return float64(atomic.LoadInt64(&e.offsetMicros)) / 1000
}
