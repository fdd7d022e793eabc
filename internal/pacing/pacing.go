// Package pacing drives the soft real-time send loop of the TCP flow engine
// (the UDP client runs its own loop in internal/udpflow, interleaved with its
// control-message poll): a token-timed schedule honoring a duration or
// total-byte stop criterion, an optional rate cap, and periodic bandwidth
// resampling.
package pacing

import (
	"time"

	"github.com/nimblewing/flowgen/internal/distribution"
)

// burstBound caps how many overdue slots a single outer tick will drain,
// so a long scheduler stall cannot release an unbounded burst of sends.
const burstBound = 4

// StopCriterion is exactly one of a wall-clock duration or a total byte
// count; the zero value of the unused field means "not set".
type StopCriterion struct {
	Duration  time.Duration // 0 means unset
	TotalSize uint64        // 0 means unset
}

// SendFunc transmits one payload and returns the number of bytes actually
// accounted on the wire (payload length plus any protocol overhead).
type SendFunc func(payload []byte) (bytesWritten int, err error)

// Loop runs the pacing schedule until a stop criterion is met, send returns
// an error, or stop is closed. sampler draws the next payload, the next
// inter-send interval (given the current mean), and resampled bandwidths.
type Loop struct {
	Stop               StopCriterion
	PacketSize         int
	RateBps            float64 // 0 means unpaced, back-to-back sends
	BandwidthResetEvery time.Duration
	Sampler            *distribution.Sampler
	Send               SendFunc
}

// Run drives the loop to completion. It returns the error from Send, if
// any, or nil on a clean stop. stopCh, if non-nil, causes Run to return
// immediately (nil error) when closed or signaled, modeling a forced
// teardown triggered from elsewhere (user interrupt, peer FORCE_QUIT).
func (l *Loop) Run(stopCh <-chan struct{}) error {
	start := time.Now()
	var totalSent uint64

	pps, meanInterval := l.rateParams()
	nextSend := time.Now()
	lastBandwidthReset := time.Now()

	for {
		select {
		case <-stopCh:
			return nil
		default:
		}

		if l.Stop.Duration > 0 && time.Since(start) >= l.Stop.Duration {
			return nil
		}
		if l.Stop.TotalSize > 0 && totalSent >= l.Stop.TotalSize {
			return nil
		}

		if l.BandwidthResetEvery > 0 && time.Since(lastBandwidthReset) >= l.BandwidthResetEvery {
			newRate := l.Sampler.ResetBandwidth()
			if newRate > 0 {
				l.RateBps = newRate
				pps, meanInterval = l.rateParams()
			}
			lastBandwidthReset = time.Now()
		}

		if pps <= 0 {
			n, err := l.sendOne()
			if err != nil {
				return err
			}
			totalSent += uint64(n)
			continue
		}

		drained := 0
		now := time.Now()
		for now.After(nextSend) || now.Equal(nextSend) {
			n, err := l.sendOne()
			if err != nil {
				return err
			}
			totalSent += uint64(n)
			nextSend = nextSend.Add(time.Duration(l.Sampler.Interval(meanInterval) * float64(time.Second)))
			drained++
			if drained >= burstBound {
				break
			}
			now = time.Now()
		}
		if drained == 0 {
			sleep := time.Until(nextSend)
			if sleep > 0 {
				time.Sleep(sleep)
			}
		}
	}
}

func (l *Loop) sendOne() (int, error) {
	payload := make([]byte, l.Sampler.PacketSize())
	for i := range payload {
		payload[i] = 'X'
	}
	return l.Send(payload)
}

func (l *Loop) rateParams() (pps float64, meanInterval float64) {
	if l.RateBps <= 0 || l.PacketSize <= 0 {
		return 0, 0
	}
	pps = l.RateBps / float64(l.PacketSize*8)
	if pps <= 0 {
		return 0, 0
	}
	return pps, 1.0 / pps
}
