// Package distribution draws the next packet size, inter-send interval, and
// per-reset bandwidth for the pacing loop, either as a fixed value or as an
// exponential distribution around a configured mean.
package distribution

import (
	"fmt"
	"math/rand/v2"
)

// Tag selects how a quantity is sampled.
type Tag string

const (
	// None returns the configured mean unchanged on every draw.
	None Tag = ""
	// Exponential draws from Exp(1/mean) on every draw.
	Exponential Tag = "exp"
)

// ErrBadDistribution is returned for an unrecognized Tag.
type ErrBadDistribution struct {
	Tag Tag
}

func (e *ErrBadDistribution) Error() string {
	return fmt.Sprintf("unsupported distribution tag: %q", e.Tag)
}

// maxPacketSize bounds every drawn packet length, matching the original
// generator's clamp.
const maxPacketSize = 64000

// Sampler draws packet sizes, inter-send intervals, and bandwidths for one
// flow. It is not safe for concurrent use by more than one goroutine; the
// pacing loop is its only caller.
type Sampler struct {
	sizeTag Tag
	intTag  Tag
	bwTag   Tag

	meanSize int
	meanRate float64 // bits/sec, 0 if unset
}

// NewSampler validates the three distribution tags and returns a Sampler.
func NewSampler(sizeTag, intervalTag, bandwidthTag Tag, meanPacketSize int, meanBandwidthBps float64) (*Sampler, error) {
	for _, tag := range []Tag{sizeTag, intervalTag, bandwidthTag} {
		if tag != None && tag != Exponential {
			return nil, &ErrBadDistribution{Tag: tag}
		}
	}
	return &Sampler{
		sizeTag:  sizeTag,
		intTag:   intervalTag,
		bwTag:    bandwidthTag,
		meanSize: meanPacketSize,
		meanRate: meanBandwidthBps,
	}, nil
}

// PacketSize draws the next payload length, clamped to maxPacketSize.
func (s *Sampler) PacketSize() int {
	if s.sizeTag == None {
		return s.meanSize
	}
	n := int(rand.ExpFloat64() * float64(s.meanSize))
	if n > maxPacketSize {
		n = maxPacketSize
	}
	if n < 0 {
		n = 0
	}
	return n
}

// Interval draws the next inter-send interval in seconds, given the current
// mean inter-packet interval (1/pps).
func (s *Sampler) Interval(meanInterval float64) float64 {
	if s.intTag == None {
		return meanInterval
	}
	return rand.ExpFloat64() * meanInterval
}

// ResetBandwidth draws a new bandwidth in bits/sec around the configured
// mean bandwidth, or returns the mean unchanged if no bandwidth is
// configured or no distribution tag is set.
func (s *Sampler) ResetBandwidth() float64 {
	if s.meanRate <= 0 {
		return s.meanRate
	}
	if s.bwTag == None {
		return s.meanRate
	}
	return rand.ExpFloat64() * s.meanRate
}
