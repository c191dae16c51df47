// Package rotation decides when the active data file should be sealed and a
// new one opened. Ignite's engine checks a Policy before (and, for batched
// writes, between) every append.
package rotation

import "time"

// Policy decides whether the active data file should be rotated given its
// current size, entry count, and the current time.
type Policy interface {
	ShouldRotate(sizeBytes int64, entryCount int, now time.Time) bool
}

// NullPolicy never triggers rotation. It is the default when no rotation
// trigger is configured.
type NullPolicy struct{}

func (NullPolicy) ShouldRotate(int64, int, time.Time) bool { return false }

// SizePolicy rotates once the active file reaches maxBytes.
type SizePolicy struct {
	MaxBytes int64
}

func (p SizePolicy) ShouldRotate(sizeBytes int64, _ int, _ time.Time) bool {
	return sizeBytes >= p.MaxBytes
}

// EntryCountPolicy rotates once the active file holds maxEntries records.
type EntryCountPolicy struct {
	MaxEntries int
}

func (p EntryCountPolicy) ShouldRotate(_ int64, entryCount int, _ time.Time) bool {
	return entryCount >= p.MaxEntries
}

// TimePolicy rotates once interval has elapsed since the last rotation (or
// since the policy was constructed, for the first check). It is stateful:
// ShouldRotate records the rotation time internally whenever it returns true,
// so the engine does not need to call back in to reset the clock.
type TimePolicy struct {
	Interval time.Duration

	last time.Time
}

// NewTimePolicy builds a TimePolicy whose clock starts at now.
func NewTimePolicy(interval time.Duration, now time.Time) *TimePolicy {
	return &TimePolicy{Interval: interval, last: now}
}

func (p *TimePolicy) ShouldRotate(_ int64, _ int, now time.Time) bool {
	if now.Sub(p.last) >= p.Interval {
		p.last = now
		return true
	}
	return false
}

// CompositePolicy rotates as soon as any one of its member policies would.
type CompositePolicy struct {
	Policies []Policy
}

func (p CompositePolicy) ShouldRotate(sizeBytes int64, entryCount int, now time.Time) bool {
	rotate := false
	// Every member is evaluated, not short-circuited, so stateful policies
	// like TimePolicy advance their clock regardless of evaluation order.
	for _, policy := range p.Policies {
		if policy.ShouldRotate(sizeBytes, entryCount, now) {
			rotate = true
		}
	}
	return rotate
}

// FromConfig builds the Policy implied by an options.RotationConfig. Any
// zero-valued trigger is omitted; a config with every trigger zero yields
// NullPolicy.
func FromConfig(maxBytes, maxEntries uint64, interval time.Duration, now time.Time) Policy {
	var policies []Policy

	if maxBytes > 0 {
		policies = append(policies, SizePolicy{MaxBytes: int64(maxBytes)})
	}
	if maxEntries > 0 {
		policies = append(policies, EntryCountPolicy{MaxEntries: int(maxEntries)})
	}
	if interval > 0 {
		policies = append(policies, NewTimePolicy(interval, now))
	}

	switch len(policies) {
	case 0:
		return NullPolicy{}
	case 1:
		return policies[0]
	default:
		return CompositePolicy{Policies: policies}
	}
}
