package scheduling

import (
	"fmt"
	"time"

	"github.com/psiclinic/clinic/internal/domain/therapy"
)

// ConflictRule selects how a proposed window is compared against existing
// appointments.
type ConflictRule int

const (
	// RuleLegacy flags an existing appointment whose start T satisfies
	// start-d < T < start+d, where d is the proposed duration. The existing
	// appointment's own duration is ignored, so a long appointment starting
	// more than d minutes earlier is not detected.
	RuleLegacy ConflictRule = iota
	// RuleStrict is true interval overlap: T < start+d and T+D > start.
	RuleStrict
)

func (r ConflictRule) String() string {
	if r == RuleStrict {
		return "strict"
	}
	return "legacy"
}

// ParseConflictRule maps a configuration value to a rule.
func ParseConflictRule(s string) (ConflictRule, error) {
	switch s {
	case "", "legacy":
		return RuleLegacy, nil
	case "strict":
		return RuleStrict, nil
	default:
		return RuleLegacy, fmt.Errorf("unknown scheduling conflict mode %q", s)
	}
}

// Booking is the part of an existing appointment the rules look at.
type Booking struct {
	ID       int64
	Date     time.Time
	Duration int
}

// Overlaps reports whether a proposal starting at start and lasting
// minutes collides with b.
func (r ConflictRule) Overlaps(start time.Time, minutes int, b Booking) bool {
	d := time.Duration(minutes) * time.Minute
	if r == RuleStrict {
		existingEnd := b.Date.Add(time.Duration(b.Duration) * time.Minute)
		return b.Date.Before(start.Add(d)) && existingEnd.After(start)
	}
	return b.Date.After(start.Add(-d)) && b.Date.Before(start.Add(d))
}

// FindConflict returns the earliest booking that collides with the proposal,
// skipping excludeID. Callers pass only non-cancelled bookings of one owner.
func (r ConflictRule) FindConflict(start time.Time, minutes int, bookings []Booking, excludeID int64) *Booking {
	var hit *Booking
	for i := range bookings {
		b := &bookings[i]
		if excludeID != 0 && b.ID == excludeID {
			continue
		}
		if !r.Overlaps(start, minutes, *b) {
			continue
		}
		if hit == nil || b.Date.Before(hit.Date) {
			hit = b
		}
	}
	return hit
}

// CandidateWindow is the range of start times that can collide with a
// proposal under either rule. Existing appointments last at most
// therapy.MaxDuration minutes, so nothing starting earlier can reach start.
func CandidateWindow(start time.Time, minutes int) (from, to time.Time) {
	return start.Add(-time.Duration(therapy.MaxDuration) * time.Minute),
		start.Add(time.Duration(minutes) * time.Minute)
}
