package plan

import (
	"fmt"
	"strings"
	"time"
)

// ConflictKind separates verdicts that block saving a commitment from
// the informational ones.
type ConflictKind string

const (
	// Strict marks two entries fighting over the same slot with no rule
	// to pick a winner: the caller has to change one of them.
	Strict ConflictKind = "strict"
	// Override marks a one time entry displacing a recurring one on a
	// specific date. Saving stays allowed.
	Override ConflictKind = "override"
)

// Conflict is the verdict for one pair of overlapping commitments. For
// recurring pairs the clash repeats on Weekdays; for pairs involving a
// one time entry it is pinned to Dates. Displaces is set on override
// verdicts when the checked entry is the one winning the slot.
type Conflict struct {
	Kind      ConflictKind   `json:"kind"`
	With      Commitment     `json:"with"`
	Weekdays  []time.Weekday `json:"weekdays,omitempty"`
	Dates     []time.Time    `json:"dates,omitempty"`
	Displaces bool           `json:"displaces,omitempty"`
}

type Conflicts []Conflict

func (c Conflict) Blocking() bool {
	return c.Kind == Strict
}

// Blocking reports whether any verdict in the set forbids saving.
func (c Conflicts) Blocking() bool {
	for _, cf := range c {
		if cf.Blocking() {
			return true
		}
	}
	return false
}

func (c Conflict) String() string {
	when := FormatWeekdays(c.Weekdays)
	if len(c.Dates) > 0 {
		dates := make([]string, len(c.Dates))
		for i, d := range c.Dates {
			dates[i] = d.Format("2006-01-02")
		}
		when = strings.Join(dates, ",")
	}
	slot := fmt.Sprintf("%s-%s", FormatClock(c.With.Start), FormatClock(c.With.End()))
	if c.Kind == Strict {
		return fmt.Sprintf("clashes with %q on %s at %s", c.With.Label, when, slot)
	}
	if c.Displaces {
		return fmt.Sprintf("displaces %q on %s at %s", c.With.Label, when, slot)
	}
	return fmt.Sprintf("is displaced by %q on %s at %s", c.With.Label, when, slot)
}

// CheckConflicts runs a new or edited commitment against the existing
// ones and collects a verdict for every overlap. Two recurring entries
// sharing a weekday and a slot clash strictly, and so do two one time
// entries on the same date; a one time entry meeting a recurring one
// yields an override, with the one time entry winning that date. An
// edited commitment never conflicts with itself.
func CheckConflicts(c Commitment, existing Commitments) Conflicts {
	conflicts := make(Conflicts, 0)
	for _, ex := range existing {
		if ex.ID != "" && ex.ID == c.ID {
			continue
		}
		if cf, clash := conflictBetween(c, ex); clash {
			conflicts = append(conflicts, cf)
		}
	}
	return conflicts
}

func conflictBetween(c, ex Commitment) (Conflict, bool) {
	if !Overlaps(c.Start, c.End(), ex.Start, ex.End()) {
		return Conflict{}, false
	}
	switch {
	case c.IsRecurring() && ex.IsRecurring():
		if !validityIntersects(c, ex) {
			return Conflict{}, false
		}
		shared := sharedWeekdays(c.Weekdays, ex.Weekdays)
		if len(shared) == 0 {
			return Conflict{}, false
		}
		return Conflict{Kind: Strict, With: ex, Weekdays: shared}, true
	case !c.IsRecurring() && !ex.IsRecurring():
		if !SameDay(c.Date, ex.Date) {
			return Conflict{}, false
		}
		return Conflict{Kind: Strict, With: ex, Dates: []time.Time{DateOf(c.Date)}}, true
	case !c.IsRecurring():
		// one time against an existing recurring entry
		if !ex.OccursOn(c.Date) {
			return Conflict{}, false
		}
		return Conflict{Kind: Override, With: ex, Dates: []time.Time{DateOf(c.Date)}, Displaces: true}, true
	default:
		// recurring against an existing one time entry
		if !c.OccursOn(ex.Date) {
			return Conflict{}, false
		}
		return Conflict{Kind: Override, With: ex, Dates: []time.Time{DateOf(ex.Date)}}, true
	}
}

func sharedWeekdays(a, b []time.Weekday) []time.Weekday {
	shared := make([]time.Weekday, 0)
	for _, d := range a {
		if weekdaysContain(b, d) && !weekdaysContain(shared, d) {
			shared = append(shared, d)
		}
	}
	sortWeekdays(shared)
	return shared
}

// validityIntersects checks the [From, Until] windows of two recurring
// entries; a zero bound leaves that side open.
func validityIntersects(a, b Commitment) bool {
	if !a.Until.IsZero() && !b.From.IsZero() && DateOf(a.Until).Before(DateOf(b.From)) {
		return false
	}
	if !b.Until.IsZero() && !a.From.IsZero() && DateOf(b.Until).Before(DateOf(a.From)) {
		return false
	}
	return true
}
