package plan

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind discriminates entries that repeat weekly from entries pinned to a
// single date.
type Kind string

const (
	Recurring Kind = "recurring"
	Once      Kind = "once"
)

// Commitment is a fixed calendar entry: the scheduler never moves it, it
// only plans study sessions around it. A recurring commitment occupies
// the same clock slot on its weekdays, optionally bounded by a validity
// window; a one time commitment occupies the slot on a single date.
type Commitment struct {
	ID           string         `json:"id"`
	Label        string         `json:"label"`
	Kind         Kind           `json:"kind"`
	Weekdays     []time.Weekday `json:"weekdays,omitempty"`
	Date         time.Time      `json:"date"`
	From         time.Time      `json:"from"`
	Until        time.Time      `json:"until"`
	Start        time.Duration  `json:"start"`
	Duration     time.Duration  `json:"duration"`
	Location     string         `json:"location,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	LastModified time.Time      `json:"lastModified"`
}

type Commitments []Commitment

func (c Commitment) IsRecurring() bool {
	return c.Kind == Recurring
}

func (c Commitment) End() time.Duration {
	return c.Start + c.Duration
}

func (c Commitment) Validate() error {
	if strings.TrimSpace(c.Label) == "" {
		return fmt.Errorf("commitment needs a label")
	}
	if c.Duration <= 0 {
		return fmt.Errorf("commitment %q needs a positive duration", c.Label)
	}
	if c.Start < 0 || c.End() > 24*time.Hour {
		return fmt.Errorf("commitment %q does not fit inside a day", c.Label)
	}
	switch c.Kind {
	case Recurring:
		if len(c.Weekdays) == 0 {
			return fmt.Errorf("recurring commitment %q needs at least one weekday", c.Label)
		}
		if !c.From.IsZero() && !c.Until.IsZero() && DateOf(c.Until).Before(DateOf(c.From)) {
			return fmt.Errorf("commitment %q validity window ends before it starts", c.Label)
		}
	case Once:
		if c.Date.IsZero() {
			return fmt.Errorf("one time commitment %q needs a date", c.Label)
		}
	default:
		return fmt.Errorf("commitment %q has unknown kind %q", c.Label, c.Kind)
	}
	return nil
}

func (c Commitment) String() string {
	when := c.Date.Format("2006-01-02")
	if c.IsRecurring() {
		when = FormatWeekdays(c.Weekdays)
	}
	return fmt.Sprintf("%s %s %s-%s", c.Label, when, FormatClock(c.Start), FormatClock(c.End()))
}

// OccursOn reports whether the commitment occupies its slot on the given
// day.
func (c Commitment) OccursOn(day time.Time) bool {
	day = DateOf(day)
	if !c.IsRecurring() {
		return SameDay(c.Date, day)
	}
	if !weekdaysContain(c.Weekdays, day.Weekday()) {
		return false
	}
	if !c.From.IsZero() && day.Before(DateOf(c.From)) {
		return false
	}
	if !c.Until.IsZero() && day.After(DateOf(c.Until)) {
		return false
	}
	return true
}

// At materializes the commitment on a concrete day.
func (c Commitment) At(day time.Time) Occurrence {
	day = DateOf(day)
	return Occurrence{
		CommitmentID: c.ID,
		Label:        c.Label,
		Kind:         c.Kind,
		Location:     c.Location,
		StartAt:      day.Add(c.Start),
		EndAt:        day.Add(c.End()),
	}
}

// Occurrence is one concrete instance of a commitment on a date.
type Occurrence struct {
	CommitmentID string    `json:"commitmentId"`
	Label        string    `json:"label"`
	Kind         Kind      `json:"kind"`
	Location     string    `json:"location,omitempty"`
	StartAt      time.Time `json:"startAt"`
	EndAt        time.Time `json:"endAt"`
}

func (o Occurrence) String() string {
	return fmt.Sprintf("%s-%s %s", o.StartAt.Format("15:04"), o.EndAt.Format("15:04"), o.Label)
}

// Overlaps reports whether the half open intervals [s1, e1) and [s2, e2)
// intersect. Touching ends do not count.
func Overlaps(s1, e1, s2, e2 time.Duration) bool {
	return s1 < e2 && s2 < e1
}

func (c Commitments) Find(id string) (Commitment, bool) {
	for _, cm := range c {
		if cm.ID == id {
			return cm, true
		}
	}
	return Commitment{}, false
}

// Sort orders commitments for listings: recurring entries by first
// weekday and start, one time entries by date.
func (c Commitments) Sort() {
	sort.SliceStable(c, func(i, j int) bool {
		a, b := c[i], c[j]
		if a.IsRecurring() != b.IsRecurring() {
			return a.IsRecurring()
		}
		if a.IsRecurring() {
			if a.Weekdays[0] != b.Weekdays[0] {
				return a.Weekdays[0] < b.Weekdays[0]
			}
		} else if !SameDay(a.Date, b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.ID < b.ID
	})
}

// EffectiveOn expands the commitments on a day and applies precedence: a
// one time entry displaces every recurring occurrence it overlaps, so the
// slot is only counted once.
func (c Commitments) EffectiveOn(day time.Time) []Occurrence {
	day = DateOf(day)
	var once, recurring []Occurrence
	for _, cm := range c {
		if !cm.OccursOn(day) {
			continue
		}
		o := cm.At(day)
		if cm.IsRecurring() {
			recurring = append(recurring, o)
		} else {
			once = append(once, o)
		}
	}
	occurrences := make([]Occurrence, 0, len(once)+len(recurring))
	occurrences = append(occurrences, once...)
	for _, r := range recurring {
		displaced := false
		for _, o := range once {
			if o.StartAt.Before(r.EndAt) && r.StartAt.Before(o.EndAt) {
				displaced = true
				break
			}
		}
		if !displaced {
			occurrences = append(occurrences, r)
		}
	}
	sort.Slice(occurrences, func(i, j int) bool {
		if !occurrences[i].StartAt.Equal(occurrences[j].StartAt) {
			return occurrences[i].StartAt.Before(occurrences[j].StartAt)
		}
		return occurrences[i].CommitmentID < occurrences[j].CommitmentID
	})
	return occurrences
}

// Occurrences expands the commitments over [from, to] with precedence
// applied, day by day.
func (c Commitments) Occurrences(from, to time.Time) []Occurrence {
	occurrences := make([]Occurrence, 0)
	for day := DateOf(from); !day.After(DateOf(to)); day = day.AddDate(0, 0, 1) {
		occurrences = append(occurrences, c.EffectiveOn(day)...)
	}
	return occurrences
}
