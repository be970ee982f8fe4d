package api

import (
	"sort"
	"strings"
	"time"

	"github.com/rs/xid"

	"git.sr.ht/~mariusor/metis/plan"
)

// taskRequest is the wire shape of a task: durations as "1h30m", dates
// as "2026-01-05". Tags come from the explicit list plus any hashtags
// in the title or notes.
type taskRequest struct {
	Title      string   `json:"title"`
	Notes      string   `json:"notes"`
	Tags       []string `json:"tags"`
	Estimate   string   `json:"estimate"`
	Importance int      `json:"importance"`
	Deadline   string   `json:"deadline"`
}

func (r taskRequest) task(now time.Time) (plan.Task, error) {
	t := plan.Task{
		ID:         xid.New().String(),
		Title:      strings.TrimSpace(r.Title),
		Notes:      r.Notes,
		Tags:       plan.MergeTags(r.Tags, r.Title, r.Notes),
		Importance: r.Importance,
		CreatedAt:  now,
	}
	if t.Importance == 0 {
		t.Importance = 3
	}
	var err error
	if t.Estimate, err = time.ParseDuration(r.Estimate); err != nil {
		return t, badRequestf("invalid estimate %q: %s", r.Estimate, err)
	}
	if t.Deadline, err = parseDate(r.Deadline, time.Time{}); err != nil {
		return t, err
	}
	if err = t.Validate(); err != nil {
		return t, badRequestf("%s", err)
	}
	return t, nil
}

// commitmentRequest is the wire shape of a commitment. Clocks come as
// "10:00", the slot length either as a duration "1h30m" or an end
// clock. An entry with a date is one time, one with weekdays recurs.
type commitmentRequest struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Kind     string   `json:"kind"`
	Weekdays []string `json:"weekdays"`
	Date     string   `json:"date"`
	From     string   `json:"from"`
	Until    string   `json:"until"`
	Start    string   `json:"start"`
	End      string   `json:"end"`
	Duration string   `json:"duration"`
	Location string   `json:"location"`
}

func (r commitmentRequest) commitment(now time.Time) (plan.Commitment, error) {
	c := plan.Commitment{
		ID:           r.ID,
		Label:        strings.TrimSpace(r.Label),
		Kind:         plan.Kind(r.Kind),
		Location:     r.Location,
		CreatedAt:    now,
		LastModified: now,
	}
	for _, name := range r.Weekdays {
		day, err := plan.ParseWeekday(name)
		if err != nil {
			return c, badRequestf("%s", err)
		}
		seen := false
		for _, have := range c.Weekdays {
			if have == day {
				seen = true
				break
			}
		}
		if !seen {
			c.Weekdays = append(c.Weekdays, day)
		}
	}
	sort.Slice(c.Weekdays, func(i, j int) bool { return c.Weekdays[i] < c.Weekdays[j] })

	var err error
	if c.Date, err = parseDate(r.Date, time.Time{}); err != nil {
		return c, err
	}
	if c.From, err = parseDate(r.From, time.Time{}); err != nil {
		return c, err
	}
	if c.Until, err = parseDate(r.Until, time.Time{}); err != nil {
		return c, err
	}
	if c.Kind == "" {
		if !c.Date.IsZero() {
			c.Kind = plan.Once
		} else {
			c.Kind = plan.Recurring
		}
	}
	if c.Start, err = plan.ParseClock(r.Start); err != nil {
		return c, badRequestf("invalid start %q: %s", r.Start, err)
	}
	switch {
	case r.Duration != "":
		if c.Duration, err = time.ParseDuration(r.Duration); err != nil {
			return c, badRequestf("invalid duration %q: %s", r.Duration, err)
		}
	case r.End != "":
		end, err := plan.ParseClock(r.End)
		if err != nil {
			return c, badRequestf("invalid end %q: %s", r.End, err)
		}
		c.Duration = end - c.Start
	default:
		return c, badRequestf("commitment %q needs a duration or an end clock", r.Label)
	}
	if err = c.Validate(); err != nil {
		return c, badRequestf("%s", err)
	}
	return c, nil
}
