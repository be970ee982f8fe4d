package plan

import (
	"fmt"
	"sort"
	"time"
)

// Status is what storage remembers about a session. Overdue sessions
// keep StatusPending until an audit turns them into StatusMissed.
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusMissed  Status = "missed"
)

// State is how a session looks from the outside at a given moment,
// combining the stored status with the clock.
type State string

const (
	Upcoming   State = "upcoming"
	InProgress State = "in-progress"
	Overdue    State = "overdue"
	Completed  State = "completed"
	Missed     State = "missed"
)

// Session is one scheduled slice of a task.
type Session struct {
	ID          string        `json:"id"`
	TaskID      string        `json:"taskId"`
	Label       string        `json:"label"`
	Tags        []string      `json:"tags,omitempty"`
	Date        time.Time     `json:"date"`
	Start       time.Duration `json:"start"`
	Duration    time.Duration `json:"duration"`
	Seq         int           `json:"seq"`
	Status      Status        `json:"status"`
	CompletedAt time.Time     `json:"completedAt"`
}

type Sessions []Session

func (s Session) IsValid() bool {
	return s.TaskID != "" && !s.Date.IsZero() && s.Duration > 0
}

func (s Session) StartAt() time.Time {
	return DateOf(s.Date).Add(s.Start)
}

func (s Session) EndAt() time.Time {
	return DateOf(s.Date).Add(s.Start + s.Duration)
}

// State derives the live state of the session: stored outcomes win, the
// clock decides the rest.
func (s Session) State(now time.Time) State {
	switch s.Status {
	case StatusDone:
		return Completed
	case StatusMissed:
		return Missed
	}
	if now.Before(s.StartAt()) {
		return Upcoming
	}
	if now.Before(s.EndAt()) {
		return InProgress
	}
	return Overdue
}

func (s Session) String() string {
	return fmt.Sprintf("%s-%s %s", FormatClock(s.Start), FormatClock(s.Start+s.Duration), s.Label)
}

func (s Sessions) Sort() {
	sort.SliceStable(s, func(i, j int) bool {
		if !SameDay(s[i].Date, s[j].Date) {
			return s[i].Date.Before(s[j].Date)
		}
		if s[i].Start != s[j].Start {
			return s[i].Start < s[j].Start
		}
		return s[i].ID < s[j].ID
	})
}

// GroupByDay buckets sessions under the midnight of their day, the shape
// announcement posters consume.
func (s Sessions) GroupByDay() map[time.Time]Sessions {
	groups := make(map[time.Time]Sessions)
	for _, ses := range s {
		day := DateOf(ses.Date)
		groups[day] = append(groups[day], ses)
	}
	for _, g := range groups {
		g.Sort()
	}
	return groups
}

// CompletedByTask sums the effort of completed sessions per task, the
// credit the scheduler subtracts from estimates.
func (s Sessions) CompletedByTask() map[string]time.Duration {
	done := make(map[string]time.Duration)
	for _, ses := range s {
		if ses.Status == StatusDone {
			done[ses.TaskID] += ses.Duration
		}
	}
	return done
}

// TagNames collects the distinct tags across the sessions, first seen
// first.
func (s Sessions) TagNames() []string {
	tags := make([]string, 0)
	for _, ses := range s {
		for _, t := range ses.Tags {
			if !stringsContain(tags, t) {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

// Audit flags pending sessions whose end already passed as missed and
// reports how much effort went missing. Completed sessions and sessions
// already audited are left alone.
func Audit(sessions Sessions, now time.Time) (Sessions, time.Duration) {
	var lost time.Duration
	out := make(Sessions, len(sessions))
	for i, ses := range sessions {
		if ses.Status == StatusPending && !now.Before(ses.EndAt()) {
			ses.Status = StatusMissed
			lost += ses.Duration
		}
		out[i] = ses
	}
	return out, lost
}
