package plan

import (
	"sort"
	"time"
)

// Plan is what BuildPlan produces: sessions laid out day by day around
// the fixed commitments, plus whatever effort could not be placed in
// time.
type Plan struct {
	From        time.Time   `json:"from"`
	Days        []DayPlan   `json:"days"`
	Unscheduled []Shortfall `json:"unscheduled,omitempty"`
}

type DayPlan struct {
	Date     time.Time     `json:"date"`
	Sessions Sessions      `json:"sessions,omitempty"`
	Busy     []Occurrence  `json:"busy,omitempty"`
	Free     time.Duration `json:"free"`
}

// Shortfall records effort that could not be scheduled before its
// deadline. It is reported, never silently dropped.
type Shortfall struct {
	TaskID   string        `json:"taskId"`
	Title    string        `json:"title"`
	Missing  time.Duration `json:"missing"`
	Deadline time.Time     `json:"deadline"`
}

func (p Plan) Sessions() Sessions {
	sessions := make(Sessions, 0)
	for _, d := range p.Days {
		sessions = append(sessions, d.Sessions...)
	}
	return sessions
}

type span struct {
	from, to time.Duration
}

func (s span) length() time.Duration {
	return s.to - s.from
}

type work struct {
	task      Task
	remaining time.Duration
	seq       int
}

// BuildPlan lays out study sessions for every schedulable day starting
// at from: tasks are picked by priority, sliced into chunks between
// SessionMin and SessionMax, placed into the free windows the effective
// commitment occurrences leave inside the study day, and capped by the
// daily maximum. Rest days get no sessions and nothing is placed on or
// after a task's deadline, minus the buffer margin. When from carries a
// clock, the first day only admits sessions from that clock on, rounded
// up to the quarter hour. The function is pure: the same inputs produce
// the same plan.
func BuildPlan(tasks Tasks, done map[string]time.Duration, commitments Commitments, s Settings, from time.Time) Plan {
	s = s.Normalized()
	start := DateOf(from)
	floor := from.Sub(start)
	if rem := floor % (15 * time.Minute); rem > 0 {
		floor += 15*time.Minute - rem
	}
	p := Plan{From: start, Days: make([]DayPlan, 0)}

	pending := make([]*work, 0, len(tasks))
	for _, t := range tasks {
		if t.IsDone() {
			continue
		}
		remaining := t.PaddedEstimate(s) - done[t.ID]
		if remaining <= 0 {
			continue
		}
		pending = append(pending, &work{task: t, remaining: remaining})
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].task.Deadline.Equal(pending[j].task.Deadline) {
			return pending[i].task.Deadline.Before(pending[j].task.Deadline)
		}
		return pending[i].task.ID < pending[j].task.ID
	})

	lastID := ""
	for d := 0; d < s.HorizonDays; d++ {
		date := start.AddDate(0, 0, d)
		busy := commitments.EffectiveOn(date)
		dp := DayPlan{Date: date, Busy: busy}
		if !s.IsRestDay(date.Weekday()) {
			windows := freeWindows(s, date, busy)
			if d == 0 && floor > 0 {
				windows = clipWindows(windows, floor)
			}
			capacity := windowCapacity(windows)
			used := time.Duration(0)
			dayLeft := s.MaxDaily
			for _, win := range windows {
				cursor := win.from
				for dayLeft > 0 {
					space := win.to - cursor
					if space > dayLeft {
						space = dayLeft
					}
					if space <= 0 {
						break
					}
					w := pickTask(pending, date, s, lastID, space)
					if w == nil {
						break
					}
					chunk := s.SessionMax
					if w.remaining < chunk {
						chunk = w.remaining
					}
					if space < chunk {
						chunk = space
					}
					dp.Sessions = append(dp.Sessions, Session{
						TaskID:   w.task.ID,
						Label:    w.task.Title,
						Tags:     w.task.Tags,
						Date:     date,
						Start:    cursor,
						Duration: chunk,
						Seq:      w.seq,
						Status:   StatusPending,
					})
					w.seq++
					w.remaining -= chunk
					used += chunk
					dayLeft -= chunk
					cursor += chunk + s.Break
					lastID = w.task.ID
				}
				if dayLeft <= 0 {
					break
				}
			}
			dp.Free = capacity - used
		}
		p.Days = append(p.Days, dp)
	}

	// trailing days carrying nothing are noise
	for len(p.Days) > 0 {
		last := p.Days[len(p.Days)-1]
		if len(last.Sessions) > 0 || len(last.Busy) > 0 {
			break
		}
		p.Days = p.Days[:len(p.Days)-1]
	}

	for _, w := range pending {
		if w.remaining > 0 {
			p.Unscheduled = append(p.Unscheduled, Shortfall{
				TaskID:   w.task.ID,
				Title:    w.task.Title,
				Missing:  w.remaining,
				Deadline: w.task.Deadline,
			})
		}
	}
	return p
}

func windowCapacity(windows []span) time.Duration {
	capacity := time.Duration(0)
	for _, win := range windows {
		capacity += win.length()
	}
	return capacity
}

// clipWindows drops the part of the day already behind the floor clock.
func clipWindows(windows []span, floor time.Duration) []span {
	clipped := make([]span, 0, len(windows))
	for _, win := range windows {
		if win.to <= floor {
			continue
		}
		if win.from < floor {
			win.from = floor
		}
		clipped = append(clipped, win)
	}
	return clipped
}

// FreeCapacity is the study time the busy occurrences leave inside the
// day window.
func FreeCapacity(s Settings, date time.Time, busy []Occurrence) time.Duration {
	return windowCapacity(freeWindows(s.Normalized(), date, busy))
}

// freeWindows carves the study day [DayStart, DayEnd) around the busy
// occurrences, which must come in sorted by start.
func freeWindows(s Settings, date time.Time, busy []Occurrence) []span {
	day := DateOf(date)
	windows := make([]span, 0, len(busy)+1)
	cursor := s.DayStart
	for _, o := range busy {
		from := o.StartAt.Sub(day)
		to := o.EndAt.Sub(day)
		if to <= cursor {
			continue
		}
		if from > cursor {
			end := from
			if end > s.DayEnd {
				end = s.DayEnd
			}
			windows = append(windows, span{from: cursor, to: end})
		}
		if to > cursor {
			cursor = to
		}
		if cursor >= s.DayEnd {
			return windows
		}
	}
	if cursor < s.DayEnd {
		windows = append(windows, span{from: cursor, to: s.DayEnd})
	}
	return windows
}

// pickTask selects the next task to slice: highest priority first, with
// deadline and ID as deterministic tie breaks. When rotation is on and
// another task is runnable, the task that just ran is passed over. Gaps
// shorter than SessionMin only admit tasks whose whole remainder fits.
func pickTask(pending []*work, date time.Time, s Settings, lastID string, space time.Duration) *work {
	better := func(w *work, score float64, than *work, thanScore float64) bool {
		if than == nil {
			return true
		}
		if score != thanScore {
			return score > thanScore
		}
		if !w.task.Deadline.Equal(than.task.Deadline) {
			return w.task.Deadline.Before(than.task.Deadline)
		}
		return w.task.ID < than.task.ID
	}

	var best, other *work
	bestScore, otherScore := -1.0, -1.0
	for _, w := range pending {
		if w.remaining <= 0 {
			continue
		}
		if date.After(w.task.LastStudyDay(s)) {
			continue
		}
		if space < s.SessionMin && w.remaining > space {
			continue
		}
		score := w.task.PriorityScore(w.remaining, date, s)
		if better(w, score, best, bestScore) {
			best, bestScore = w, score
		}
		if w.task.ID != lastID && better(w, score, other, otherScore) {
			other, otherScore = w, score
		}
	}
	if s.RotateTasks && best != nil && best.task.ID == lastID && other != nil {
		return other
	}
	return best
}
