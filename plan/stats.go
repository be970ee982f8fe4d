package plan

import (
	"sort"
	"time"
)

type DayStats struct {
	Date      time.Time     `json:"date"`
	Planned   time.Duration `json:"planned"`
	Completed time.Duration `json:"completed"`
	Missed    time.Duration `json:"missed"`
	Sessions  int           `json:"sessions"`
}

type TagStats struct {
	Tag       string        `json:"tag"`
	Planned   time.Duration `json:"planned"`
	Completed time.Duration `json:"completed"`
}

type TaskProgress struct {
	TaskID    string        `json:"taskId"`
	Title     string        `json:"title"`
	Estimate  time.Duration `json:"estimate"`
	Done      time.Duration `json:"done"`
	Remaining time.Duration `json:"remaining"`
	Deadline  time.Time     `json:"deadline"`
	AtRisk    bool          `json:"atRisk,omitempty"`
}

// RangeStats is the dashboard feed: plain numbers, no rendering.
type RangeStats struct {
	From           time.Time      `json:"from"`
	To             time.Time      `json:"to"`
	Planned        time.Duration  `json:"planned"`
	Completed      time.Duration  `json:"completed"`
	Missed         time.Duration  `json:"missed"`
	CompletionRate float64        `json:"completionRate"`
	Days           []DayStats     `json:"days,omitempty"`
	Tags           []TagStats     `json:"tags,omitempty"`
	Tasks          []TaskProgress `json:"tasks,omitempty"`
}

// Aggregate summarizes sessions for dashboards. Totals, the per day and
// per tag breakdowns cover sessions dated inside [from, to]; the per
// task progress covers every session it is handed, because progress is
// not a windowed quantity. Overdue sessions count as missed here whether
// or not an audit ran. The completion rate compares completed against
// elapsed work only.
func Aggregate(tasks Tasks, sessions Sessions, s Settings, now, from, to time.Time) RangeStats {
	s = s.Normalized()
	from, to = DateOf(from), DateOf(to)
	st := RangeStats{From: from, To: to}

	days := make(map[time.Time]*DayStats)
	tagged := make(map[string]*TagStats)
	doneByTask := make(map[string]time.Duration)

	for _, ses := range sessions {
		if ses.Status == StatusDone {
			doneByTask[ses.TaskID] += ses.Duration
		}
		day := DateOf(ses.Date)
		if day.Before(from) || day.After(to) {
			continue
		}
		d, ok := days[day]
		if !ok {
			d = &DayStats{Date: day}
			days[day] = d
		}
		d.Planned += ses.Duration
		d.Sessions++
		st.Planned += ses.Duration

		completed, missed := time.Duration(0), time.Duration(0)
		switch ses.State(now) {
		case Completed:
			completed = ses.Duration
		case Missed, Overdue:
			missed = ses.Duration
		}
		d.Completed += completed
		d.Missed += missed
		st.Completed += completed
		st.Missed += missed

		for _, tag := range ses.Tags {
			tg, ok := tagged[tag]
			if !ok {
				tg = &TagStats{Tag: tag}
				tagged[tag] = tg
			}
			tg.Planned += ses.Duration
			tg.Completed += completed
		}
	}

	if elapsed := st.Completed + st.Missed; elapsed > 0 {
		st.CompletionRate = float64(st.Completed) / float64(elapsed)
	}

	st.Days = make([]DayStats, 0, len(days))
	for _, d := range days {
		st.Days = append(st.Days, *d)
	}
	sort.Slice(st.Days, func(i, j int) bool { return st.Days[i].Date.Before(st.Days[j].Date) })

	st.Tags = make([]TagStats, 0, len(tagged))
	for _, t := range tagged {
		st.Tags = append(st.Tags, *t)
	}
	sort.Slice(st.Tags, func(i, j int) bool {
		if st.Tags[i].Planned != st.Tags[j].Planned {
			return st.Tags[i].Planned > st.Tags[j].Planned
		}
		return st.Tags[i].Tag < st.Tags[j].Tag
	})

	st.Tasks = make([]TaskProgress, 0, len(tasks))
	for _, t := range tasks {
		done := doneByTask[t.ID]
		remaining := t.Estimate - done
		if remaining < 0 || t.IsDone() {
			remaining = 0
		}
		st.Tasks = append(st.Tasks, TaskProgress{
			TaskID:    t.ID,
			Title:     t.Title,
			Estimate:  t.Estimate,
			Done:      done,
			Remaining: remaining,
			Deadline:  t.Deadline,
			AtRisk:    remaining > 0 && remaining > capacityLeft(t, s, now),
		})
	}
	sort.Slice(st.Tasks, func(i, j int) bool {
		if !st.Tasks[i].Deadline.Equal(st.Tasks[j].Deadline) {
			return st.Tasks[i].Deadline.Before(st.Tasks[j].Deadline)
		}
		return st.Tasks[i].TaskID < st.Tasks[j].TaskID
	})
	return st
}

// capacityLeft is the most study time the settings allow between now and
// the task's last study day.
func capacityLeft(t Task, s Settings, now time.Time) time.Duration {
	last := t.LastStudyDay(s)
	capacity := time.Duration(0)
	for day := DateOf(now); !day.After(last); day = day.AddDate(0, 0, 1) {
		if s.IsRestDay(day.Weekday()) {
			continue
		}
		capacity += s.MaxDaily
	}
	return capacity
}
