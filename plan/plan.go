// Package plan holds the scheduling core: flexible tasks, fixed
// commitments, the conflict rules between calendar entries, and the
// generator that turns remaining effort into a day by day session plan.
package plan

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	MinImportance = 1
	MaxImportance = 5
)

// Task is a flexible piece of work: it carries an effort estimate and a
// deadline, and the scheduler is free to slice it into sessions anywhere
// the fixed commitments leave room.
type Task struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Notes      string        `json:"notes,omitempty"`
	Tags       []string      `json:"tags,omitempty"`
	Estimate   time.Duration `json:"estimate"`
	Importance int           `json:"importance"`
	Deadline   time.Time     `json:"deadline"`
	CreatedAt  time.Time     `json:"createdAt"`
	DoneAt     time.Time     `json:"doneAt"`
}

type Tasks []Task

// IsDone reports whether the user checked the task off. Done tasks keep
// their session history but stop being scheduled.
func (t Task) IsDone() bool {
	return !t.DoneAt.IsZero()
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("task needs a title")
	}
	if t.Estimate <= 0 {
		return fmt.Errorf("task %q needs a positive effort estimate", t.Title)
	}
	if t.Deadline.IsZero() {
		return fmt.Errorf("task %q needs a deadline", t.Title)
	}
	if t.Importance < MinImportance || t.Importance > MaxImportance {
		return fmt.Errorf("task %q importance %d outside %d..%d", t.Title, t.Importance, MinImportance, MaxImportance)
	}
	return nil
}

func (t Task) String() string {
	return fmt.Sprintf("%s: %s due %s", t.Title, FormatDuration(t.Estimate), t.Deadline.Format("2006-01-02"))
}

// LastStudyDay is the last date sessions for the task may land on: the
// day before the deadline, pulled closer by the buffer margin.
func (t Task) LastStudyDay(s Settings) time.Time {
	return DateOf(t.Deadline).AddDate(0, 0, -(1 + s.BufferDays))
}

// PaddedEstimate inflates the raw estimate by the settings factor, so
// chronic underestimation can be corrected in one place.
func (t Task) PaddedEstimate(s Settings) time.Duration {
	if s.EstimateFactor <= 1 {
		return t.Estimate
	}
	return time.Duration(float64(t.Estimate) * s.EstimateFactor).Round(time.Minute)
}

// PriorityScore weighs how urgent a task is on a given day against how
// important the user said it is. Urgency is the pressure of the remaining
// effort on the schedulable days left before the deadline.
func (t Task) PriorityScore(remaining time.Duration, day time.Time, s Settings) float64 {
	last := t.LastStudyDay(s)
	day = DateOf(day)
	if day.After(last) {
		return -1
	}
	daysLeft := int(last.Sub(day)/(24*time.Hour)) + 1
	capacity := time.Duration(daysLeft) * s.MaxDaily
	urgency := 1.0
	if capacity > 0 && remaining < capacity {
		urgency = float64(remaining) / float64(capacity)
	}
	importance := float64(t.Importance) / MaxImportance
	return 0.6*urgency + 0.4*importance
}

func (t Tasks) Find(id string) (Task, bool) {
	for _, task := range t {
		if task.ID == id {
			return task, true
		}
	}
	return Task{}, false
}

// Sort orders tasks the way listings show them: deadline first, then
// importance, then age.
func (t Tasks) Sort() {
	sort.SliceStable(t, func(i, j int) bool {
		if !t[i].Deadline.Equal(t[j].Deadline) {
			return t[i].Deadline.Before(t[j].Deadline)
		}
		if t[i].Importance != t[j].Importance {
			return t[i].Importance > t[j].Importance
		}
		return t[i].CreatedAt.Before(t[j].CreatedAt)
	})
}
