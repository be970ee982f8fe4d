package plan

import (
	"testing"
	"time"
)

func TestSessionState(t *testing.T) {
	monday := date(2026, time.January, 5)
	session := func(status Status, start, dur time.Duration) Session {
		return Session{ID: "s1", TaskID: "t1", Date: monday, Start: start, Duration: dur, Status: status}
	}
	now := monday.Add(10 * time.Hour)

	tests := []struct {
		name string
		s    Session
		want State
	}{
		{"pending before start", session(StatusPending, 11*time.Hour, time.Hour), Upcoming},
		{"pending at start", session(StatusPending, 10*time.Hour, time.Hour), InProgress},
		{"pending mid slot", session(StatusPending, 9*time.Hour+30*time.Minute, time.Hour), InProgress},
		{"pending at end", session(StatusPending, 9*time.Hour, time.Hour), Overdue},
		{"pending long past", session(StatusPending, 7*time.Hour, time.Hour), Overdue},
		{"done stays completed", session(StatusDone, 11*time.Hour, time.Hour), Completed},
		{"audited missed stays missed", session(StatusMissed, 11*time.Hour, time.Hour), Missed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.State(now); got != tt.want {
				t.Errorf("State(%s) = %q, wanted %q", now.Format("15:04"), got, tt.want)
			}
		})
	}
}

func TestAudit(t *testing.T) {
	monday := date(2026, time.January, 5)
	now := date(2026, time.January, 7).Add(12 * time.Hour)
	sessions := Sessions{
		{ID: "s1", TaskID: "t1", Date: monday, Start: 9 * time.Hour, Duration: time.Hour, Status: StatusPending},
		{ID: "s2", TaskID: "t1", Date: monday, Start: 11 * time.Hour, Duration: 2 * time.Hour, Status: StatusDone},
		{ID: "s3", TaskID: "t2", Date: date(2026, time.January, 7), Start: 10 * time.Hour, Duration: time.Hour, Status: StatusPending},
		{ID: "s4", TaskID: "t2", Date: date(2026, time.January, 8), Start: 10 * time.Hour, Duration: time.Hour, Status: StatusPending},
	}

	audited, lost := Audit(sessions, now)
	if want := 2 * time.Hour; lost != want {
		t.Errorf("Audit() lost %s, wanted %s", lost, want)
	}
	wantStatus := []Status{StatusMissed, StatusDone, StatusMissed, StatusPending}
	for i, s := range audited {
		if s.Status != wantStatus[i] {
			t.Errorf("session %s status = %q, wanted %q", s.ID, s.Status, wantStatus[i])
		}
	}
	// the input set stays untouched
	if sessions[0].Status != StatusPending {
		t.Errorf("Audit() modified its input")
	}
}

func TestSessionsCompletedByTask(t *testing.T) {
	monday := date(2026, time.January, 5)
	sessions := Sessions{
		{ID: "s1", TaskID: "t1", Date: monday, Start: 9 * time.Hour, Duration: time.Hour, Status: StatusDone},
		{ID: "s2", TaskID: "t1", Date: monday, Start: 11 * time.Hour, Duration: 30 * time.Minute, Status: StatusDone},
		{ID: "s3", TaskID: "t1", Date: monday, Start: 14 * time.Hour, Duration: time.Hour, Status: StatusMissed},
		{ID: "s4", TaskID: "t2", Date: monday, Start: 16 * time.Hour, Duration: time.Hour, Status: StatusPending},
	}
	done := sessions.CompletedByTask()
	if want := 90 * time.Minute; done["t1"] != want {
		t.Errorf("completed for t1 = %s, wanted %s", done["t1"], want)
	}
	if _, ok := done["t2"]; ok {
		t.Errorf("pending sessions should not credit any effort")
	}
}

func TestSessionsGroupByDay(t *testing.T) {
	monday := date(2026, time.January, 5)
	tuesday := date(2026, time.January, 6)
	sessions := Sessions{
		{ID: "s2", TaskID: "t1", Date: monday, Start: 14 * time.Hour, Duration: time.Hour},
		{ID: "s1", TaskID: "t1", Date: monday, Start: 9 * time.Hour, Duration: time.Hour},
		{ID: "s3", TaskID: "t2", Date: tuesday, Start: 9 * time.Hour, Duration: time.Hour},
	}
	groups := sessions.GroupByDay()
	if len(groups) != 2 {
		t.Fatalf("GroupByDay() produced %d groups, wanted 2", len(groups))
	}
	if got := groups[monday]; len(got) != 2 || got[0].ID != "s1" {
		t.Errorf("monday group = %v, wanted s1 first", got)
	}
	if got := groups[tuesday]; len(got) != 1 {
		t.Errorf("tuesday group = %v", got)
	}
}
