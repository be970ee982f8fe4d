package plan

import (
	"testing"
	"time"
)

func TestAggregate(t *testing.T) {
	monday := date(2026, time.January, 5)
	tuesday := date(2026, time.January, 6)
	now := tuesday.Add(20 * time.Hour)

	tasks := Tasks{
		task("t1", "Algebra", 4*time.Hour, date(2026, time.January, 9), 4),
		task("t2", "Biology", 2*time.Hour, date(2026, time.January, 16), 2),
	}
	sessions := Sessions{
		{ID: "s1", TaskID: "t1", Tags: []string{"math"}, Date: monday, Start: 9 * time.Hour, Duration: 2 * time.Hour, Status: StatusDone},
		{ID: "s2", TaskID: "t1", Tags: []string{"math"}, Date: monday, Start: 14 * time.Hour, Duration: time.Hour, Status: StatusMissed},
		{ID: "s3", TaskID: "t2", Tags: []string{"bio"}, Date: tuesday, Start: 9 * time.Hour, Duration: time.Hour, Status: StatusPending},
		// overdue but unaudited: counts as missed for the dashboard
		{ID: "s4", TaskID: "t2", Tags: []string{"bio"}, Date: date(2026, time.January, 7), Start: 9 * time.Hour, Duration: time.Hour, Status: StatusPending},
	}

	st := Aggregate(tasks, sessions, testSettings(), now, monday, tuesday)

	if want := 4 * time.Hour; st.Planned != want {
		t.Errorf("planned = %s, wanted %s", st.Planned, want)
	}
	if want := 2 * time.Hour; st.Completed != want {
		t.Errorf("completed = %s, wanted %s", st.Completed, want)
	}
	// s2 missed, s3 elapsed unaudited; s4 is outside the window
	if want := 2 * time.Hour; st.Missed != want {
		t.Errorf("missed = %s, wanted %s", st.Missed, want)
	}
	if want := 0.5; st.CompletionRate != want {
		t.Errorf("completion rate = %v, wanted %v", st.CompletionRate, want)
	}

	if len(st.Days) != 2 {
		t.Fatalf("days = %v", st.Days)
	}
	if st.Days[0].Planned != 3*time.Hour || st.Days[0].Sessions != 2 {
		t.Errorf("monday stats = %+v", st.Days[0])
	}

	if len(st.Tags) != 2 || st.Tags[0].Tag != "math" {
		t.Fatalf("tags = %v, wanted math first by planned time", st.Tags)
	}
	if st.Tags[0].Completed != 2*time.Hour {
		t.Errorf("math completed = %s", st.Tags[0].Completed)
	}

	if len(st.Tasks) != 2 || st.Tasks[0].TaskID != "t1" {
		t.Fatalf("tasks = %v, wanted t1 first by deadline", st.Tasks)
	}
	if st.Tasks[0].Done != 2*time.Hour || st.Tasks[0].Remaining != 2*time.Hour {
		t.Errorf("t1 progress = %+v", st.Tasks[0])
	}
}

func TestAggregateFlagsTasksAtRisk(t *testing.T) {
	monday := date(2026, time.January, 5)
	now := monday.Add(8 * time.Hour)

	// two study days left before the deadline at 4h each
	relaxed := task("t1", "Doable", 6*time.Hour, date(2026, time.January, 7), 3)
	doomed := task("t2", "Doomed", 20*time.Hour, date(2026, time.January, 7), 3)

	st := Aggregate(Tasks{relaxed, doomed}, nil, testSettings(), now, monday, monday)
	if len(st.Tasks) != 2 {
		t.Fatalf("tasks = %v", st.Tasks)
	}
	for _, tp := range st.Tasks {
		switch tp.TaskID {
		case "t1":
			if tp.AtRisk {
				t.Errorf("%s flagged at risk with enough capacity left", tp.Title)
			}
		case "t2":
			if !tp.AtRisk {
				t.Errorf("%s not flagged at risk", tp.Title)
			}
		}
	}
}

func TestAggregateEmpty(t *testing.T) {
	monday := date(2026, time.January, 5)
	st := Aggregate(nil, nil, testSettings(), monday, monday, monday)
	if st.Planned != 0 || st.CompletionRate != 0 {
		t.Errorf("empty aggregate = %+v", st)
	}
	if len(st.Days) != 0 || len(st.Tags) != 0 || len(st.Tasks) != 0 {
		t.Errorf("empty aggregate carries breakdowns: %+v", st)
	}
}
