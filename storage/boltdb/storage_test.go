package boltdb

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"git.sr.ht/~mariusor/metis/plan"
	"git.sr.ht/~mariusor/metis/storage"
)

func testRepo(t *testing.T) *repo {
	t.Helper()
	return New(Config{Path: filepath.Join(t.TempDir(), DefaultFile)})
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTaskRoundTrip(t *testing.T) {
	r := testRepo(t)

	tasks := plan.Tasks{
		{ID: "t2", Title: "Biology", Estimate: 2 * time.Hour, Importance: 2, Deadline: date(2026, time.February, 1)},
		{ID: "t1", Title: "Algebra", Estimate: 3 * time.Hour, Importance: 4, Deadline: date(2026, time.January, 9)},
	}
	if err := r.SaveTasks(tasks...); err != nil {
		t.Fatalf("SaveTasks() error: %s", err)
	}

	got, err := r.LoadTasks()
	if err != nil {
		t.Fatalf("LoadTasks() error: %s", err)
	}
	if len(got) != 2 {
		t.Fatalf("LoadTasks() = %d tasks, wanted 2", len(got))
	}
	// listings come back deadline first
	if got[0].ID != "t1" || got[1].ID != "t2" {
		t.Errorf("LoadTasks() order = %s, %s", got[0].ID, got[1].ID)
	}

	one, err := r.LoadTask("t2")
	if err != nil {
		t.Fatalf("LoadTask() error: %s", err)
	}
	if one.Title != "Biology" || one.Estimate != 2*time.Hour {
		t.Errorf("LoadTask() = %+v", one)
	}
}

func TestLoadTaskNotFound(t *testing.T) {
	r := testRepo(t)
	if _, err := r.LoadTask("nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("LoadTask() error = %v, wanted ErrNotFound", err)
	}
}

func TestSaveTaskWithoutID(t *testing.T) {
	r := testRepo(t)
	err := r.SaveTasks(plan.Task{Title: "floating"})
	if err == nil {
		t.Errorf("a task without an id should not be storable")
	}
}

func TestRemoveTasks(t *testing.T) {
	r := testRepo(t)
	if err := r.SaveTasks(plan.Task{ID: "t1", Title: "Algebra", Estimate: time.Hour, Importance: 3, Deadline: date(2026, time.January, 9)}); err != nil {
		t.Fatal(err)
	}
	if err := r.RemoveTasks("t1"); err != nil {
		t.Fatalf("RemoveTasks() error: %s", err)
	}
	if _, err := r.LoadTask("t1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("task survived removal: %v", err)
	}
	if err := r.RemoveTasks("t1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("RemoveTasks() on a missing id = %v, wanted ErrNotFound", err)
	}
}

func TestCommitmentRoundTrip(t *testing.T) {
	r := testRepo(t)

	c := plan.Commitment{
		ID: "c1", Label: "Lectures", Kind: plan.Recurring,
		Weekdays: []time.Weekday{time.Monday, time.Wednesday},
		Start:    10 * time.Hour, Duration: 2 * time.Hour,
	}
	if err := r.SaveCommitments(c); err != nil {
		t.Fatalf("SaveCommitments() error: %s", err)
	}

	got, err := r.LoadCommitment("c1")
	if err != nil {
		t.Fatalf("LoadCommitment() error: %s", err)
	}
	if got.Label != c.Label || got.Start != c.Start || len(got.Weekdays) != 2 {
		t.Errorf("LoadCommitment() = %+v", got)
	}

	all, err := r.LoadCommitments()
	if err != nil {
		t.Fatalf("LoadCommitments() error: %s", err)
	}
	if len(all) != 1 {
		t.Errorf("LoadCommitments() = %d entries", len(all))
	}

	if err = r.RemoveCommitments("c1"); err != nil {
		t.Fatalf("RemoveCommitments() error: %s", err)
	}
	if _, err = r.LoadCommitment("c1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("commitment survived removal: %v", err)
	}
}

func session(id, task string, day time.Time, start time.Duration, status plan.Status) plan.Session {
	return plan.Session{
		ID: id, TaskID: task, Label: task,
		Date: day, Start: start, Duration: time.Hour,
		Status: status,
	}
}

func TestSessionCursorRanges(t *testing.T) {
	r := testRepo(t)

	// spread across a month boundary to force distinct bucket subtrees
	sessions := plan.Sessions{
		session("s1", "t1", date(2026, time.January, 30), 9*time.Hour, plan.StatusPending),
		session("s2", "t1", date(2026, time.January, 31), 9*time.Hour, plan.StatusPending),
		session("s3", "t1", date(2026, time.February, 1), 9*time.Hour, plan.StatusPending),
		session("s4", "t1", date(2026, time.February, 7), 9*time.Hour, plan.StatusPending),
	}
	if err := r.SaveSessions(sessions...); err != nil {
		t.Fatalf("SaveSessions() error: %s", err)
	}

	tests := []struct {
		name   string
		cursor storage.DateCursor
		want   []string
	}{
		{
			name:   "single day",
			cursor: storage.Cursor(date(2026, time.January, 31), 0),
			want:   []string{"s2"},
		},
		{
			name:   "forward across the month boundary",
			cursor: storage.Cursor(date(2026, time.January, 31), 24*time.Hour),
			want:   []string{"s2", "s3"},
		},
		{
			name:   "backward cursor",
			cursor: storage.Cursor(date(2026, time.February, 1), -2*24*time.Hour),
			want:   []string{"s1", "s2", "s3"},
		},
		{
			name:   "full week",
			cursor: storage.Cursor(date(2026, time.January, 30), 8*24*time.Hour),
			want:   []string{"s1", "s2", "s3", "s4"},
		},
		{
			name:   "empty range",
			cursor: storage.Cursor(date(2026, time.March, 1), 24*time.Hour),
			want:   []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.LoadSessions(tt.cursor)
			if err != nil {
				t.Fatalf("LoadSessions() error: %s", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("LoadSessions() = %d sessions, wanted %d: %v", len(got), len(tt.want), got)
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("session[%d] = %s, wanted %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestSessionOverwriteByID(t *testing.T) {
	r := testRepo(t)
	day := date(2026, time.January, 5)

	s := session("s1", "t1", day, 9*time.Hour, plan.StatusPending)
	if err := r.SaveSessions(s); err != nil {
		t.Fatal(err)
	}
	s.Status = plan.StatusDone
	s.CompletedAt = day.Add(10 * time.Hour)
	if err := r.SaveSessions(s); err != nil {
		t.Fatal(err)
	}

	got, err := r.LoadSessions(storage.Cursor(day, 0))
	if err != nil {
		t.Fatalf("LoadSessions() error: %s", err)
	}
	if len(got) != 1 {
		t.Fatalf("LoadSessions() = %d sessions, wanted the overwrite to collapse", len(got))
	}
	if got[0].Status != plan.StatusDone {
		t.Errorf("session status = %q, wanted done", got[0].Status)
	}
}

func TestRemovePendingSessions(t *testing.T) {
	r := testRepo(t)
	sessions := plan.Sessions{
		session("s1", "t1", date(2026, time.January, 4), 9*time.Hour, plan.StatusPending),
		session("s2", "t1", date(2026, time.January, 5), 9*time.Hour, plan.StatusDone),
		session("s3", "t1", date(2026, time.January, 5), 11*time.Hour, plan.StatusPending),
		session("s4", "t1", date(2026, time.January, 6), 9*time.Hour, plan.StatusMissed),
		session("s5", "t1", date(2026, time.January, 7), 9*time.Hour, plan.StatusPending),
	}
	if err := r.SaveSessions(sessions...); err != nil {
		t.Fatal(err)
	}

	removed, err := r.RemovePendingSessions(date(2026, time.January, 5))
	if err != nil {
		t.Fatalf("RemovePendingSessions() error: %s", err)
	}
	if removed != 2 {
		t.Errorf("removed %d sessions, wanted 2", removed)
	}

	left, err := r.LoadSessions(storage.Cursor(date(2026, time.January, 4), 4*24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	ids := make([]string, 0, len(left))
	for _, s := range left {
		ids = append(ids, s.ID)
	}
	want := []string{"s1", "s2", "s4"}
	if len(ids) != len(want) {
		t.Fatalf("surviving sessions = %v, wanted %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("survivor[%d] = %s, wanted %s", i, ids[i], want[i])
		}
	}
}

func TestSaveInvalidSession(t *testing.T) {
	r := testRepo(t)
	if err := r.SaveSessions(plan.Session{ID: "s1"}); err == nil {
		t.Errorf("an invalid session should not be storable")
	}
	if err := r.SaveSessions(session("", "t1", date(2026, time.January, 5), 9*time.Hour, plan.StatusPending)); err == nil {
		t.Errorf("a session without an id should not be storable")
	}
}
