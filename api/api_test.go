package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"git.sr.ht/~mariusor/metis/plan"
	"git.sr.ht/~mariusor/metis/storage/boltdb"
)

func testServer(t *testing.T, now time.Time) (*httptest.Server, *handler) {
	t.Helper()
	tmp := t.TempDir()
	h := newHandler(Config{
		Storage:      boltdb.New(boltdb.Config{Path: filepath.Join(tmp, boltdb.DefaultFile)}),
		SettingsPath: filepath.Join(tmp, "settings.json"),
		Version:      "test",
		BaseURL:      "http://metis.local",
	})
	h.now = func() time.Time { return now }
	srv := httptest.NewServer(h.routes())
	t.Cleanup(srv.Close)
	return srv, h
}

func do(t *testing.T, method, url string, body interface{}) *http.Response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatal(err)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %s", method, url, err)
	}
	return res
}

func decode(t *testing.T, res *http.Response, into interface{}) {
	t.Helper()
	defer res.Body.Close()
	if err := json.NewDecoder(res.Body).Decode(into); err != nil {
		t.Fatalf("unable to decode response: %s", err)
	}
}

func monday() time.Time {
	return time.Date(2026, time.January, 5, 0, 0, 0, 0, time.Local)
}

func TestTaskLifecycle(t *testing.T) {
	srv, _ := testServer(t, monday().Add(7*time.Hour))

	res := do(t, http.MethodPost, srv.URL+"/tasks", map[string]interface{}{
		"title": "Algebra #math", "estimate": "3h", "deadline": "2026-01-09", "importance": 4,
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("POST /tasks = %d, wanted 201", res.StatusCode)
	}
	created := plan.Task{}
	decode(t, res, &created)
	if created.ID == "" {
		t.Errorf("created task has no id")
	}
	if created.Estimate != 3*time.Hour || created.Importance != 4 {
		t.Errorf("created task = %+v", created)
	}
	if len(created.Tags) != 1 || created.Tags[0] != "math" {
		t.Errorf("tags from the title = %v, wanted [math]", created.Tags)
	}

	res = do(t, http.MethodGet, srv.URL+"/tasks", nil)
	tasks := plan.Tasks{}
	decode(t, res, &tasks)
	if len(tasks) != 1 {
		t.Fatalf("GET /tasks = %d tasks, wanted 1", len(tasks))
	}

	res = do(t, http.MethodPost, srv.URL+"/tasks/"+created.ID+"/done", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("POST done = %d, wanted 200", res.StatusCode)
	}
	checked := plan.Task{}
	decode(t, res, &checked)
	if !checked.IsDone() {
		t.Errorf("task not checked off: %+v", checked)
	}

	res = do(t, http.MethodDelete, srv.URL+"/tasks/"+created.ID, nil)
	res.Body.Close()
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("DELETE = %d, wanted 204", res.StatusCode)
	}
	res = do(t, http.MethodDelete, srv.URL+"/tasks/"+created.ID, nil)
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("second DELETE = %d, wanted 404", res.StatusCode)
	}
}

func TestTaskValidation(t *testing.T) {
	srv, _ := testServer(t, monday())
	res := do(t, http.MethodPost, srv.URL+"/tasks", map[string]interface{}{
		"title": "Algebra", "estimate": "soon", "deadline": "2026-01-09",
	})
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("POST /tasks with a broken estimate = %d, wanted 400", res.StatusCode)
	}
}

type commitmentEnvelope struct {
	Commitment plan.Commitment `json:"commitment"`
	Conflicts  plan.Conflicts  `json:"conflicts"`
}

func TestCommitmentConflicts(t *testing.T) {
	srv, _ := testServer(t, monday().Add(7*time.Hour))

	res := do(t, http.MethodPost, srv.URL+"/commitments", map[string]interface{}{
		"label": "Lectures", "weekdays": []string{"monday", "wednesday"},
		"start": "10:00", "end": "12:00",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("POST /commitments = %d, wanted 201", res.StatusCode)
	}
	lectures := commitmentEnvelope{}
	decode(t, res, &lectures)
	if lectures.Commitment.ID == "" || len(lectures.Conflicts) != 0 {
		t.Fatalf("first commitment = %+v", lectures)
	}

	overlapping := map[string]interface{}{
		"label": "Study group", "weekdays": []string{"wednesday"},
		"start": "11:00", "duration": "1h",
	}
	res = do(t, http.MethodPost, srv.URL+"/conflicts", overlapping)
	verdicts := conflictsResponse{}
	decode(t, res, &verdicts)
	if !verdicts.Blocked || len(verdicts.Conflicts) != 1 {
		t.Fatalf("conflict check = %+v, wanted one blocking verdict", verdicts)
	}
	if verdicts.Conflicts[0].Kind != plan.Strict {
		t.Errorf("verdict kind = %q", verdicts.Conflicts[0].Kind)
	}

	res = do(t, http.MethodPost, srv.URL+"/commitments", overlapping)
	blocked := conflictsResponse{}
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("POST clashing commitment = %d, wanted 409", res.StatusCode)
	}
	decode(t, res, &blocked)
	if !blocked.Blocked {
		t.Errorf("409 body = %+v", blocked)
	}

	res = do(t, http.MethodPost, srv.URL+"/commitments?force=1", overlapping)
	res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("forced POST = %d, wanted 201", res.StatusCode)
	}

	// a one time entry over both recurring ones informs, never blocks
	dentist := map[string]interface{}{
		"label": "Dentist", "date": "2026-01-07", "start": "11:00", "duration": "30m",
	}
	res = do(t, http.MethodPost, srv.URL+"/conflicts", dentist)
	overrides := conflictsResponse{}
	decode(t, res, &overrides)
	if overrides.Blocked {
		t.Errorf("a one time entry should not block: %+v", overrides)
	}
	if len(overrides.Conflicts) != 2 {
		t.Fatalf("override verdicts = %d, wanted 2", len(overrides.Conflicts))
	}
	for _, v := range overrides.Conflicts {
		if v.Kind != plan.Override || !v.Displaces {
			t.Errorf("verdict = %+v, wanted a displacing override", v)
		}
	}

	res = do(t, http.MethodPost, srv.URL+"/commitments", dentist)
	saved := commitmentEnvelope{}
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("POST /commitments dentist = %d, wanted 201", res.StatusCode)
	}
	decode(t, res, &saved)
	if len(saved.Conflicts) != 2 {
		t.Errorf("override verdicts should ride along: %+v", saved.Conflicts)
	}
}

func seedPlanFixtures(t *testing.T, srv *httptest.Server) {
	t.Helper()
	res := do(t, http.MethodPost, srv.URL+"/tasks", map[string]interface{}{
		"title": "Algebra", "estimate": "3h", "deadline": "2026-01-09", "importance": 4,
	})
	res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("seeding task = %d", res.StatusCode)
	}
	res = do(t, http.MethodPost, srv.URL+"/commitments", map[string]interface{}{
		"label": "Lectures", "weekdays": []string{"monday"}, "start": "10:00", "end": "12:00",
	})
	res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("seeding commitment = %d", res.StatusCode)
	}
}

func TestPlanGeneration(t *testing.T) {
	srv, _ := testServer(t, monday().Add(7*time.Hour))
	seedPlanFixtures(t, srv)

	res := do(t, http.MethodPost, srv.URL+"/plan", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("POST /plan = %d, wanted 200", res.StatusCode)
	}
	generated := planResponse{}
	decode(t, res, &generated)
	if len(generated.Days) == 0 {
		t.Fatalf("empty plan: %+v", generated)
	}
	first := generated.Days[0]
	if len(first.Sessions) != 2 {
		t.Fatalf("first day has %d sessions, wanted 2: %v", len(first.Sessions), first.Sessions)
	}
	// the lecture splits the 3h across the morning gap and the afternoon
	if first.Sessions[0].Start != 8*time.Hour || first.Sessions[0].Duration != 2*time.Hour {
		t.Errorf("first session = %s", first.Sessions[0])
	}
	if first.Sessions[1].Start != 12*time.Hour || first.Sessions[1].Duration != time.Hour {
		t.Errorf("second session = %s", first.Sessions[1])
	}
	if len(generated.Unscheduled) != 0 {
		t.Errorf("unexpected shortfall: %v", generated.Unscheduled)
	}

	res = do(t, http.MethodGet, srv.URL+"/plan?from=2026-01-05&days=1", nil)
	stored := plan.Plan{}
	decode(t, res, &stored)
	if len(stored.Days) != 1 || len(stored.Days[0].Sessions) != 2 {
		t.Fatalf("stored plan = %+v", stored)
	}
	if len(stored.Days[0].Busy) != 1 {
		t.Errorf("busy occurrences = %v", stored.Days[0].Busy)
	}
	if want := 9 * time.Hour; stored.Days[0].Free != want {
		t.Errorf("free time = %s, wanted %s", stored.Days[0].Free, want)
	}
}

func TestSessionStatesOverTheWire(t *testing.T) {
	srv, _ := testServer(t, monday().Add(7*time.Hour))
	seedPlanFixtures(t, srv)
	do(t, http.MethodPost, srv.URL+"/plan", nil).Body.Close()

	res := do(t, http.MethodGet, srv.URL+"/sessions?date=2026-01-05", nil)
	views := []sessionView{}
	decode(t, res, &views)
	if len(views) != 2 {
		t.Fatalf("sessions = %d, wanted 2", len(views))
	}
	for _, v := range views {
		if v.State != plan.Upcoming {
			t.Errorf("session %s state = %q, wanted upcoming", v.ID, v.State)
		}
	}

	res = do(t, http.MethodPost, srv.URL+"/sessions/"+views[0].ID+"/done", nil)
	completed := sessionView{}
	decode(t, res, &completed)
	if completed.State != plan.Completed || completed.Status != plan.StatusDone {
		t.Errorf("completed session = %+v", completed)
	}

	res = do(t, http.MethodGet, srv.URL+"/stats?from=2026-01-05&to=2026-01-05", nil)
	stats := plan.RangeStats{}
	decode(t, res, &stats)
	if stats.Planned != 3*time.Hour || stats.Completed != 2*time.Hour {
		t.Errorf("stats = planned %s completed %s", stats.Planned, stats.Completed)
	}
	if stats.CompletionRate != 1 {
		t.Errorf("completion rate = %v, wanted 1", stats.CompletionRate)
	}
	if len(stats.Tasks) != 1 || stats.Tasks[0].Remaining != time.Hour {
		t.Errorf("task progress = %+v", stats.Tasks)
	}
}

func TestRedistribute(t *testing.T) {
	srv, h := testServer(t, monday().Add(7*time.Hour))
	seedPlanFixtures(t, srv)
	do(t, http.MethodPost, srv.URL+"/plan", nil).Body.Close()

	// late morning: the 08:00 session expired, the afternoon one is
	// still reachable
	h.now = func() time.Time { return monday().Add(11 * time.Hour) }

	res := do(t, http.MethodPost, srv.URL+"/redistribute", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("POST /redistribute = %d, wanted 200", res.StatusCode)
	}
	out := redistributeResponse{}
	decode(t, res, &out)
	if out.Missed != 1 || out.Lost != 2*time.Hour {
		t.Errorf("audit = %d missed, %s lost", out.Missed, out.Lost)
	}
	if out.Removed != 1 {
		t.Errorf("removed = %d pending sessions, wanted 1", out.Removed)
	}
	if len(out.Plan.Days) == 0 {
		t.Fatalf("no regenerated days")
	}
	today := out.Plan.Days[0]
	if len(today.Sessions) != 2 {
		t.Fatalf("regenerated day = %v", today.Sessions)
	}
	if today.Sessions[0].Start != 12*time.Hour {
		t.Errorf("first regenerated session at %s, wanted 12:00", plan.FormatClock(today.Sessions[0].Start))
	}

	res = do(t, http.MethodGet, srv.URL+"/sessions?date=2026-01-05", nil)
	views := []sessionView{}
	decode(t, res, &views)
	if len(views) != 3 {
		t.Fatalf("sessions after redistribute = %d, wanted the missed one plus two fresh", len(views))
	}
	if views[0].State != plan.Missed {
		t.Errorf("expired session state = %q, wanted missed", views[0].State)
	}
}

func TestCalendarFeed(t *testing.T) {
	srv, _ := testServer(t, monday().Add(7*time.Hour))
	seedPlanFixtures(t, srv)
	do(t, http.MethodPost, srv.URL+"/plan", nil).Body.Close()

	res := do(t, http.MethodGet, srv.URL+"/ical/all.ics", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("GET /ical/all.ics = %d, wanted 200", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("content type = %q", ct)
	}
	body, err := io.ReadAll(res.Body)
	res.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	feed := string(body)
	for _, want := range []string{"BEGIN:VCALENDAR", "METHOD:PUBLISH", "SUMMARY:Algebra", "SUMMARY:Lectures"} {
		if !strings.Contains(feed, want) {
			t.Errorf("feed missing %q", want)
		}
	}

	res = do(t, http.MethodGet, srv.URL+"/ical/everything", nil)
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Errorf("unknown feed = %d, wanted 404", res.StatusCode)
	}
}

func TestBadDates(t *testing.T) {
	srv, _ := testServer(t, monday())
	for _, url := range []string{
		srv.URL + "/plan?from=junk",
		srv.URL + "/sessions?date=junk",
		srv.URL + "/stats?from=junk",
	} {
		res := do(t, http.MethodGet, url, nil)
		res.Body.Close()
		if res.StatusCode != http.StatusBadRequest {
			t.Errorf("GET %s = %d, wanted 400", url, res.StatusCode)
		}
	}
}
