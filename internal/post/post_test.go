package post

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"testing"
	"time"

	"git.sr.ht/~mariusor/metis/plan"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func session(label string, start, dur time.Duration, tags ...string) plan.Session {
	return plan.Session{
		Label:    label,
		Date:     date(2026, time.January, 5),
		Start:    start,
		Duration: dur,
		Tags:     tags,
		Status:   plan.StatusPending,
	}
}

func TestRenderTitle(t *testing.T) {
	got, err := renderTitle(date(2026, time.January, 5))
	if err != nil {
		t.Fatalf("renderTitle() returned error: %s", err)
	}
	want := "Study plan for Monday, 05 Jan 2026"
	if got != want {
		t.Errorf("renderTitle() = %q, want %q", got, want)
	}
}

func TestRenderAgenda(t *testing.T) {
	day := date(2026, time.January, 5)
	sessions := plan.Sessions{
		session("Algebra", 8*time.Hour, 2*time.Hour, "math"),
		session("Essay outline", 10*time.Hour+15*time.Minute, time.Hour),
	}

	got, err := renderAgenda(day, sessions)
	if err != nil {
		t.Fatalf("renderAgenda() returned error: %s", err)
	}
	for _, want := range []string{
		"08:00-10:00 Algebra #math",
		"10:15-11:15 Essay outline",
		"#january #studyplan",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("renderAgenda() missing %q in:\n%s", want, got)
		}
	}
}

func TestRenderHTMLAgenda(t *testing.T) {
	day := date(2026, time.January, 5)
	sessions := plan.Sessions{session("Algebra", 8*time.Hour, 2*time.Hour, "math")}

	got, err := renderHTMLAgenda(day, sessions, apTags(sessions, "https://example.com"))
	if err != nil {
		t.Fatalf("renderHTMLAgenda() returned error: %s", err)
	}
	for _, want := range []string{
		"<h2>Monday, 05 Jan 2026</h2>",
		"<li>08:00-10:00 Algebra</li>",
		`<a rel="tag" href="https://example.com/math">#math</a>`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("renderHTMLAgenda() missing %q in:\n%s", want, got)
		}
	}
}

func TestTagsRender(t *testing.T) {
	if got, want := (tags{"Math", "math", "Essay"}).Render("#"), "#math #essay"; got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
	if got := (tags{}).Render("#"); got != "" {
		t.Errorf("Render() on empty tags = %q", got)
	}
}

func TestToStdout(t *testing.T) {
	buf := bytes.Buffer{}
	out := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(out)

	day := date(2026, time.January, 5)
	agenda := map[time.Time]plan.Sessions{
		day: {session("Algebra", 8*time.Hour, 2*time.Hour, "math")},
	}
	if err := ToStdout(agenda); err != nil {
		t.Fatalf("ToStdout() returned error: %s", err)
	}
	got := buf.String()
	for _, want := range []string{"Monday, 05 Jan 2026", "08:00-10:00 Algebra #math"} {
		if !strings.Contains(got, want) {
			t.Errorf("ToStdout() missing %q in:\n%s", want, got)
		}
	}
}

func TestToMastodonWithoutClient(t *testing.T) {
	buf := bytes.Buffer{}
	out := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(out)

	fn := ToMastodon(nil)
	if fn == nil {
		t.Fatal("ToMastodon(nil) returned no poster")
	}
	if err := fn(map[time.Time]plan.Sessions{}); err != nil {
		t.Errorf("fallback poster returned error: %s", err)
	}
}

func TestSplitSlice(t *testing.T) {
	chunks := splitSlice([]int{1, 2, 3, 4, 5}, 2)
	if len(chunks) != 3 {
		t.Fatalf("splitSlice() = %v", chunks)
	}
	if len(chunks[0]) != 2 || len(chunks[1]) != 2 || len(chunks[2]) != 1 {
		t.Errorf("splitSlice() chunk sizes = %d, %d, %d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
}

func TestCleaveSlice(t *testing.T) {
	nums := []int{1, 2, 3, 4, 5, 6, 7, 8}

	head, rest := cleaveSlice(nums, func(chunk []int) bool { return len(chunk) <= 2 })
	if len(head) != 2 || head[0] != 1 || head[1] != 2 {
		t.Errorf("cleaveSlice() head = %v", head)
	}
	want := []int{3, 4, 5, 6, 7, 8}
	if len(rest) != len(want) {
		t.Fatalf("cleaveSlice() rest = %v, want %v", rest, want)
	}
	for i := range want {
		if rest[i] != want[i] {
			t.Errorf("cleaveSlice() rest[%d] = %d, want %d", i, rest[i], want[i])
		}
	}

	head, rest = cleaveSlice(nums, func(chunk []int) bool { return true })
	if len(head) != len(nums) || rest != nil {
		t.Errorf("cleaveSlice() with passing check = %v, %v", head, rest)
	}
}

func TestAgendaChunksStayUnderPostSize(t *testing.T) {
	day := date(2026, time.January, 5)
	sessions := make(plan.Sessions, 0, 40)
	for i := 0; i < 40; i++ {
		label := fmt.Sprintf("Long winded label for a study session number %d", i)
		sessions = append(sessions, session(label, time.Duration(i)*15*time.Minute, 15*time.Minute, "revision"))
	}

	var content string
	checkFn := func(chunk plan.Sessions) bool {
		var err error
		content, err = renderAgenda(day, chunk)
		return err == nil && len(content) < maxPostSize
	}
	head, rest := cleaveSlice(sessions, checkFn)
	if len(head) == 0 || len(head) == len(sessions) {
		t.Fatalf("cleaveSlice() kept %d of %d sessions", len(head), len(sessions))
	}
	if len(content) >= maxPostSize {
		t.Errorf("accepted chunk rendered to %d characters", len(content))
	}
	if len(head)+len(rest) != len(sessions) {
		t.Errorf("cleaveSlice() lost sessions: %d + %d != %d", len(head), len(rest), len(sessions))
	}
}

func TestInstanceName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://metalhead.club", "metalhead.club"},
		{"metalhead.club", "metalhead.club"},
		{"https://example.com/users/metis", "example.com"},
	}
	for _, tc := range tests {
		if got := InstanceName(tc.in); got != tc.want {
			t.Errorf("InstanceName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
