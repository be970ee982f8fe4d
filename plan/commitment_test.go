package plan

import (
	"testing"
	"time"
)

func TestCommitmentOccursOn(t *testing.T) {
	seminar := Commitment{
		Label: "Seminar", Kind: Recurring,
		Weekdays: []time.Weekday{time.Monday, time.Thursday},
		From:     date(2026, time.January, 5),
		Until:    date(2026, time.January, 31),
		Start:    9 * time.Hour, Duration: 90 * time.Minute,
	}
	tests := []struct {
		name string
		day  time.Time
		want bool
	}{
		{"first monday", date(2026, time.January, 5), true},
		{"thursday inside window", date(2026, time.January, 8), true},
		{"tuesday is not scheduled", date(2026, time.January, 6), false},
		{"monday before the window", date(2025, time.December, 29), false},
		{"monday after the window", date(2026, time.February, 2), false},
		{"last day of the window", date(2026, time.January, 29), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := seminar.OccursOn(tt.day); got != tt.want {
				t.Errorf("OccursOn(%s) = %v, wanted %v", tt.day.Format("2006-01-02"), got, tt.want)
			}
		})
	}

	exam := once("o1", "Exam", date(2026, time.January, 9), 10*time.Hour, 2*time.Hour)
	if !exam.OccursOn(date(2026, time.January, 9)) {
		t.Errorf("one time commitment should occur on its date")
	}
	if exam.OccursOn(date(2026, time.January, 10)) {
		t.Errorf("one time commitment should not occur on other dates")
	}
}

func TestCommitmentValidate(t *testing.T) {
	tests := []struct {
		name    string
		c       Commitment
		wantErr bool
	}{
		{
			name: "valid recurring",
			c:    recurring("", "Lectures", []time.Weekday{time.Monday}, 10*time.Hour, time.Hour),
		},
		{
			name: "valid one time",
			c:    once("", "Dentist", date(2026, time.January, 7), 11*time.Hour, time.Hour),
		},
		{
			name:    "missing label",
			c:       recurring("", "  ", []time.Weekday{time.Monday}, 10*time.Hour, time.Hour),
			wantErr: true,
		},
		{
			name:    "zero duration",
			c:       recurring("", "Lectures", []time.Weekday{time.Monday}, 10*time.Hour, 0),
			wantErr: true,
		},
		{
			name:    "spills over midnight",
			c:       recurring("", "Night owl", []time.Weekday{time.Monday}, 23*time.Hour, 2*time.Hour),
			wantErr: true,
		},
		{
			name:    "recurring without weekdays",
			c:       Commitment{Label: "Lectures", Kind: Recurring, Start: 10 * time.Hour, Duration: time.Hour},
			wantErr: true,
		},
		{
			name: "window ends before it starts",
			c: Commitment{
				Label: "Lectures", Kind: Recurring,
				Weekdays: []time.Weekday{time.Monday},
				From:     date(2026, time.February, 1), Until: date(2026, time.January, 1),
				Start: 10 * time.Hour, Duration: time.Hour,
			},
			wantErr: true,
		},
		{
			name:    "one time without a date",
			c:       Commitment{Label: "Dentist", Kind: Once, Start: 10 * time.Hour, Duration: time.Hour},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			c:       Commitment{Label: "Odd", Kind: "sometimes", Start: 10 * time.Hour, Duration: time.Hour},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCommitmentsEffectiveOn(t *testing.T) {
	monday := date(2026, time.January, 5)
	all := Commitments{
		recurring("r1", "Lectures", []time.Weekday{time.Monday}, 10*time.Hour, 2*time.Hour),
		recurring("r2", "Gym", []time.Weekday{time.Monday}, 18*time.Hour, time.Hour),
		once("o1", "Doctor", monday, 11*time.Hour, time.Hour),
	}

	occurrences := all.EffectiveOn(monday)
	if len(occurrences) != 2 {
		t.Fatalf("EffectiveOn() returned %d occurrences, wanted 2: %v", len(occurrences), occurrences)
	}
	// the doctor appointment displaces the overlapped lecture, the gym slot survives
	if occurrences[0].CommitmentID != "o1" {
		t.Errorf("first occurrence = %s, wanted the one time entry", occurrences[0].CommitmentID)
	}
	if occurrences[1].CommitmentID != "r2" {
		t.Errorf("second occurrence = %s, wanted the gym slot", occurrences[1].CommitmentID)
	}

	tuesday := date(2026, time.January, 6)
	if got := all.EffectiveOn(tuesday); len(got) != 0 {
		t.Errorf("EffectiveOn(tuesday) = %v, wanted none", got)
	}
}

func TestCommitmentsOccurrences(t *testing.T) {
	all := Commitments{
		recurring("r1", "Lectures", []time.Weekday{time.Monday, time.Wednesday}, 10*time.Hour, 2*time.Hour),
	}
	got := all.Occurrences(date(2026, time.January, 5), date(2026, time.January, 11))
	if len(got) != 2 {
		t.Fatalf("Occurrences() returned %d, wanted 2: %v", len(got), got)
	}
	if !got[0].StartAt.Equal(date(2026, time.January, 5).Add(10 * time.Hour)) {
		t.Errorf("first occurrence starts at %v", got[0].StartAt)
	}
	if !got[1].StartAt.Equal(date(2026, time.January, 7).Add(10 * time.Hour)) {
		t.Errorf("second occurrence starts at %v", got[1].StartAt)
	}
}

func TestOverlaps(t *testing.T) {
	h := func(n int) time.Duration { return time.Duration(n) * time.Hour }
	tests := []struct {
		name           string
		s1, e1, s2, e2 time.Duration
		want           bool
	}{
		{"identical", h(10), h(12), h(10), h(12), true},
		{"contained", h(10), h(12), h(11), h(11) + 30*time.Minute, true},
		{"partial", h(10), h(12), h(11), h(13), true},
		{"touching", h(10), h(12), h(12), h(13), false},
		{"disjoint", h(10), h(11), h(12), h(13), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Overlaps(tt.s1, tt.e1, tt.s2, tt.e2); got != tt.want {
				t.Errorf("Overlaps() = %v, wanted %v", got, tt.want)
			}
			// order of the pair must not matter
			if got := Overlaps(tt.s2, tt.e2, tt.s1, tt.e1); got != tt.want {
				t.Errorf("Overlaps() reversed = %v, wanted %v", got, tt.want)
			}
		})
	}
}
