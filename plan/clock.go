package plan

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateOf truncates a moment to the midnight of its day, keeping the
// location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func SameDay(a, b time.Time) bool {
	return DateOf(a).Equal(DateOf(b))
}

// ParseClock reads a wall clock value like "08:30" into an offset from
// midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func FormatClock(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	return fmt.Sprintf("%02d:%02d", h, m)
}

// FormatDuration renders effort amounts the way people talk about study
// time: minutes under an hour, hours and minutes above it.
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	neg := ""
	if d < 0 {
		neg, d = "-", -d
	}
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	switch {
	case h == 0:
		return fmt.Sprintf("%s%dm", neg, m)
	case m == 0:
		return fmt.Sprintf("%s%dh", neg, h)
	}
	return fmt.Sprintf("%s%dh%02dm", neg, h, m)
}

func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid weekday %q", s)
}

// ParseWeekdays reads a comma separated weekday list like "mon,wed,fri".
func ParseWeekdays(s string) ([]time.Weekday, error) {
	parts := strings.Split(s, ",")
	days := make([]time.Weekday, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		d, err := ParseWeekday(p)
		if err != nil {
			return nil, err
		}
		if !weekdaysContain(days, d) {
			days = append(days, d)
		}
	}
	sortWeekdays(days)
	return days, nil
}

func FormatWeekdays(days []time.Weekday) string {
	names := make([]string, len(days))
	for i, d := range days {
		names[i] = d.String()[:3]
	}
	return strings.Join(names, ",")
}

func weekdaysContain(days []time.Weekday, d time.Weekday) bool {
	for _, wd := range days {
		if wd == d {
			return true
		}
	}
	return false
}

func sortWeekdays(days []time.Weekday) {
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
}
