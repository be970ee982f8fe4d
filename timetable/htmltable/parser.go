package htmltable

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"git.sr.ht/~mariusor/metis/plan"
)

const Label = "html"

var slotExp = regexp.MustCompile(`(\d{1,2}:\d{2})\s*[-–]\s*(\d{1,2}:\d{2})`)

type Source struct{}

// Load parses a weekly timetable out of the first table in the document.
// The header row names the weekdays, each body row starts with its
// HH:MM-HH:MM slot, and non empty cells become recurring commitments.
// The same entry appearing in one slot on several days collapses into a
// single commitment covering all of them.
func (Source) Load(r io.Reader) (plan.Commitments, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("no timetable found in document")
	}
	from, until := validityWindow(table)

	type entry struct {
		label    string
		location string
		start    time.Duration
		duration time.Duration
	}
	days := make(map[int]time.Weekday)
	merged := make(map[entry][]time.Weekday)
	order := make([]entry, 0)

	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("th,td")
		if len(days) == 0 {
			for i, day := range headerDays(cells) {
				days[i] = day
			}
			if len(days) > 0 {
				return
			}
		}
		start, end, ok := rowSlot(row, cells)
		if !ok {
			return
		}
		cells.Each(func(i int, cell *goquery.Selection) {
			day, isDay := days[i]
			if !isDay {
				return
			}
			label, location := cellEntry(cell)
			if label == "" {
				return
			}
			e := entry{label: label, location: location, start: start, duration: end - start}
			if _, seen := merged[e]; !seen {
				order = append(order, e)
			}
			if !weekdayIn(merged[e], day) {
				merged[e] = append(merged[e], day)
			}
		})
	})
	if len(days) == 0 {
		return nil, fmt.Errorf("no weekday header row found")
	}

	commitments := make(plan.Commitments, 0, len(order))
	for _, e := range order {
		weekdays := merged[e]
		sort.Slice(weekdays, func(i, j int) bool { return weekdays[i] < weekdays[j] })
		c := plan.Commitment{
			Label:    e.label,
			Kind:     plan.Recurring,
			Weekdays: weekdays,
			From:     from,
			Until:    until,
			Start:    e.start,
			Duration: e.duration,
			Location: e.location,
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		commitments = append(commitments, c)
	}
	commitments.Sort()
	return commitments, nil
}

func validityWindow(table *goquery.Selection) (time.Time, time.Time) {
	var from, until time.Time
	if v, ok := table.Attr("data-from"); ok {
		from, _ = time.ParseInLocation("2006-01-02", v, time.Local)
	}
	if v, ok := table.Attr("data-until"); ok {
		until, _ = time.ParseInLocation("2006-01-02", v, time.Local)
	}
	return from, until
}

// headerDays maps cell positions to the weekdays they parse as. A row
// needs at least two weekday columns to count as the header, a lone
// "Saturday" in a caption should not.
func headerDays(cells *goquery.Selection) map[int]time.Weekday {
	days := make(map[int]time.Weekday)
	cells.Each(func(i int, cell *goquery.Selection) {
		if day, err := plan.ParseWeekday(strings.TrimSpace(cell.Text())); err == nil {
			days[i] = day
		}
	})
	if len(days) < 2 {
		return nil
	}
	return days
}

func rowSlot(row *goquery.Selection, cells *goquery.Selection) (time.Duration, time.Duration, bool) {
	if v, ok := row.Attr("data-start"); ok {
		start, err1 := plan.ParseClock(v)
		end, err2 := time.Duration(0), error(nil)
		if v, ok = row.Attr("data-end"); ok {
			end, err2 = plan.ParseClock(v)
		}
		if err1 == nil && err2 == nil && end > start {
			return start, end, true
		}
	}
	var start, end time.Duration
	found := false
	cells.EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		m := slotExp.FindStringSubmatch(cell.Text())
		if m == nil {
			return true
		}
		s, err1 := plan.ParseClock(m[1])
		e, err2 := plan.ParseClock(m[2])
		if err1 != nil || err2 != nil || e <= s {
			return true
		}
		start, end, found = s, e, true
		return false
	})
	return start, end, found
}

func weekdayIn(days []time.Weekday, day time.Weekday) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

// cellEntry reads a timetable cell: data-label and data-location attrs
// win, otherwise the first text line is the label and the rest becomes
// the location.
func cellEntry(cell *goquery.Selection) (string, string) {
	label, _ := cell.Attr("data-label")
	location, _ := cell.Attr("data-location")
	lines := make([]string, 0)
	for _, line := range strings.Split(cell.Text(), "\n") {
		if line = strings.TrimSpace(line); len(line) > 0 {
			lines = append(lines, line)
		}
	}
	if label == "" && len(lines) > 0 {
		label = lines[0]
	}
	if location == "" && len(lines) > 1 {
		location = strings.Join(lines[1:], " ")
	}
	return label, location
}
