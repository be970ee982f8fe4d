package icsfile

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"git.sr.ht/~mariusor/metis/plan"
)

const Label = "ics"

type Source struct{}

var byDay = map[string]time.Weekday{
	"SU": time.Sunday, "MO": time.Monday, "TU": time.Tuesday, "WE": time.Wednesday,
	"TH": time.Thursday, "FR": time.Friday, "SA": time.Saturday,
}

var everyDay = []time.Weekday{
	time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
	time.Thursday, time.Friday, time.Saturday,
}

// Load reads the VEVENT blocks of an iCalendar export. It understands
// just enough of RFC 5545 to turn calendar feeds into commitments:
// DTSTART, DTEND, DURATION, SUMMARY, LOCATION and weekly or daily
// RRULEs. Events it cannot shape into a valid commitment are skipped.
func (Source) Load(r io.Reader) (plan.Commitments, error) {
	lines, err := unfold(r)
	if err != nil {
		return nil, err
	}

	commitments := make(plan.Commitments, 0)
	var ev *event
	depth := 0
	for _, line := range lines {
		name, params, value := splitProp(line)
		switch name {
		case "BEGIN":
			if strings.EqualFold(value, "VEVENT") && ev == nil {
				ev = &event{}
			} else if ev != nil {
				depth++
			}
			continue
		case "END":
			if depth > 0 {
				depth--
			} else if strings.EqualFold(value, "VEVENT") && ev != nil {
				if c, ok := ev.commitment(); ok {
					commitments = append(commitments, c)
				}
				ev = nil
			}
			continue
		}
		if ev == nil || depth > 0 {
			continue
		}
		switch name {
		case "DTSTART":
			if ev.start, err = parseStamp(value, params); err != nil {
				return nil, fmt.Errorf("unreadable DTSTART: %w", err)
			}
		case "DTEND":
			if ev.end, err = parseStamp(value, params); err != nil {
				return nil, fmt.Errorf("unreadable DTEND: %w", err)
			}
		case "DURATION":
			if ev.duration, err = parseDuration(value); err != nil {
				return nil, err
			}
		case "SUMMARY":
			ev.summary = unescape(value)
		case "LOCATION":
			ev.location = unescape(value)
		case "RRULE":
			ev.rule = parseRule(value)
		}
	}
	commitments.Sort()
	return commitments, nil
}

type event struct {
	start    time.Time
	end      time.Time
	duration time.Duration
	summary  string
	location string
	rule     map[string]string
}

func (ev event) commitment() (plan.Commitment, bool) {
	if ev.start.IsZero() || ev.summary == "" {
		return plan.Commitment{}, false
	}
	d := ev.duration
	if d == 0 && !ev.end.IsZero() {
		d = ev.end.Sub(ev.start)
	}
	c := plan.Commitment{
		Label:    ev.summary,
		Location: ev.location,
		Start:    ev.start.Sub(plan.DateOf(ev.start)),
		Duration: d,
	}
	switch strings.ToUpper(ev.rule["FREQ"]) {
	case "WEEKLY":
		c.Kind = plan.Recurring
		c.Weekdays = parseByDay(ev.rule["BYDAY"])
		if len(c.Weekdays) == 0 {
			c.Weekdays = []time.Weekday{ev.start.Weekday()}
		}
		c.From = plan.DateOf(ev.start)
	case "DAILY":
		c.Kind = plan.Recurring
		c.Weekdays = everyDay
		c.From = plan.DateOf(ev.start)
	default:
		// other recurrence frequencies degrade to a single occurrence
		c.Kind = plan.Once
		c.Date = plan.DateOf(ev.start)
	}
	if c.IsRecurring() {
		if until, err := parseStamp(ev.rule["UNTIL"], nil); err == nil {
			c.Until = plan.DateOf(until)
		}
	}
	if err := c.Validate(); err != nil {
		return plan.Commitment{}, false
	}
	return c, true
}

// unfold undoes RFC 5545 line folding: a line starting with a space or
// tab continues the previous one.
func unfold(r io.Reader) ([]string, error) {
	lines := make([]string, 0)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if len(line) == 0 {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && len(lines) > 0 {
			lines[len(lines)-1] += line[1:]
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

// splitProp cuts NAME;PARAM=V:VALUE at the first colon outside quotes.
func splitProp(line string) (string, map[string]string, string) {
	inQuotes := false
	head, value := line, ""
	for i, r := range line {
		if r == '"' {
			inQuotes = !inQuotes
		}
		if r == ':' && !inQuotes {
			head, value = line[:i], line[i+1:]
			break
		}
	}
	segments := strings.Split(head, ";")
	params := make(map[string]string)
	for _, segment := range segments[1:] {
		if k, v, ok := strings.Cut(segment, "="); ok {
			params[strings.ToUpper(k)] = strings.Trim(v, `"`)
		}
	}
	return strings.ToUpper(strings.TrimSpace(segments[0])), params, value
}

func parseStamp(value string, params map[string]string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if params["VALUE"] == "DATE" || len(value) == 8 {
		return time.ParseInLocation("20060102", value, time.Local)
	}
	if strings.HasSuffix(value, "Z") {
		t, err := time.Parse("20060102T150405Z", value)
		return t.In(time.Local), err
	}
	loc := time.Local
	if tzid := params["TZID"]; tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		}
	}
	t, err := time.ParseInLocation("20060102T150405", value, loc)
	return t.In(time.Local), err
}

var durExp = regexp.MustCompile(`^(-)?P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

func parseDuration(value string) (time.Duration, error) {
	m := durExp.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(value)))
	if m == nil {
		return 0, fmt.Errorf("unreadable duration %q", value)
	}
	units := []time.Duration{7 * 24 * time.Hour, 24 * time.Hour, time.Hour, time.Minute, time.Second}
	d := time.Duration(0)
	for i, unit := range units {
		if m[i+2] == "" {
			continue
		}
		n, err := strconv.ParseInt(m[i+2], 10, 32)
		if err != nil {
			return 0, fmt.Errorf("unreadable duration %q: %w", value, err)
		}
		d += time.Duration(n) * unit
	}
	if m[1] == "-" {
		d = -d
	}
	return d, nil
}

func parseRule(value string) map[string]string {
	rule := make(map[string]string)
	for _, segment := range strings.Split(value, ";") {
		if k, v, ok := strings.Cut(segment, "="); ok {
			rule[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
	}
	return rule
}

func parseByDay(value string) []time.Weekday {
	days := make([]time.Weekday, 0, 7)
	for _, code := range strings.Split(value, ",") {
		code = strings.ToUpper(strings.TrimSpace(code))
		if len(code) > 2 {
			// monthly ordinals like 2MO keep just the weekday part
			code = code[len(code)-2:]
		}
		day, ok := byDay[code]
		if !ok {
			continue
		}
		seen := false
		for _, d := range days {
			if d == day {
				seen = true
				break
			}
		}
		if !seen {
			days = append(days, day)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days
}

var unescaper = strings.NewReplacer(`\n`, " ", `\N`, " ", `\,`, ",", `\;`, ";", `\\`, `\`)

func unescape(value string) string {
	return strings.TrimSpace(unescaper.Replace(value))
}
