package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/soh335/ical"

	"git.sr.ht/~mariusor/metis/plan"
	"git.sr.ht/~mariusor/metis/storage"
)

const (
	FeedSessions    = "sessions"
	FeedCommitments = "commitments"
	FeedAll         = "all"
)

var feedDescriptions = map[string]string{
	FeedSessions:    "Scheduled study sessions",
	FeedCommitments: "Fixed commitments",
	FeedAll:         "Study sessions and fixed commitments",
}

var feedColors = map[string]string{
	FeedSessions:    "forestgreen",
	FeedCommitments: "steelblue",
	FeedAll:         "slategray",
}

// serveCalendar renders /ical/{feed} as an iCalendar document so the
// agenda can sit next to the other calendars in any subscribing client.
// The feed covers [from, from+days), four weeks by default.
func (h *handler) serveCalendar(w http.ResponseWriter, r *http.Request) {
	feed := strings.ToLower(strings.TrimSuffix(chi.URLParam(r, "feed"), ".ics"))
	description, ok := feedDescriptions[feed]
	if !ok {
		renderError(w, r, notFoundf("no calendar feed %q", feed))
		return
	}
	now := h.now()
	q := r.URL.Query()
	from, err := parseDate(q.Get("from"), plan.DateOf(now))
	if err != nil {
		renderError(w, r, err)
		return
	}
	days := 28
	if v := q.Get("days"); v != "" {
		if days, err = strconv.Atoi(v); err != nil || days < 1 || days > 366 {
			renderError(w, r, badRequestf("invalid days %q", v))
			return
		}
	}
	until := from.AddDate(0, 0, days-1)

	cal := ical.NewBasicVCalendar()
	cal.PRODID = fmt.Sprintf("-//metis//STUDY-CAL//EN/%s", h.version)
	cal.VERSION = "2.0"
	cal.URL = fmt.Sprintf("%s/ical/%s", h.baseURL, feed)
	cal.NAME = "metis"
	cal.X_WR_CALNAME = "metis"
	cal.DESCRIPTION = description
	cal.X_WR_CALDESC = description
	tz := from.Location().String()
	cal.TIMEZONE_ID = tz
	cal.X_WR_TIMEZONE = tz
	cal.REFRESH_INTERVAL = "PT1H"
	cal.X_PUBLISHED_TTL = "PT1H"
	cal.COLOR = feedColors[feed]
	cal.CALSCALE = "GREGORIAN"
	cal.METHOD = "PUBLISH"

	if feed != FeedCommitments {
		sessions, err := h.storage.LoadSessions(storage.Cursor(from, time.Duration(days-1)*24*time.Hour))
		if err != nil {
			renderError(w, r, err)
			return
		}
		for _, ses := range sessions {
			cal.VComponent = append(cal.VComponent, &ical.VEvent{
				UID:         ses.ID,
				DTSTAMP:     now,
				DTSTART:     ses.StartAt(),
				DTEND:       ses.EndAt(),
				SUMMARY:     ses.Label,
				DESCRIPTION: string(ses.State(now)),
				TZID:        tz,
			})
		}
	}
	if feed != FeedSessions {
		commitments, err := h.storage.LoadCommitments()
		if err != nil {
			renderError(w, r, err)
			return
		}
		for _, o := range commitments.Occurrences(from, until) {
			cal.VComponent = append(cal.VComponent, &ical.VEvent{
				UID:         fmt.Sprintf("%s-%s", o.CommitmentID, o.StartAt.Format("20060102")),
				DTSTAMP:     now,
				DTSTART:     o.StartAt,
				DTEND:       o.EndAt,
				SUMMARY:     o.Label,
				DESCRIPTION: o.Location,
				TZID:        tz,
				AllDay:      o.EndAt.Sub(o.StartAt) >= 24*time.Hour,
			})
		}
	}

	b := &bytes.Buffer{}
	if err := cal.Encode(b); err != nil {
		renderError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Write(b.Bytes())
}
