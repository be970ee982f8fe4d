// Package post publishes day by day study agendas: plain text on
// stdout, toots on Mastodon instances, Notes on ActivityPub servers.
package post

import (
	"log"
	"sort"
	"time"

	"git.sr.ht/~mariusor/metis/plan"
)

const dayFmt = "Monday, 02 Jan 2006"

// PosterFn publishes an agenda grouped by day. Each backend gets the
// full agenda and decides how to lay it out.
type PosterFn func(agenda map[time.Time]plan.Sessions) error

// ToStdout prints the agenda, the fallback when no account has been
// authorized yet.
func ToStdout(agenda map[time.Time]plan.Sessions) error {
	f := log.Flags()
	log.SetFlags(0)
	for _, day := range sortedDays(agenda) {
		log.Printf("%s", day.Format(dayFmt))
		for _, ses := range agenda[day] {
			line := ses.String()
			if t := tags(ses.Tags).Render("#"); t != "" {
				line += " " + t
			}
			log.Printf("%s", line)
		}
	}
	log.SetFlags(f)
	return nil
}

func sortedDays(agenda map[time.Time]plan.Sessions) []time.Time {
	days := make([]time.Time, 0, len(agenda))
	for day := range agenda {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}
