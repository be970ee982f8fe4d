package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/xid"
	"github.com/urfave/cli"

	"git.sr.ht/~mariusor/metis/plan"
	"git.sr.ht/~mariusor/metis/storage"
)

var PlanCmd = cli.Command{
	Name:  "plan",
	Usage: "Drops the pending sessions and lays a fresh plan around the commitments",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "from",
			Usage: "First day of the plan as YYYY-MM-DD, today by default",
		},
	},
	Action: generatePlan,
}

func generatePlan(c *cli.Context) error {
	from, err := parseDate(c.String("from"), now)
	if err != nil {
		return err
	}
	p, removed, err := regenerate(openStorage(c), loadSettings(c), from, c.GlobalBool("dry-run"))
	if err != nil {
		return err
	}
	if removed > 0 {
		info("dropped %d pending session(s)", removed)
	}
	printPlan(os.Stdout, p)
	return nil
}

// regenerate drops the pending sessions from the start day onward and
// rebuilds the plan around the commitments, crediting completed effort.
// Sessions already settled on the start day keep their slots.
func regenerate(st storage.Store, s plan.Settings, from time.Time, dryRun bool) (plan.Plan, int, error) {
	tasks, err := st.LoadTasks()
	if err != nil {
		return plan.Plan{}, 0, err
	}
	commitments, err := st.LoadCommitments()
	if err != nil {
		return plan.Plan{}, 0, err
	}
	history, err := st.LoadSessions(sessionWindow(s))
	if err != nil {
		return plan.Plan{}, 0, err
	}
	for _, ses := range history {
		if ses.Status != plan.StatusPending && plan.SameDay(ses.Date, from) && ses.EndAt().After(from) {
			from = ses.EndAt()
		}
	}
	removed := 0
	if dryRun {
		for _, ses := range history {
			if ses.Status == plan.StatusPending && !plan.DateOf(ses.Date).Before(plan.DateOf(from)) {
				removed++
			}
		}
	} else if removed, err = st.RemovePendingSessions(from); err != nil {
		return plan.Plan{}, 0, err
	}
	p := plan.BuildPlan(tasks, history.CompletedByTask(), commitments, s, from)
	for di := range p.Days {
		for si := range p.Days[di].Sessions {
			p.Days[di].Sessions[si].ID = xid.New().String()
		}
	}
	if dryRun {
		return p, removed, nil
	}
	if sessions := p.Sessions(); len(sessions) > 0 {
		if err = st.SaveSessions(sessions...); err != nil {
			return p, removed, err
		}
	}
	return p, removed, nil
}

// printPlan writes the day by day plan, skipping empty days.
func printPlan(w io.Writer, p plan.Plan) {
	total, days := time.Duration(0), 0
	for _, day := range p.Days {
		if len(day.Sessions) == 0 && len(day.Busy) == 0 {
			continue
		}
		printDay(w, day, now, false)
		for _, ses := range day.Sessions {
			total += ses.Duration
		}
		if len(day.Sessions) > 0 {
			days++
		}
	}
	fmt.Fprintf(w, "%s of study over %d day(s)\n", plan.FormatDuration(total), days)
	for _, sf := range p.Unscheduled {
		fmt.Fprintf(w, "could not fit %s of %q before %s\n",
			plan.FormatDuration(sf.Missing), sf.Title, sf.Deadline.Format("2006-01-02"))
	}
}
