package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli"

	"git.sr.ht/~mariusor/metis/plan"
	"git.sr.ht/~mariusor/metis/storage"
)

var StatsCmd = cli.Command{
	Name:  "stats",
	Usage: "Summarizes planned, completed and missed study time",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "from",
			Usage: "Start of the window as YYYY-MM-DD, defaults to a week ago",
		},
		&cli.StringFlag{
			Name:  "to",
			Usage: "End of the window as YYYY-MM-DD, defaults to today",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the aggregated numbers as JSON",
		},
	},
	Action: showStats,
}

func showStats(c *cli.Context) error {
	from, err := parseDate(c.String("from"), plan.DateOf(now).AddDate(0, 0, -6))
	if err != nil {
		return err
	}
	to, err := parseDate(c.String("to"), plan.DateOf(now))
	if err != nil {
		return err
	}
	if to.Before(from) {
		return fmt.Errorf("stats window ends before it starts")
	}

	st := openStorage(c)
	s := loadSettings(c)
	tasks, err := st.LoadTasks()
	if err != nil {
		return err
	}
	// Task progress counts every stored session, so the load window is
	// the planning horizon around today widened to cover [from, to].
	horizon := time.Duration(s.HorizonDays) * ResolutionDay
	lo := plan.DateOf(now).Add(-horizon)
	if from.Before(lo) {
		lo = from
	}
	hi := plan.DateOf(now).Add(horizon)
	if to.After(hi) {
		hi = to
	}
	sessions, err := st.LoadSessions(storage.Cursor(lo, hi.Sub(lo)))
	if err != nil {
		return err
	}

	agg := plan.Aggregate(tasks, sessions, s, now, from, to)
	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(agg)
	}
	printStats(os.Stdout, agg)
	return nil
}

func printStats(w io.Writer, st plan.RangeStats) {
	fmt.Fprintf(w, "%s .. %s\n", st.From.Format("2006-01-02"), st.To.Format("2006-01-02"))
	fmt.Fprintf(w, "planned %s, completed %s, missed %s", plan.FormatDuration(st.Planned),
		plan.FormatDuration(st.Completed), plan.FormatDuration(st.Missed))
	if st.Planned > 0 {
		fmt.Fprintf(w, ", %.0f%% done", st.CompletionRate*100)
	}
	fmt.Fprintln(w)
	for _, day := range st.Days {
		fmt.Fprintf(w, "%s\t%s planned, %s completed, %d session(s)\n",
			day.Date.Format("Mon 02 Jan"), plan.FormatDuration(day.Planned),
			plan.FormatDuration(day.Completed), day.Sessions)
	}
	if len(st.Tags) > 0 {
		fmt.Fprintln(w, "by tag:")
		for _, tag := range st.Tags {
			fmt.Fprintf(w, "\t#%s\t%s of %s\n", tag.Tag,
				plan.FormatDuration(tag.Completed), plan.FormatDuration(tag.Planned))
		}
	}
	if len(st.Tasks) > 0 {
		fmt.Fprintln(w, "tasks:")
		for _, task := range st.Tasks {
			fmt.Fprintf(w, "\t%s\t%s of %s", task.Title,
				plan.FormatDuration(task.Done), plan.FormatDuration(task.Estimate))
			if task.AtRisk {
				fmt.Fprintf(w, "\t(at risk)")
			}
			fmt.Fprintln(w)
		}
	}
}
