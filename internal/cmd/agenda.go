package cmd

import (
	"os"
	"time"

	"github.com/urfave/cli"

	"git.sr.ht/~mariusor/metis/plan"
	"git.sr.ht/~mariusor/metis/storage"
)

var AgendaCmd = cli.Command{
	Name:  "agenda",
	Usage: "Shows the stored agenda with the live session states",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "date",
			Usage: "Day to show as YYYY-MM-DD, today by default",
		},
		&cli.StringFlag{
			Name:  "from",
			Usage: "First day of the range, alias of --date",
		},
		&cli.IntFlag{
			Name:  "days",
			Usage: "How many days to show",
			Value: 1,
		},
	},
	Action: showAgenda,
}

func showAgenda(c *cli.Context) error {
	from, err := parseDate(c.String("date"), defaultStartDate)
	if err != nil {
		return err
	}
	if v := c.String("from"); v != "" {
		if from, err = parseDate(v, defaultStartDate); err != nil {
			return err
		}
	}
	days := c.Int("days")
	if days < 1 {
		days = 1
	}

	st := openStorage(c)
	commitments, err := st.LoadCommitments()
	if err != nil {
		return err
	}
	sessions, err := st.LoadSessions(storage.Cursor(from, time.Duration(days-1)*ResolutionDay))
	if err != nil {
		return err
	}

	at := time.Now()
	shown := 0
	for d := 0; d < days; d++ {
		date := plan.DateOf(from).AddDate(0, 0, d)
		dp := plan.DayPlan{Date: date, Busy: commitments.EffectiveOn(date)}
		for _, ses := range sessions {
			if plan.SameDay(ses.Date, date) {
				dp.Sessions = append(dp.Sessions, ses)
			}
		}
		if len(dp.Sessions) == 0 && len(dp.Busy) == 0 {
			continue
		}
		dp.Sessions.Sort()
		printDay(os.Stdout, dp, at, true)
		shown++
	}
	if shown == 0 {
		info("nothing scheduled from %s over %d day(s)", from.Format("2006-01-02"), days)
	}
	return nil
}
