package cmd

import (
	"os"
	"time"

	"github.com/urfave/cli"

	"git.sr.ht/~mariusor/metis/plan"
)

var RedistributeCmd = cli.Command{
	Name:   "redistribute",
	Usage:  "Flags expired pending sessions as missed and replans their effort",
	Action: redistribute,
}

func redistribute(c *cli.Context) error {
	st := openStorage(c)
	s := loadSettings(c)
	sessions, err := st.LoadSessions(sessionWindow(s))
	if err != nil {
		return err
	}

	at := time.Now()
	audited, lost := plan.Audit(sessions, at)
	missed := make(plan.Sessions, 0)
	for i, ses := range audited {
		if ses.Status != sessions[i].Status {
			missed = append(missed, ses)
		}
	}

	dryRun := c.GlobalBool("dry-run")
	if len(missed) > 0 {
		if !dryRun {
			if err := st.SaveSessions(missed...); err != nil {
				return err
			}
		}
		info("missed %d session(s) worth %s", len(missed), plan.FormatDuration(lost))
	} else {
		info("nothing was missed")
	}

	p, removed, err := regenerate(st, s, at, dryRun)
	if err != nil {
		return err
	}
	if removed > 0 {
		info("dropped %d pending session(s)", removed)
	}
	printPlan(os.Stdout, p)
	return nil
}
