package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/urfave/cli"

	"git.sr.ht/~mariusor/metis/plan"
)

var CommitmentCmd = cli.Command{
	Name:  "commitment",
	Usage: "Manages the fixed calendar entries the planner schedules around",
	Subcommands: cli.Commands{
		commitmentAddCmd,
		commitmentListCmd,
		commitmentRmCmd,
	},
}

var commitmentAddCmd = cli.Command{
	Name:      "add",
	Usage:     "Adds a fixed commitment after checking it against the existing ones",
	ArgsUsage: "LABEL...",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "on",
			Usage: "Weekdays for a recurring entry, e.g. mon,wed,fri",
		},
		&cli.StringFlag{
			Name:  "date",
			Usage: "Date of a one time entry as YYYY-MM-DD",
		},
		&cli.StringFlag{
			Name:  "start",
			Usage: "Start clock as HH:MM",
		},
		&cli.StringFlag{
			Name:  "end",
			Usage: "End clock as HH:MM",
		},
		&cli.StringFlag{
			Name:  "duration",
			Usage: "Slot length, when --end is not given",
		},
		&cli.StringFlag{
			Name:  "from",
			Usage: "First date a recurring entry applies, as YYYY-MM-DD",
		},
		&cli.StringFlag{
			Name:  "until",
			Usage: "Last date a recurring entry applies, as YYYY-MM-DD",
		},
		&cli.StringFlag{
			Name:  "location",
			Usage: "Where the commitment happens",
		},
		&cli.BoolFlag{
			Name:  "force",
			Usage: "Save even over strict conflicts",
		},
	},
	Action: addCommitment,
}

func addCommitment(c *cli.Context) error {
	cm := plan.Commitment{
		ID:           xid.New().String(),
		Label:        strings.TrimSpace(strings.Join(c.Args(), " ")),
		Kind:         plan.Once,
		Location:     c.String("location"),
		CreatedAt:    now,
		LastModified: now,
	}
	var err error
	if v := c.String("on"); v != "" {
		if cm.Weekdays, err = plan.ParseWeekdays(v); err != nil {
			return err
		}
		cm.Kind = plan.Recurring
	}
	if cm.Date, err = parseDate(c.String("date"), time.Time{}); err != nil {
		return err
	}
	if cm.From, err = parseDate(c.String("from"), time.Time{}); err != nil {
		return err
	}
	if cm.Until, err = parseDate(c.String("until"), time.Time{}); err != nil {
		return err
	}
	if cm.Start, err = plan.ParseClock(c.String("start")); err != nil {
		return err
	}
	switch {
	case c.String("duration") != "":
		if cm.Duration, err = time.ParseDuration(c.String("duration")); err != nil {
			return fmt.Errorf("invalid duration %q: %w", c.String("duration"), err)
		}
	case c.String("end") != "":
		end, err := plan.ParseClock(c.String("end"))
		if err != nil {
			return err
		}
		cm.Duration = end - cm.Start
	default:
		return fmt.Errorf("commitment %q needs --duration or --end", cm.Label)
	}
	if err := cm.Validate(); err != nil {
		return err
	}

	st := openStorage(c)
	existing, err := st.LoadCommitments()
	if err != nil {
		return err
	}
	verdicts := plan.CheckConflicts(cm, existing)
	for _, v := range verdicts {
		if v.Blocking() {
			errFn("conflict: %q %s", cm.Label, v)
		} else {
			info("note: %q %s", cm.Label, v)
		}
	}
	if verdicts.Blocking() && !c.Bool("force") {
		return fmt.Errorf("%q clashes with existing commitments, use --force to save anyway", cm.Label)
	}
	if c.GlobalBool("dry-run") {
		info("would save commitment %s", cm)
		return nil
	}
	if err := st.SaveCommitments(cm); err != nil {
		return err
	}
	info("saved commitment %s: %s", cm.ID, cm)
	return nil
}

var commitmentListCmd = cli.Command{
	Name:   "list",
	Usage:  "Lists the fixed commitments",
	Action: listCommitments,
}

func listCommitments(c *cli.Context) error {
	commitments, err := openStorage(c).LoadCommitments()
	if err != nil {
		return err
	}
	if len(commitments) == 0 {
		info("no commitments")
		return nil
	}
	commitments.Sort()
	for _, cm := range commitments {
		info("%s", renderCommitment(cm))
	}
	return nil
}

func renderCommitment(cm plan.Commitment) string {
	b := strings.Builder{}
	fmt.Fprintf(&b, "[%s] %s", cm.ID, cm)
	if cm.Location != "" {
		fmt.Fprintf(&b, " @ %s", cm.Location)
	}
	if cm.IsRecurring() && (!cm.From.IsZero() || !cm.Until.IsZero()) {
		from, until := "...", "..."
		if !cm.From.IsZero() {
			from = cm.From.Format("2006-01-02")
		}
		if !cm.Until.IsZero() {
			until = cm.Until.Format("2006-01-02")
		}
		fmt.Fprintf(&b, " (%s to %s)", from, until)
	}
	return b.String()
}

var commitmentRmCmd = cli.Command{
	Name:      "rm",
	Usage:     "Removes commitments",
	ArgsUsage: "ID...",
	Action:    removeCommitments,
}

func removeCommitments(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one commitment id is needed")
	}
	if c.GlobalBool("dry-run") {
		info("would remove %d commitment(s)", c.NArg())
		return nil
	}
	if err := openStorage(c).RemoveCommitments(c.Args()...); err != nil {
		return err
	}
	info("removed %d commitment(s)", c.NArg())
	return nil
}
