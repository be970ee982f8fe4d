package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/urfave/cli"

	"git.sr.ht/~mariusor/metis/plan"
)

var TaskCmd = cli.Command{
	Name:  "task",
	Usage: "Manages the tasks the planner slices into study sessions",
	Subcommands: cli.Commands{
		taskAddCmd,
		taskListCmd,
		taskDoneCmd,
		taskRmCmd,
	},
}

var taskAddCmd = cli.Command{
	Name:      "add",
	Usage:     "Adds a task, hashtags in the title or notes become tags",
	ArgsUsage: "TITLE...",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "estimate",
			Usage: "Total effort estimate, e.g. 6h or 90m",
		},
		&cli.StringFlag{
			Name:  "deadline",
			Usage: "Due date as YYYY-MM-DD",
		},
		&cli.IntFlag{
			Name:  "importance",
			Usage: fmt.Sprintf("Importance between %d and %d", plan.MinImportance, plan.MaxImportance),
			Value: 3,
		},
		&cli.StringFlag{
			Name:  "notes",
			Usage: "Free form notes",
		},
		&cli.StringSliceFlag{
			Name:  "tag",
			Usage: "Explicit tags, besides the inline hashtags",
		},
	},
	Action: addTask,
}

func addTask(c *cli.Context) error {
	title := strings.TrimSpace(strings.Join(c.Args(), " "))
	estimate, err := time.ParseDuration(c.String("estimate"))
	if err != nil {
		return fmt.Errorf("invalid estimate %q: %w", c.String("estimate"), err)
	}
	deadline, err := parseDate(c.String("deadline"), time.Time{})
	if err != nil {
		return err
	}
	t := plan.Task{
		ID:         xid.New().String(),
		Title:      title,
		Notes:      c.String("notes"),
		Tags:       plan.MergeTags(c.StringSlice("tag"), title, c.String("notes")),
		Estimate:   estimate,
		Importance: c.Int("importance"),
		Deadline:   deadline,
		CreatedAt:  now,
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if c.GlobalBool("dry-run") {
		info("would save task %s", t)
		return nil
	}
	if err := openStorage(c).SaveTasks(t); err != nil {
		return err
	}
	info("saved task %s: %s", t.ID, t)
	return nil
}

var taskListCmd = cli.Command{
	Name:  "list",
	Usage: "Lists tasks with their remaining effort",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "all",
			Usage: "Include tasks already checked off",
		},
	},
	Action: listTasks,
}

func listTasks(c *cli.Context) error {
	st := openStorage(c)
	tasks, err := st.LoadTasks()
	if err != nil {
		return err
	}
	sessions, err := st.LoadSessions(sessionWindow(loadSettings(c)))
	if err != nil {
		return err
	}
	done := sessions.CompletedByTask()
	shown := 0
	for _, t := range tasks {
		if t.IsDone() && !c.Bool("all") {
			continue
		}
		shown++
		info("%s", renderTask(t, done[t.ID]))
	}
	if shown == 0 {
		info("no tasks")
	}
	return nil
}

func renderTask(t plan.Task, done time.Duration) string {
	b := strings.Builder{}
	fmt.Fprintf(&b, "[%s] %s", t.ID, t.Title)
	if len(t.Tags) > 0 {
		fmt.Fprintf(&b, " #%s", strings.Join(t.Tags, " #"))
	}
	fmt.Fprintf(&b, "\n\tdue %s, importance %d", t.Deadline.Format("Monday, 02 Jan 2006"), t.Importance)
	remaining := t.Estimate - done
	if remaining < 0 {
		remaining = 0
	}
	switch {
	case t.IsDone():
		fmt.Fprintf(&b, ", checked off %s", t.DoneAt.Format("2006-01-02"))
	case done > 0:
		fmt.Fprintf(&b, ", %s left of %s", plan.FormatDuration(remaining), plan.FormatDuration(t.Estimate))
	default:
		fmt.Fprintf(&b, ", %s", plan.FormatDuration(t.Estimate))
	}
	return b.String()
}

var taskDoneCmd = cli.Command{
	Name:      "done",
	Usage:     "Checks tasks off, they keep their history but stop being scheduled",
	ArgsUsage: "ID...",
	Action:    completeTasks,
}

func completeTasks(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one task id is needed")
	}
	st := openStorage(c)
	for _, id := range c.Args() {
		t, err := st.LoadTask(id)
		if err != nil {
			return err
		}
		if t.IsDone() {
			info("task %s was already checked off", id)
			continue
		}
		t.DoneAt = now
		if c.GlobalBool("dry-run") {
			info("would check off %s", t)
			continue
		}
		if err := st.SaveTasks(t); err != nil {
			return err
		}
		info("checked off %s: %s", t.ID, t.Title)
	}
	return nil
}

var taskRmCmd = cli.Command{
	Name:      "rm",
	Usage:     "Removes tasks",
	ArgsUsage: "ID...",
	Action:    removeTasks,
}

func removeTasks(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one task id is needed")
	}
	if c.GlobalBool("dry-run") {
		info("would remove %d task(s)", c.NArg())
		return nil
	}
	if err := openStorage(c).RemoveTasks(c.Args()...); err != nil {
		return err
	}
	info("removed %d task(s)", c.NArg())
	return nil
}
