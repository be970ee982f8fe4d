package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli"

	"git.sr.ht/~mariusor/metis/plan"
)

var SettingsCmd = cli.Command{
	Name:  "settings",
	Usage: "Shows the effective scheduling preferences",
	Description: "Settings are read from " + SettingsFile + " in the storage path.\n" +
		"A missing file means defaults. Use --write to seed a file to edit.",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the settings in their editable JSON shape",
		},
		&cli.BoolFlag{
			Name:  "write",
			Usage: "Write the effective settings back to the settings file",
		},
	},
	Action: showSettings,
}

func showSettings(c *cli.Context) error {
	s := loadSettings(c)
	if c.Bool("write") {
		path := settingsPath(c)
		if c.GlobalBool("dry-run") {
			info("would write settings to %s", path)
			return nil
		}
		if err := plan.SaveSettings(path, s); err != nil {
			return err
		}
		info("wrote settings to %s", path)
		return nil
	}
	if c.Bool("json") {
		return plan.EncodeSettings(os.Stdout, s)
	}
	printSettings(os.Stdout, s)
	return nil
}

func printSettings(w io.Writer, s plan.Settings) {
	fmt.Fprintf(w, "study window\t%s-%s\n", plan.FormatClock(s.DayStart), plan.FormatClock(s.DayEnd))
	fmt.Fprintf(w, "daily cap\t%s\n", plan.FormatDuration(s.MaxDaily))
	fmt.Fprintf(w, "session length\t%s to %s\n", plan.FormatDuration(s.SessionMin), plan.FormatDuration(s.SessionMax))
	fmt.Fprintf(w, "break\t%s\n", plan.FormatDuration(s.Break))
	if len(s.RestDays) > 0 {
		days := make([]string, len(s.RestDays))
		for i, d := range s.RestDays {
			days[i] = d.String()
		}
		fmt.Fprintf(w, "rest days\t%s\n", strings.Join(days, ", "))
	}
	fmt.Fprintf(w, "deadline buffer\t%d day(s)\n", s.BufferDays)
	fmt.Fprintf(w, "estimate factor\t%.2f\n", s.EstimateFactor)
	fmt.Fprintf(w, "horizon\t%d day(s)\n", s.HorizonDays)
	fmt.Fprintf(w, "rotate tasks\t%t\n", s.RotateTasks)
}
