package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"git.sr.ht/~mariusor/metis"
	"git.sr.ht/~mariusor/metis/internal/cmd"
)

func main() {
	var err error

	ctl := cli.App{
		Name:    fmt.Sprintf("%sctl", metis.AppName),
		Usage:   "Plans study sessions around tasks and fixed commitments",
		Version: metis.AppVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "The path for storage",
				Value: cmd.DataPath(),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Output debug messages",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Do not persist or publish anything",
			},
		},
		Commands: []cli.Command{
			cmd.TaskCmd,
			cmd.CommitmentCmd,
			cmd.ImportCmd,
			cmd.PlanCmd,
			cmd.AgendaCmd,
			cmd.RedistributeCmd,
			cmd.StatsCmd,
			cmd.SettingsCmd,
			cmd.AuthorizeCmd,
			cmd.AnnounceCmd,
			cmd.ServerCmd,
		},
	}

	err = ctl.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
