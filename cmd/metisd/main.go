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
		Name:    fmt.Sprintf("%sd", metis.AppName),
		Usage:   "Serves the planner API and the iCal feeds",
		Version: metis.AppVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "path",
				Usage: "Set storage path",
				Value: cmd.DataPath(),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Output debug messages",
			},
		},
		Commands: []cli.Command{
			cmd.ServerCmd,
		},
	}

	err = ctl.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
