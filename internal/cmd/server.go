package cmd

import (
	"context"
	"path/filepath"
	"syscall"
	"time"

	"git.sr.ht/~mariusor/lw"
	w "git.sr.ht/~mariusor/wrapper"
	"github.com/urfave/cli"

	"git.sr.ht/~mariusor/metis"
	"git.sr.ht/~mariusor/metis/api"
	"git.sr.ht/~mariusor/metis/plan"
	"git.sr.ht/~mariusor/metis/storage/boltdb"
)

var ServerCmd = cli.Command{
	Name:    "server",
	Aliases: []string{"start"},
	Usage:   "Starts the planner API and iCal server",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "listen",
			Usage: "The socket to listen on, overrides METIS_LISTEN",
		},
		&cli.StringFlag{
			Name:  "announce",
			Usage: "Clock at which the day's agenda gets published, as HH:MM, empty disables",
		},
	},
	Action: serverStart,
}

var wait = 100 * time.Millisecond

func serverStart(c *cli.Context) error {
	env := LoadEnv()

	listen := stringValue(c, "listen")
	if listen == "" {
		listen = env.Listen
	}

	var announceAt time.Duration = -1
	if at := stringValue(c, "announce"); at != "" {
		var err error
		if announceAt, err = plan.ParseClock(at); err != nil {
			return err
		}
	}

	logger := lw.Dev()
	path := storagePath(c)

	conf := api.Config{
		Storage: boltdb.New(boltdb.Config{
			Path:  filepath.Join(path, boltdb.DefaultFile),
			LogFn: logger.Debugf,
			ErrFn: logger.Warnf,
		}),
		SettingsPath: settingsPath(c),
		Version:      metis.AppVersion,
		BaseURL:      env.Hostname,
		Logger:       logger,
	}

	logger.Infof("Listening on %s", listen)

	// Create a deadline to wait for.
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	// Get start/stop functions for the http server
	srvRun, srvStop := w.HttpServer(w.Handler(api.Routes(conf)), w.OnTCP(listen))
	w.RegisterSignalHandlers(w.SignalHandlers{
		syscall.SIGHUP: func(_ chan int) {
			logger.Infof("SIGHUP received, reloading settings from %s", conf.SettingsPath)
		},
		syscall.SIGINT: func(exit chan int) {
			logger.Infof("SIGINT received, stopping")
			exit <- 0
		},
		syscall.SIGTERM: func(exit chan int) {
			logger.Infof("SIGTERM received, force stopping")
			exit <- 0
		},
		syscall.SIGQUIT: func(exit chan int) {
			logger.Infof("SIGQUIT received, force stopping with core-dump")
			exit <- 0
		},
	}).Exec(func() error {
		if announceAt >= 0 {
			go announceDaily(path, announceAt, logger)
		}
		if err := srvRun(); err != nil {
			logger.Errorf("Error: %s", err)
			return err
		}
		var err error
		// Doesn't block if no connections, but will otherwise wait until the timeout deadline.
		go func(e error) {
			if err = srvStop(ctx); err != nil {
				logger.Errorf("Error: %s", err)
			}
		}(err)
		return err
	})

	return nil
}

// announceDaily sleeps until the next occurrence of the wall clock and
// publishes that day's agenda, repeating every day.
func announceDaily(path string, clock time.Duration, logger lw.Logger) {
	for {
		next := plan.DateOf(time.Now()).Add(clock)
		if !next.After(time.Now()) {
			next = next.Add(ResolutionDay)
		}
		time.Sleep(time.Until(next))
		if err := AnnounceEverything(path, plan.DateOf(time.Now())); err != nil {
			logger.Warnf("unable to announce the agenda: %s", err)
		}
	}
}
