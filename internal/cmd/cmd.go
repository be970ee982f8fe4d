// Package cmd wires the planner's operations to the command line:
// storage setup, shared flag plumbing and the commands used by both
// binaries.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.sr.ht/~mariusor/lw"
	"github.com/caarlos0/env/v11"
	"github.com/urfave/cli"

	"git.sr.ht/~mariusor/metis"
	"git.sr.ht/~mariusor/metis/plan"
	"git.sr.ht/~mariusor/metis/storage"
	"git.sr.ht/~mariusor/metis/storage/boltdb"
)

var now = time.Now()

var defaultStartDate = plan.DateOf(now)

// SettingsFile sits next to the database inside the storage path.
const SettingsFile = "settings.json"

type logFn func(string, ...interface{})

var info = func(s string, args ...interface{}) {
	fmt.Printf(s+"\n", args...)
}

var errFn = func(s string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, s+"\n", args...)
}

// Env holds the operator facing knobs that work without flags.
type Env struct {
	Path     string `env:"METIS_PATH"`
	Listen   string `env:"METIS_LISTEN" envDefault:"localhost:3737"`
	Hostname string `env:"METIS_HOSTNAME" envDefault:"http://localhost:3737"`
}

// LoadEnv reads the environment overrides, falling back to the XDG data
// path for storage.
func LoadEnv() Env {
	e := Env{}
	if err := env.Parse(&e); err != nil {
		errFn("unable to parse environment: %s", err)
	}
	if e.Path == "" {
		e.Path = DataPath()
	}
	return e
}

func MkDirIfNotExists(p string) error {
	fi, err := os.Stat(p)
	if err != nil && os.IsNotExist(err) {
		err = os.MkdirAll(p, os.ModeDir|os.ModePerm|0700)
	}
	if err != nil {
		return err
	}
	fi, err = os.Stat(p)
	if err != nil {
		return err
	} else if !fi.IsDir() {
		return fmt.Errorf("path exists, and is not a folder %s", p)
	}
	return nil
}

func CachePath() string {
	xdgCachePath, _ := os.UserCacheDir()
	return filepath.Join(xdgCachePath, metis.AppName)
}

func DataPath() string {
	homeDir, _ := os.UserHomeDir()
	xdgDataPath := filepath.Join(homeDir, ".local", "share")
	appPath := filepath.Join(xdgDataPath, metis.AppName)

	if _, err := os.Stat(appPath); err != nil && errors.Is(err, os.ErrNotExist) {
		if err := MkDirIfNotExists(appPath); err != nil {
			log.Fatalf("Error: %s", err.Error())
		}
	}
	return appPath
}

// CredentialsPath is where authorize saves the account credentials, one
// gob file per instance.
func CredentialsPath() string {
	p := filepath.Join(DataPath(), "credentials")
	if err := MkDirIfNotExists(p); err != nil {
		errFn("unable to create credentials path: %s", err)
	}
	return p
}

// storagePath resolves the --path flag, then the environment, then the
// XDG data dir.
func storagePath(c *cli.Context) string {
	if p := stringValue(c, "path"); p != "" {
		return p
	}
	return LoadEnv().Path
}

func settingsPath(c *cli.Context) string {
	return filepath.Join(storagePath(c), SettingsFile)
}

// loadSettings degrades to the defaults when the settings file is
// missing or broken.
func loadSettings(c *cli.Context) plan.Settings {
	s, err := plan.LoadSettings(settingsPath(c))
	if err != nil {
		errFn("unable to read settings: %s", err)
	}
	return s
}

func openStorage(c *cli.Context) storage.Store {
	conf := boltdb.Config{Path: filepath.Join(storagePath(c), boltdb.DefaultFile)}
	if boolValue(c, "verbose") {
		logger := lw.Dev()
		conf.LogFn = logger.Debugf
		conf.ErrFn = logger.Warnf
	}
	return boltdb.New(conf)
}

// sessionWindow covers every session a command reasons about: one
// horizon back for completed effort, one forward for the pending plan.
func sessionWindow(s plan.Settings) storage.DateCursor {
	horizon := time.Duration(s.HorizonDays) * ResolutionDay
	return storage.Cursor(plan.DateOf(now).Add(-horizon), 2*horizon)
}

// stringValue walks the context chain so command flags also honor
// values set on their parents.
func stringValue(c *cli.Context, p string) string {
	for {
		if c.IsSet(p) {
			if val := c.String(p); val != "" {
				return val
			}
		}
		if c = c.Parent(); c == nil {
			break
		}
	}
	return ""
}

func stringSliceValues(c *cli.Context, p string) []string {
	for {
		if c.IsSet(p) {
			if values := c.StringSlice(p); values != nil {
				return values
			}
		}
		if c = c.Parent(); c == nil {
			break
		}
	}
	return nil
}

func boolValue(c *cli.Context, p string) bool {
	for {
		if c.IsSet(p) && c.Bool(p) {
			return true
		}
		if c = c.Parent(); c == nil {
			break
		}
	}
	return false
}

// parseDate reads a YYYY-MM-DD flag value, empty meaning the fallback.
func parseDate(v string, fallback time.Time) (time.Time, error) {
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", v)
	}
	return d, nil
}

// printDay lays out the busy occurrences and sessions of a day in start
// order, optionally with the live session states.
func printDay(w io.Writer, day plan.DayPlan, at time.Time, withStates bool) {
	fmt.Fprintf(w, "%s\n", day.Date.Format("Monday, 02 Jan 2006"))
	midnight := plan.DateOf(day.Date)
	i, j := 0, 0
	for i < len(day.Busy) || j < len(day.Sessions) {
		busyNext := i < len(day.Busy)
		if busyNext && j < len(day.Sessions) {
			busyNext = day.Busy[i].StartAt.Sub(midnight) <= day.Sessions[j].Start
		}
		if busyNext {
			o := day.Busy[i]
			line := o.String()
			if o.Location != "" {
				line += " @ " + o.Location
			}
			fmt.Fprintf(w, "\t%s\t[busy]\n", line)
			i++
			continue
		}
		ses := day.Sessions[j]
		if withStates {
			fmt.Fprintf(w, "\t%s\t[%s]\n", renderSession(ses), ses.State(at))
		} else {
			fmt.Fprintf(w, "\t%s\n", renderSession(ses))
		}
		j++
	}
}

func renderSession(ses plan.Session) string {
	line := ses.String()
	if len(ses.Tags) > 0 {
		line += " #" + strings.Join(ses.Tags, " #")
	}
	return line
}
