package cmd

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/xid"
	"github.com/urfave/cli"

	"git.sr.ht/~mariusor/metis/plan"
	"git.sr.ht/~mariusor/metis/timetable"
)

var ImportCmd = cli.Command{
	Name:        "import",
	Usage:       "Imports fixed commitments from timetable exports",
	ArgsUsage:   "FILE|URL...",
	Description: sourcesHelp(),
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "source",
			Usage: "Timetable format, by default guessed from the file extension",
		},
		&cli.BoolFlag{
			Name:  "force",
			Usage: "Import entries even over strict conflicts",
		},
	},
	Action: importTimetables,
}

func sourcesHelp() string {
	h := strings.Builder{}
	h.WriteString("Supported timetable sources:\n")
	for _, label := range timetable.DefaultSources {
		fmt.Fprintf(&h, "   %s: %s\n", label, timetable.Labels[label])
	}
	return h.String()
}

// fetchTimetable downloads a remote export into the cache path and
// returns where it landed, keeping the file name so the source can
// still be guessed from the extension.
func fetchTimetable(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if err := MkDirIfNotExists(CachePath()); err != nil {
		return "", err
	}
	local := filepath.Join(CachePath(), url.PathEscape(u.Host+"-"+filepath.Base(u.Path)))

	res, err := http.Get(raw)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode != 200 {
		return "", fmt.Errorf("status code error: %d %s", res.StatusCode, res.Status)
	}

	f, err := os.Create(local)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err = io.Copy(f, res.Body); err != nil {
		return "", err
	}
	return local, nil
}

func importTimetables(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one timetable file is needed")
	}
	st := openStorage(c)
	existing, err := st.LoadCommitments()
	if err != nil {
		return err
	}
	dryRun := c.GlobalBool("dry-run")
	force := c.Bool("force")
	imported := 0
	for _, path := range c.Args() {
		if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
			if path, err = fetchTimetable(path); err != nil {
				return err
			}
		}
		var src timetable.Source
		if label := c.String("source"); label != "" {
			src, err = timetable.ForLabel(label)
		} else {
			src, err = timetable.ForFile(path)
		}
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		entries, err := src.Load(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("unable to parse timetable %s: %w", path, err)
		}
		info("%s: %d entries", filepath.Base(path), len(entries))

		for _, cm := range entries {
			cm.ID = xid.New().String()
			cm.CreatedAt = now
			cm.LastModified = now

			blocked := false
			for _, v := range plan.CheckConflicts(cm, existing) {
				if v.Blocking() {
					blocked = true
					errFn("conflict: %q %s", cm.Label, v)
				} else {
					info("note: %q %s", cm.Label, v)
				}
			}
			if blocked && !force {
				errFn("skipping %q, use --force to import anyway", cm.Label)
				continue
			}
			if dryRun {
				info("would import %s", cm)
				existing = append(existing, cm)
				continue
			}
			if err := st.SaveCommitments(cm); err != nil {
				return err
			}
			existing = append(existing, cm)
			imported++
		}
	}
	if !dryRun {
		info("imported %d commitment(s)", imported)
	}
	return nil
}
