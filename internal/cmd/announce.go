package cmd

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/McKael/madon"
	"github.com/urfave/cli"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"git.sr.ht/~mariusor/metis/internal/post"
	"git.sr.ht/~mariusor/metis/storage"
	"git.sr.ht/~mariusor/metis/storage/boltdb"
)

var AnnounceCmd = cli.Command{
	Name:    "announce",
	Aliases: []string{"post"},
	Usage:   "Publishes the day's study agenda to the Fediverse",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "date",
			Usage: "Day to announce as YYYY-MM-DD, today if empty",
		},
		&cli.IntFlag{
			Name:  "days",
			Usage: "How many days the announcement covers",
			Value: 1,
		},
		&cli.StringSliceFlag{
			Name:  "to",
			Usage: "Where to publish: stdout, mastodon, oni, fedbox or all",
		},
		&cli.StringSliceFlag{
			Name:  "instance",
			Usage: "Only publish to the accounts on these instances",
		},
	},
	Action: announceAgenda,
}

// AnnounceConfig carries one announcement run: the storage to read, the
// window to cover and the posters to fan out to.
type AnnounceConfig struct {
	Path    string
	DryRun  bool
	Date    time.Time
	Days    int
	PostFns []post.PosterFn
	infFn   logFn
	errFn   logFn
}

const (
	TypeMastodon = "mastodon"
	TypeONI      = "oni"
	TypeFedBOX   = "fedbox"
	TypeStdout   = "stdout"
	TypeAll      = "all"
)

// ResolutionDay is the granularity sessions are planned and announced
// at.
const ResolutionDay = 24 * time.Hour

func shouldPostToInstance(instances []string, inst string) bool {
	if len(instances) == 0 {
		return true
	}
	name := urlHost(inst)
	for _, instance := range instances {
		if strings.EqualFold(urlHost(instance), name) {
			return true
		}
	}
	return false
}

func urlHost(u string) string {
	uu, err := url.ParseRequestURI(u)
	if err != nil {
		return ""
	}
	return uu.Host
}

func typeIsAllowed(checkTypes []string, validTypes ...string) bool {
	if len(checkTypes) == 0 {
		return true
	}
	for _, sv := range checkTypes {
		for _, typ := range validTypes {
			if strings.EqualFold(sv, typ) {
				return true
			}
		}
	}
	return false
}

// splitTargets separates the backend filters from the stdout pseudo
// target. An "all" value clears the filter so every account matches.
func splitTargets(targets []string) ([]string, bool) {
	all, stdout := false, false
	types := make([]string, 0, len(targets))
	for _, t := range targets {
		switch t = strings.ToLower(strings.TrimSpace(t)); t {
		case "":
		case TypeStdout:
			stdout = true
		case TypeAll:
			all = true
		default:
			types = append(types, t)
		}
	}
	if all {
		types = nil
	}
	return types, stdout
}

// authorizedPosters builds one poster for every stored credential that
// passes the backend and instance filters, refreshing expired
// ActivityPub tokens on the way.
func authorizedPosters(types, instances []string) ([]post.PosterFn, error) {
	creds, err := post.LoadCredentials(CredentialsPath())
	if err != nil {
		return nil, fmt.Errorf("unable to load credentials for the client: %w", err)
	}
	fns := make([]post.PosterFn, 0, len(creds))
	for _, cred := range creds {
		switch cl := cred.(type) {
		case *madon.Client:
			if !typeIsAllowed(types, TypeMastodon) || !shouldPostToInstance(instances, cl.InstanceURL) {
				continue
			}
			fns = append(fns, post.ToMastodon(cl))
		case *post.APClient:
			if !typeIsAllowed(types, TypeFedBOX, TypeONI) ||
				!shouldPostToInstance(instances, cl.ID.String()) {
				continue
			}
			if cl.Type != "" && !typeIsAllowed(types, cl.Type) {
				continue
			}
			ctx := context.WithValue(context.Background(), oauth2.HTTPClient, post.GetHTTPClient())
			if cl.Tok != nil && !cl.Tok.Expiry.IsZero() && time.Until(cl.Tok.Expiry) <= 0 {
				clc := cl.Conf
				if cl.Tok, err = clc.PasswordCredentialsToken(ctx, cl.ID.String(), clc.ClientSecret); err != nil {
					return nil, fmt.Errorf("unable to get new token for %s: %w", cl.ID, err)
				}
			}
			fns = append(fns, post.ToActivityPub(cl))
		}
	}
	return fns, nil
}

func announceAgenda(c *cli.Context) error {
	conf := AnnounceConfig{
		DryRun: boolValue(c, "dry-run"),
		Days:   c.Int("days"),
		Path:   storagePath(c),
		infFn:  info,
		errFn:  errFn,
	}

	var err error
	if conf.Date, err = parseDate(stringValue(c, "date"), defaultStartDate); err != nil {
		return err
	}

	types, withStdout := splitTargets(stringSliceValues(c, "to"))
	if !conf.DryRun {
		if conf.PostFns, err = authorizedPosters(types, stringSliceValues(c, "instance")); err != nil {
			return err
		}
	}
	if withStdout || len(conf.PostFns) == 0 {
		conf.PostFns = append(conf.PostFns, post.ToStdout)
	}
	return LoadAndAnnounce(conf)
}

// AnnounceEverything publishes the agenda of a single day to every
// authorized account, the operation the server runs on its daily tick.
func AnnounceEverything(path string, day time.Time) error {
	conf := AnnounceConfig{Path: path, Date: day, Days: 1, infFn: info, errFn: errFn}

	var err error
	if conf.PostFns, err = authorizedPosters(nil, nil); err != nil {
		return err
	}
	if len(conf.PostFns) == 0 {
		conf.PostFns = append(conf.PostFns, post.ToStdout)
	}
	return LoadAndAnnounce(conf)
}

// LoadAndAnnounce reads the sessions of the window out of storage and
// hands them, grouped by day, to every poster. Backends run
// concurrently and a failing one does not stop the others.
func LoadAndAnnounce(c AnnounceConfig) error {
	if c.Days < 1 {
		c.Days = 1
	}
	if c.infFn == nil {
		c.infFn = info
	}
	if c.errFn == nil {
		c.errFn = errFn
	}

	repo := boltdb.New(boltdb.Config{
		Path:  filepath.Join(c.Path, boltdb.DefaultFile),
		ErrFn: boltdb.LoggerFn(c.errFn),
	})

	sessions, err := repo.LoadSessions(storage.Cursor(c.Date, time.Duration(c.Days-1)*ResolutionDay))
	if err != nil {
		return fmt.Errorf("unable to load sessions from storage: %w", err)
	}
	if len(sessions) == 0 {
		c.infFn("nothing scheduled on %s, run plan first", c.Date.Format("Monday, _2 January 2006"))
		return nil
	}

	agenda := sessions.GroupByDay()

	g := errgroup.Group{}
	for _, postFn := range c.PostFns {
		g.Go(func() error {
			if err := postFn(agenda); err != nil {
				c.errFn("unable to post: %s", err)
			}
			return nil
		})
	}
	return g.Wait()
}
