package post

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/gob"
	"fmt"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"git.sr.ht/~mariusor/lw"
	"github.com/McKael/madon"
	vocab "github.com/go-ap/activitypub"
	"github.com/go-ap/client"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"git.sr.ht/~mariusor/metis"
	"git.sr.ht/~mariusor/metis/plan"
)

// APClient holds everything needed to post to the outbox of an
// ActivityPub actor. File remembers where the credentials live so
// refreshed tokens can be written back.
type APClient struct {
	ID   vocab.IRI
	Type string
	Conf oauth2.Config
	Tok  *oauth2.Token
	File string
}

var infFn client.LogFn = func(s string, i ...interface{}) {}
var errFn client.LogFn = func(s string, i ...interface{}) {}

const agendaHTMLTpl = `<h2>{{ .Date.Format "Monday, 02 Jan 2006" }}</h2>
<ul>
{{- range $ses := .Sessions }}
<li>{{ $ses | sanitize }}</li>
{{- end }}
</ul>
<p>{{ range $tag := .Tags }}{{ renderTag $tag }} {{ end }}</p>`

var contHTMLTemplate = template.Must(template.New("agenda-note").
	Funcs(template.FuncMap{
		"sanitize":  sanitize,
		"renderTag": renderTagHTML,
	}).Parse(agendaHTMLTpl))

type apContent struct {
	Date     time.Time
	Sessions plan.Sessions
	Tags     vocab.ItemCollection
}

func renderHTMLAgenda(day time.Time, sessions plan.Sessions, tags vocab.ItemCollection) (string, error) {
	contBuff := bytes.NewBuffer(nil)
	if err := contHTMLTemplate.Execute(contBuff, apContent{Date: day, Sessions: sessions, Tags: tags}); err != nil {
		return "", err
	}
	return contBuff.String(), nil
}

func maxItems(max int) client.FilterFn {
	v := url.Values{}
	v.Add("maxItems", strconv.Itoa(max))
	return func() url.Values {
		return v
	}
}

func typeFilter(types ...string) client.FilterFn {
	v := url.Values{}
	for _, name := range types {
		v.Add("type", name)
	}
	return func() url.Values {
		return v
	}
}

func withTagObjects() url.Values {
	v := url.Values{}
	v.Add("object.type", "")
	return v
}

func newActivityPubTag(tag string, baseURL vocab.IRI) *vocab.Object {
	tag = "#" + plan.NormalizeTag(tag)
	t := new(vocab.Object)
	t.Name = metis.NL(tag)
	t.To.Append(vocab.PublicNS)
	t.ID = baseURL.AddPath(strings.TrimPrefix(tag, "#"))
	return t
}

func apTags(sessions plan.Sessions, baseURL vocab.IRI) vocab.ItemCollection {
	if len(sessions) == 0 {
		return nil
	}
	tags := make(vocab.ItemCollection, 0)
	for _, name := range sessions.TagNames() {
		if t := newActivityPubTag(name, baseURL); !tags.Contains(t) {
			tags = append(tags, t)
		}
	}
	return tags
}

func defaultAgendaTags(day time.Time, baseURL vocab.IRI) vocab.ItemCollection {
	return vocab.ItemCollection{
		newActivityPubTag(strings.ToLower(day.Month().String()), baseURL),
		newActivityPubTag("studyplan", baseURL),
		newActivityPubTag(metis.AppName, baseURL),
	}
}

// acceptFollows answers the pending Follow requests in the actor's
// inbox so new subscribers start receiving the agenda.
func acceptFollows(actor *vocab.Actor, cl client.PubClient) error {
	inbox, err := cl.Inbox(context.Background(), actor, typeFilter("Follow"), maxItems(100))
	if err != nil {
		return err
	}
	followers, err := cl.Followers(context.Background(), actor)
	if err != nil {
		return err
	}
	followerIRIs := make(vocab.IRIs, 0)
	vocab.OnCollectionIntf(followers, func(col vocab.CollectionInterface) error {
		for _, fol := range col.Collection() {
			followerIRIs = append(followerIRIs, fol.GetLink())
		}
		return nil
	})

	toSend := make([]*vocab.Activity, 0)
	vocab.OnCollectionIntf(inbox, func(col vocab.CollectionInterface) error {
		for _, act := range col.Collection() {
			if act.GetType() != vocab.FollowType {
				continue
			}
			skip := false
			vocab.OnActivity(act, func(follow *vocab.Activity) error {
				skip = followerIRIs.Contains(follow.Actor.GetLink())
				if !skip {
					infFn("accepting Follow request from %s", follow.Actor.GetLink())
				}
				return nil
			})
			if skip {
				continue
			}

			accept := new(vocab.Activity)
			accept.Type = vocab.AcceptType
			accept.CC = append(accept.CC, vocab.PublicNS)
			accept.Actor = actor
			accept.InReplyTo = act.GetID()
			accept.Object = act.GetID()
			toSend = append(toSend, accept)
		}
		return nil
	})

	g, ctx := errgroup.WithContext(context.Background())
	for _, accept := range toSend {
		g.Go(func() error {
			if _, _, err := cl.ToOutbox(ctx, accept); err != nil {
				errFn("unable to accept follow: %+s", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func equalOrInCollection(toCheck, with vocab.Item) bool {
	if vocab.IsItemCollection(toCheck) {
		return false
	}
	if vocab.IsItemCollection(with) {
		inCollection := false
		vocab.OnItemCollection(with, func(col *vocab.ItemCollection) error {
			for _, it := range *col {
				if equalOrInCollection(toCheck, it) {
					inCollection = true
					break
				}
			}
			return nil
		})
		return inCollection
	}
	urlSame := with.GetLink().Equals(toCheck.GetLink(), true)
	nameSame := strings.EqualFold(metis.NameOf(with), metis.NameOf(toCheck))
	return urlSame && nameSame
}

// missingTags filters tags down to the ones the actor has not created
// on the server yet.
func missingTags(ctx context.Context, cl client.PubGetter, actor *vocab.Actor, tags vocab.ItemCollection) (vocab.ItemCollection, error) {
	col, err := cl.Outbox(ctx, actor, typeFilter(string(vocab.CreateType)), withTagObjects)
	if err != nil {
		return nil, err
	}

	tagsToCreate := make(vocab.ItemCollection, 0)
	for _, tag := range tags {
		needsCreating := true
		for _, it := range col.Collection() {
			var ob vocab.Item
			vocab.OnActivity(it, func(act *vocab.Activity) error {
				ob = act.Object
				return nil
			})
			if equalOrInCollection(tag, ob) {
				needsCreating = false
				break
			}
		}
		if needsCreating && !tagsToCreate.Contains(tag) {
			tagsToCreate = append(tagsToCreate, tag)
		}
	}
	return tagsToCreate, nil
}

// ToActivityPub wraps each day of the agenda in a Create activity on
// the actor's outbox: a public Note with the markdown agenda as source,
// its rendered HTML as content and the session tags attached.
func ToActivityPub(cl *APClient) PosterFn {
	if cl == nil || cl.Tok == nil {
		return ToStdout
	}
	logger := lw.Dev()

	tok := cl.Tok.AccessToken
	oauth := cl.Conf.Client(context.Background(), cl.Tok)
	ap := client.New(
		client.WithHTTPClient(oauth),
		client.WithLogger(logger),
	)

	errFn = logger.Errorf
	infFn = logger.Infof

	c, cancelFn := context.WithTimeout(context.Background(), time.Second)
	defer cancelFn()

	actor, err := ap.Actor(c, cl.ID)
	if err != nil {
		errFn("%s, falling back to just printing", err)
		return ToStdout
	}

	if err := acceptFollows(actor, ap); err != nil {
		errFn("unable to accept follows for actor: %s", err)
	}

	ctx := context.Background()

	return func(agenda map[time.Time]plan.Sessions) error {
		activities := make([]vocab.Activity, 0)
		for _, day := range sortedDays(agenda) {
			sessions := agenda[day]

			tags := append(defaultAgendaTags(day, actor.ID), apTags(sessions, actor.ID)...)
			toCreate, err := missingTags(ctx, ap, actor, tags)
			if err != nil {
				infFn("unable to load existing tags from the server: %s", err)
			}
			if len(toCreate) > 0 {
				activities = append(activities, metis.WrapObjectInCreate(*actor, toCreate))
			}

			ob := new(vocab.Object)
			ob.Type = vocab.NoteType

			content, err := renderHTMLAgenda(day, sessions, tags)
			if err != nil {
				errFn("unable to render agenda for %s: %s", day.Format(dayFmt), err)
				continue
			}
			ob.Content = metis.NL(content)
			ob.Tag = tags

			if title, err := renderTitle(day); err == nil {
				ob.Name = metis.NL(title)
			}
			if source, err := renderAgenda(day, sessions); err == nil {
				ob.Source = vocab.Source{
					MediaType: "text/markdown",
					Content:   metis.NL(source),
				}
			}

			ob.To = vocab.ItemCollection{vocab.PublicNS}
			ob.CC = vocab.ItemCollection{vocab.Followers.Of(actor)}

			activities = append(activities, metis.WrapObjectInCreate(*actor, ob))
		}
		(OperationsBatch{AP: ap, Ops: activities}).Send()

		if tr, ok := oauth.Transport.(*oauth2.Transport); ok {
			if cl.Tok, err = tr.Source.Token(); err != nil {
				errFn("unable to refresh OAuth2 token: %s", err)
				return nil
			}
			if cl.Tok.AccessToken == tok || cl.File == "" {
				return nil
			}
			if err := SaveCredentials(cl, cl.File); err != nil {
				errFn("unable to save new credentials for %s: %s", cl.ID, err)
			} else {
				infFn("refreshed OAuth2 credentials %s", cl.ID)
			}
		}
		return nil
	}
}

// OperationsBatch sends activities to the outbox one by one, logging
// failures without stopping.
type OperationsBatch struct {
	AP  client.PubSubmitter
	Ops []vocab.Activity
}

func (b OperationsBatch) Send() {
	for _, act := range b.Ops {
		_, created, err := b.AP.ToOutbox(context.Background(), act)
		if err != nil {
			errFn("%+s", err)
		} else {
			infFn("created object: %s", created.GetLink())
		}
	}
}

func GetHTTPClient() *http.Client {
	cl := http.DefaultClient

	if cl.Transport == nil {
		cl.Transport = &http.Transport{
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 20,
			DialContext: (&net.Dialer{
				Timeout: 2500 * time.Millisecond,
			}).DialContext,
			TLSHandshakeTimeout: 2500 * time.Millisecond,
		}
	}
	if tr, ok := cl.Transport.(*http.Transport); ok {
		if tr.TLSClientConfig == nil {
			tr.TLSClientConfig = new(tls.Config)
		}
		tr.TLSClientConfig.InsecureSkipVerify = true
	}

	if tr, ok := cl.Transport.(*oauth2.Transport); ok {
		if tr, ok := tr.Base.(*http.Transport); ok {
			if tr.TLSClientConfig == nil {
				tr.TLSClientConfig = new(tls.Config)
			}
			tr.TLSClientConfig.InsecureSkipVerify = true
		}
	}
	return cl
}

// SaveCredentials writes the credentials gob at path.
func SaveCredentials(cl any, path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to open credentials file: %w", err)
	}
	defer f.Close()

	d := gob.NewEncoder(f)
	return d.Encode(cl)
}

// LoadCredentials reads every credentials gob under dir, keyed by file
// name. A missing dir means no accounts were authorized yet.
func LoadCredentials(dir string) (map[string]any, error) {
	creds := make(map[string]any)

	if _, err := os.Stat(dir); err != nil && os.IsNotExist(err) {
		return creds, nil
	}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		ap := new(APClient)
		if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(ap); err == nil && ap.ID != "" {
			ap.File = path
			creds[filepath.Base(path)] = ap
			return nil
		}
		m := new(madon.Client)
		if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(m); err == nil && m.InstanceURL != "" {
			creds[filepath.Base(path)] = m
		}
		return nil
	})

	return creds, err
}
