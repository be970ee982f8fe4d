package post

import (
	"bytes"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/McKael/madon"

	"git.sr.ht/~mariusor/metis/plan"
)

const maxPostSize = 500

const agendaTitleTpl = `Study plan for {{ .Format "Monday, 02 Jan 2006" -}}`

const agendaContentTpl = `{{- range $ses := .Sessions }}
{{ $ses | sanitize }}{{ with renderTags $ses.Tags "#" }} {{ . }}{{ end }}
{{- end }}

#{{ .Date.Month.String | lower }} #studyplan`

// badStrings get stripped from session labels before posting, they
// tend to sneak in through copy pasted timetables.
var badStrings = []string{"​"}

func removeStrings(s string, replace ...string) string {
	for _, r := range replace {
		s = strings.ReplaceAll(s, r, "")
	}
	return s
}

func sanitize(s plan.Session) string {
	return removeStrings(s.String(), badStrings...)
}

var titleTemplate = template.Must(template.New("agenda-title").Parse(agendaTitleTpl))

var contTemplate = template.Must(template.New("agenda-post").
	Funcs(template.FuncMap{
		"sanitize":   sanitize,
		"lower":      strings.ToLower,
		"renderTags": renderTagsText,
	}).Parse(agendaContentTpl))

type agendaContent struct {
	Date     time.Time
	Sessions plan.Sessions
}

type postModel struct {
	title, content string
}

func renderTitle(day time.Time) (string, error) {
	title := bytes.NewBuffer(nil)
	if err := titleTemplate.Execute(title, day); err != nil {
		return "", fmt.Errorf("unable to build post title: %w", err)
	}
	return title.String(), nil
}

func renderAgenda(day time.Time, sessions plan.Sessions) (string, error) {
	content := bytes.NewBuffer(nil)
	if err := contTemplate.Execute(content, agendaContent{Date: day, Sessions: sessions}); err != nil {
		return "", fmt.Errorf("unable to build post content: %w", err)
	}
	return content.String(), nil
}

const unlisted = "unlisted"

// ToMastodon posts one unlisted toot per day, chunking days that render
// over the size limit into a reply thread.
func ToMastodon(client *madon.Client) PosterFn {
	if client == nil {
		return ToStdout
	}
	return func(agenda map[time.Time]plan.Sessions) error {
		for _, day := range sortedDays(agenda) {
			sessions := agenda[day]

			title, err := renderTitle(day)
			if err != nil {
				errFn("unable to render title: %s", err)
			}

			cleaveFn := func(content *string) func(plan.Sessions) bool {
				return func(chunk plan.Sessions) bool {
					var err error
					*content, err = renderAgenda(day, chunk)
					if err != nil {
						return false
					}
					return len(*content) < maxPostSize
				}
			}

			posts := make([]postModel, 0)
			for {
				var content string
				_, sessions = cleaveSlice(sessions, cleaveFn(&content))

				posts = append(posts, postModel{title: title, content: content})
				if sessions == nil {
					break
				}
			}

			var inReplyTo int64
			for i, model := range posts {
				if len(posts) > 1 {
					model.title = fmt.Sprintf("%s: %d/%d", model.title, i+1, len(posts))
				}
				if inReplyTo > 0 {
					time.Sleep(500 * time.Millisecond)
				}
				s, err := client.PostStatus(model.content, inReplyTo, nil, len(model.title) > 0, model.title, unlisted)
				if err != nil {
					return fmt.Errorf("%s: %w", client.InstanceURL, err)
				}
				inReplyTo = s.ID
				infFn("posted at %s", s.URI)
			}
		}
		return nil
	}
}

// InstanceName turns an instance URL into a name usable as a
// credentials file.
func InstanceName(inst string) string {
	if u, err := url.ParseRequestURI(inst); err == nil && u.Host != "" {
		inst = u.Host
	}
	return url.PathEscape(filepath.Clean(filepath.Base(inst)))
}

func stringsContain(sl []string, v string) bool {
	for _, vs := range sl {
		if vs == v {
			return true
		}
	}
	return false
}

func uniqueValues[T comparable](sl []T, containsFn func(sl []T, u T) bool) []T {
	newSl := make([]T, 0, len(sl))
	for _, v := range sl {
		if !containsFn(newSl, v) {
			newSl = append(newSl, v)
		}
	}
	return newSl
}

func splitSlice[T any](sl []T, size int) [][]T {
	result := make([][]T, 0)
	if len(sl) <= size {
		result = append(result, sl)
		return result
	}
	if size == 0 {
		size = 1
	}
	cur := 0
	end := size
	for {
		if cur+size < len(sl) {
			end = cur + size
		} else {
			end = len(sl)
		}
		chunk := sl[cur:end]
		cur += size
		result = append(result, chunk)
		if cur >= len(sl) {
			break
		}
	}
	return result
}

// cleaveSlice halves incoming until checkFn accepts the head, returning
// the accepted head and whatever remains to be consumed.
func cleaveSlice[T any](incoming []T, checkFn func([]T) bool) ([]T, []T) {
	if checkFn(incoming) {
		return incoming, nil
	}

	var remainder []T
	for {
		cleaveLen := len(incoming) / 2
		halves := splitSlice[T](incoming, cleaveLen)
		if len(halves) >= 2 {
			rest := make([]T, 0, len(incoming)-cleaveLen+len(remainder))
			for _, h := range halves[1:] {
				rest = append(rest, h...)
			}
			remainder = append(rest, remainder...)
		}
		if checkFn(halves[0]) {
			return halves[0], remainder
		}
		if len(halves[0]) == len(incoming) {
			break
		}
		incoming = halves[0]
	}
	return incoming, nil
}
