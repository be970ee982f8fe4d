package post

import (
	"fmt"
	"html/template"
	"strings"

	vocab "github.com/go-ap/activitypub"

	"git.sr.ht/~mariusor/metis/plan"
)

type tags []string

// Render joins the tags prefixed, normalized and deduplicated.
func (t tags) Render(tagPref string) string {
	names := make([]string, 0, len(t))
	for _, g := range t {
		if tag := plan.NormalizeTag(g); tag != "" {
			names = append(names, tagPref+tag)
		}
	}
	return strings.Join(uniqueValues(names, stringsContain), " ")
}

func renderTagsText(t []string, tagPref string) string {
	return tags(t).Render(tagPref)
}

func renderTagHTML(t vocab.Item) template.HTML {
	render := ""

	vocab.OnObject(t, func(ob *vocab.Object) error {
		typ := "tag"
		if ob.Type == vocab.MentionType {
			typ = "mention"
		}
		render = fmt.Sprintf(`<a rel="%s" href="%s">%s</a>`, typ, ob.ID, ob.Name.First().String())
		return nil
	})
	return template.HTML(render)
}
