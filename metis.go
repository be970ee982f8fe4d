// Package metis holds the application identity shared by the binaries
// and the ActivityPub helpers used by the announcement pipeline.
package metis

import (
	"embed"
	"time"

	vocab "github.com/go-ap/activitypub"
)

const AppName = "metis"

var (
	// AppVersion gets overridden at build time through ldflags.
	AppVersion = "(unknown)"

	AppWebsite = "https://git.sr.ht/~mariusor/metis"

	AppScopes = []string{"read+write+follow"}
)

// AccountDetails carries the identity of the announcement account:
// display name, description, and avatar/header images when present.
//
//go:embed static
var AccountDetails embed.FS

var NL = vocab.DefaultNaturalLanguageValue

func SetIDOf(it vocab.Item, id vocab.ID) {
	if vocab.LinkTypes.Contains(it.GetType()) {
		vocab.OnLink(it, func(lnk *vocab.Link) error {
			lnk.ID = id
			return nil
		})
	} else {
		vocab.OnObject(it, func(ob *vocab.Object) error {
			ob.ID = id
			return nil
		})
	}
}

func NameOf(it vocab.Item) string {
	var name string
	if vocab.LinkTypes.Contains(it.GetType()) {
		vocab.OnLink(it, func(lnk *vocab.Link) error {
			name = lnk.Name.First().String()
			return nil
		})
	} else {
		vocab.OnObject(it, func(ob *vocab.Object) error {
			name = ob.Name.First().String()
			return nil
		})
	}
	return name
}

func WrapObjectInCreate(actor vocab.Actor, p vocab.Item) vocab.Activity {
	now := time.Now().UTC()
	return vocab.Activity{
		Type:         vocab.CreateType,
		Published:    now,
		Updated:      now,
		AttributedTo: actor.GetLink(),
		Actor:        actor.GetLink(),
		Object:       p,
	}
}
