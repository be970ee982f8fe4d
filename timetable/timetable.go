// Package timetable imports fixed commitments from external timetable
// exports, such as the weekly HTML tables universities publish or
// iCalendar feeds saved to disk.
package timetable

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"git.sr.ht/~mariusor/metis/plan"
	"git.sr.ht/~mariusor/metis/timetable/htmltable"
	"git.sr.ht/~mariusor/metis/timetable/icsfile"
)

var DefaultSources = []string{htmltable.Label, icsfile.Label}

// Labels describes each source for help output.
var Labels = map[string]string{
	htmltable.Label: "weekly timetable tables exported as HTML",
	icsfile.Label:   "iCalendar exports with weekly or one time events",
}

// Source reads an exported timetable into commitments. The entries come
// back without IDs, the caller assigns them before persisting.
type Source interface {
	Load(r io.Reader) (plan.Commitments, error)
}

func ForLabel(label string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case htmltable.Label:
		return htmltable.Source{}, nil
	case icsfile.Label:
		return icsfile.Source{}, nil
	}
	return nil, fmt.Errorf("unknown timetable source %q, expected one of: %s", label, strings.Join(DefaultSources, ", "))
}

func ForFile(path string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return htmltable.Source{}, nil
	case ".ics", ".ical":
		return icsfile.Source{}, nil
	}
	return nil, fmt.Errorf("unable to guess the timetable format of %s", filepath.Base(path))
}

// LoadFile parses the timetable at path, picking the parser from the
// file extension.
func LoadFile(path string) (plan.Commitments, error) {
	src, err := ForFile(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return src.Load(f)
}
