package plan

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Settings are the user's scheduling preferences. Every knob has a sane
// default so a zero value normalizes into something usable.
type Settings struct {
	DayStart       time.Duration  `json:"dayStart"`
	DayEnd         time.Duration  `json:"dayEnd"`
	MaxDaily       time.Duration  `json:"maxDaily"`
	SessionMin     time.Duration  `json:"sessionMin"`
	SessionMax     time.Duration  `json:"sessionMax"`
	Break          time.Duration  `json:"break"`
	RestDays       []time.Weekday `json:"restDays"`
	BufferDays     int            `json:"bufferDays"`
	EstimateFactor float64        `json:"estimateFactor"`
	HorizonDays    int            `json:"horizonDays"`
	RotateTasks    bool           `json:"rotateTasks"`
}

func DefaultSettings() Settings {
	return Settings{
		DayStart:       8 * time.Hour,
		DayEnd:         22 * time.Hour,
		MaxDaily:       6 * time.Hour,
		SessionMin:     30 * time.Minute,
		SessionMax:     2 * time.Hour,
		Break:          15 * time.Minute,
		RestDays:       []time.Weekday{time.Sunday},
		BufferDays:     0,
		EstimateFactor: 1.0,
		HorizonDays:    56,
		RotateTasks:    true,
	}
}

// Normalized fills zero fields from the defaults and clamps values that
// cannot work, so the scheduler never sees a nonsense configuration.
func (s Settings) Normalized() Settings {
	def := DefaultSettings()
	if s.DayStart <= 0 || s.DayStart >= 24*time.Hour {
		s.DayStart = def.DayStart
	}
	if s.DayEnd <= 0 || s.DayEnd > 24*time.Hour {
		s.DayEnd = def.DayEnd
	}
	if s.DayEnd <= s.DayStart {
		s.DayStart, s.DayEnd = def.DayStart, def.DayEnd
	}
	if s.SessionMin <= 0 {
		s.SessionMin = def.SessionMin
	}
	if s.SessionMax <= 0 {
		s.SessionMax = def.SessionMax
	}
	if s.SessionMax < s.SessionMin {
		s.SessionMax = s.SessionMin
	}
	if s.MaxDaily <= 0 {
		s.MaxDaily = def.MaxDaily
	}
	if s.MaxDaily < s.SessionMin {
		s.MaxDaily = s.SessionMin
	}
	if s.Break < 0 {
		s.Break = def.Break
	}
	if s.BufferDays < 0 {
		s.BufferDays = 0
	}
	if s.EstimateFactor < 1 {
		s.EstimateFactor = def.EstimateFactor
	}
	if s.HorizonDays <= 0 {
		s.HorizonDays = def.HorizonDays
	}
	return s
}

func (s Settings) IsRestDay(d time.Weekday) bool {
	return weekdaysContain(s.RestDays, d)
}

// Window is the length of the daily study window.
func (s Settings) Window() time.Duration {
	return s.DayEnd - s.DayStart
}

// settingsFile is the editable shape of the settings: clocks as "08:00",
// durations as "1h30m", weekdays by name. Absent fields keep their
// defaults.
type settingsFile struct {
	DayStart       string   `json:"dayStart,omitempty"`
	DayEnd         string   `json:"dayEnd,omitempty"`
	MaxDaily       string   `json:"maxDaily,omitempty"`
	SessionMin     string   `json:"sessionMin,omitempty"`
	SessionMax     string   `json:"sessionMax,omitempty"`
	Break          string   `json:"break,omitempty"`
	RestDays       []string `json:"restDays,omitempty"`
	BufferDays     *int     `json:"bufferDays,omitempty"`
	EstimateFactor *float64 `json:"estimateFactor,omitempty"`
	HorizonDays    *int     `json:"horizonDays,omitempty"`
	RotateTasks    *bool    `json:"rotateTasks,omitempty"`
}

// DecodeSettings reads the editable JSON shape and lays it over the
// defaults.
func DecodeSettings(r io.Reader) (Settings, error) {
	s := DefaultSettings()
	f := settingsFile{}
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return s, fmt.Errorf("unable to decode settings: %w", err)
	}
	var err error
	if f.DayStart != "" {
		if s.DayStart, err = ParseClock(f.DayStart); err != nil {
			return s, err
		}
	}
	if f.DayEnd != "" {
		if s.DayEnd, err = ParseClock(f.DayEnd); err != nil {
			return s, err
		}
	}
	for _, d := range []struct {
		raw string
		to  *time.Duration
	}{
		{f.MaxDaily, &s.MaxDaily},
		{f.SessionMin, &s.SessionMin},
		{f.SessionMax, &s.SessionMax},
		{f.Break, &s.Break},
	} {
		if d.raw == "" {
			continue
		}
		if *d.to, err = time.ParseDuration(d.raw); err != nil {
			return s, fmt.Errorf("invalid duration %q in settings: %w", d.raw, err)
		}
	}
	if f.RestDays != nil {
		s.RestDays = make([]time.Weekday, 0, len(f.RestDays))
		for _, name := range f.RestDays {
			wd, err := ParseWeekday(name)
			if err != nil {
				return s, err
			}
			if !weekdaysContain(s.RestDays, wd) {
				s.RestDays = append(s.RestDays, wd)
			}
		}
	}
	if f.BufferDays != nil {
		s.BufferDays = *f.BufferDays
	}
	if f.EstimateFactor != nil {
		s.EstimateFactor = *f.EstimateFactor
	}
	if f.HorizonDays != nil {
		s.HorizonDays = *f.HorizonDays
	}
	if f.RotateTasks != nil {
		s.RotateTasks = *f.RotateTasks
	}
	return s.Normalized(), nil
}

// EncodeSettings writes the settings in their editable shape.
func EncodeSettings(w io.Writer, s Settings) error {
	s = s.Normalized()
	days := make([]string, len(s.RestDays))
	for i, d := range s.RestDays {
		days[i] = d.String()[:3]
	}
	f := settingsFile{
		DayStart:       FormatClock(s.DayStart),
		DayEnd:         FormatClock(s.DayEnd),
		MaxDaily:       s.MaxDaily.String(),
		SessionMin:     s.SessionMin.String(),
		SessionMax:     s.SessionMax.String(),
		Break:          s.Break.String(),
		RestDays:       days,
		BufferDays:     &s.BufferDays,
		EstimateFactor: &s.EstimateFactor,
		HorizonDays:    &s.HorizonDays,
		RotateTasks:    &s.RotateTasks,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(f)
}

// LoadSettings reads the settings file at path. A missing file is not an
// error, it just means defaults.
func LoadSettings(path string) (Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return DefaultSettings(), fmt.Errorf("unable to open settings %s: %w", path, err)
	}
	defer f.Close()
	return DecodeSettings(f)
}

// SaveSettings writes the settings file at path in the editable shape.
func SaveSettings(path string, s Settings) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("unable to open settings %s: %w", path, err)
	}
	defer f.Close()
	return EncodeSettings(f, s)
}
